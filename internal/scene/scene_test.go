package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNode(t *testing.T, typ, name string) *Node {
	t.Helper()
	n, err := NewNode(typ, name)
	require.NoError(t, err)
	return n
}

// buildTree returns Main(Node2D) -> A(Node2D) -> B(Node2D) -> C(Sprite2D), plus Main -> UI(Control).
func buildTree(t *testing.T) *Node {
	t.Helper()
	root := mustNode(t, "Node2D", "Main")
	a := mustNode(t, "Node2D", "A")
	b := mustNode(t, "Node2D", "B")
	c := mustNode(t, "Sprite2D", "C")
	ui := mustNode(t, "Control", "UI")
	require.NoError(t, root.AddChild(a, -1))
	require.NoError(t, a.AddChild(b, -1))
	require.NoError(t, b.AddChild(c, -1))
	require.NoError(t, root.AddChild(ui, -1))
	for _, n := range []*Node{a, b, c, ui} {
		n.SetOwner(root)
	}
	return root
}

func TestNewNode(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		node    string
		wantErr error
	}{
		{"valid", "Node2D", "Player", nil},
		{"unknown type", "Nope", "X", ErrUnknownType},
		{"resource type", "Gradient", "X", ErrNotInstantiable},
		{"empty name", "Node", "  ", ErrInvalidName},
		{"slash in name", "Node", "a/b", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNode(tt.typ, tt.node)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.node, n.Name())
			assert.Nil(t, n.Parent())
			assert.Nil(t, n.Owner())
		})
	}
}

func TestChildrenAndNames(t *testing.T) {
	root := mustNode(t, "Node", "Root")
	a := mustNode(t, "Node", "A")
	b := mustNode(t, "Node", "B")
	require.NoError(t, root.AddChild(a, -1))
	require.NoError(t, root.AddChild(b, 0))
	assert.Equal(t, 0, b.Index())
	assert.Equal(t, 1, a.Index())

	dup := mustNode(t, "Node", "A")
	assert.ErrorIs(t, root.AddChild(dup, -1), ErrNameTaken)
	assert.ErrorIs(t, root.AddChild(a, -1), ErrHasParent)

	assert.ErrorIs(t, b.Rename("A"), ErrNameTaken)
	assert.Equal(t, "B", b.Name())
	require.NoError(t, b.Rename("B"))

	require.NoError(t, root.MoveChild(b, 5))
	assert.Equal(t, 1, b.Index())

	idx, err := root.RemoveChild(a)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Nil(t, a.Parent())
	_, err = root.RemoveChild(a)
	assert.ErrorIs(t, err, ErrNotChild)
}

func TestAddChildRejectsCycle(t *testing.T) {
	root := buildTree(t)
	a := root.Child("A")
	b := a.Child("B")
	_, err := a.RemoveChild(b)
	require.NoError(t, err)
	// b is detached now, but A is not under B, so only self-insertion is a cycle.
	assert.Error(t, b.AddChild(b, -1))
	require.NoError(t, a.AddChild(b, -1))
}

func TestProperties(t *testing.T) {
	n := mustNode(t, "Sprite2D", "S")
	assert.True(t, n.HasProperty("position"))
	assert.True(t, n.HasProperty("texture"))
	assert.False(t, n.HasProperty("text"))

	v, ok := n.Get("scale")
	require.True(t, ok)
	assert.Equal(t, Vec2{1, 1}, v)

	require.NoError(t, n.Set("position", map[string]any{"x": 3.0, "y": 4}))
	v, _ = n.Get("position")
	assert.Equal(t, Vec2{3, 4}, v)

	require.NoError(t, n.Set("position", []any{1.0, 2.0}))
	v, _ = n.Get("position")
	assert.Equal(t, Vec2{1, 2}, v)

	require.NoError(t, n.Set("modulate", "#ff000080"))
	v, _ = n.Get("modulate")
	c := v.(Color)
	assert.InDelta(t, 1.0, c.R, 1e-9)
	assert.InDelta(t, 128.0/255, c.A, 1e-9)

	assert.ErrorIs(t, n.Set("text", "x"), ErrUnknownProperty)
	assert.ErrorIs(t, n.Set("visible", "yes"), ErrInvalidValue)
	assert.ErrorIs(t, n.Set("z_index", 1.5), ErrInvalidValue)

	n.SetRaw("position", nil, false)
	_, explicit := n.Explicit("position")
	assert.False(t, explicit)
}

func TestTypeInheritance(t *testing.T) {
	sprite, ok := LookupType("Sprite2D")
	require.True(t, ok)
	assert.True(t, sprite.Is("Node2D"))
	assert.True(t, sprite.Is("Node"))
	assert.False(t, sprite.Is("Control"))
	assert.Equal(t, Space2D, sprite.Space)
	assert.Equal(t, []string{"Sprite2D", "Node2D", "Node"}, sprite.Ancestry())

	mesh, _ := LookupType("MeshInstance3D")
	assert.Equal(t, Space3D, mesh.Space)
	timer, _ := LookupType("Timer")
	assert.Equal(t, SpaceNone, timer.Space)
}

func TestResolve(t *testing.T) {
	root := buildTree(t)
	b := root.Child("A").Child("B")
	c := b.Child("C")

	tests := []struct {
		path string
		want *Node
	}{
		{"", root},
		{"/", root},
		{".", root},
		{"root", root},
		{"A/B", b},
		{"A/B/C", c},
		{"Main", root},
		{"Main/A/B", b},
		{"/root/Main", root},
		{"/root/Main/A/B/C", c},
		{"/Main/A", root.Child("A")},
		{"A/B/../B/C", c},
		{"A/..", root},
		{"..", nil},
		{"Nope", nil},
		{"/root/Other/A", nil},
		{"/root/Main/../Main", nil},
		{"/elsewhere", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Same(t, tt.want, Resolve(root, tt.path))
		})
	}

	assert.Nil(t, Resolve(nil, "A"))
}

func TestResolveRelativeBeforeRootName(t *testing.T) {
	root := mustNode(t, "Node", "Main")
	inner := mustNode(t, "Node", "Main")
	require.NoError(t, root.AddChild(inner, -1))
	assert.Same(t, inner, Resolve(root, "Main"))
}

func TestPaths(t *testing.T) {
	root := buildTree(t)
	c := root.Child("A").Child("B").Child("C")
	assert.Equal(t, ".", PathFrom(root, root))
	assert.Equal(t, "A/B/C", PathFrom(root, c))
	assert.Equal(t, "/root/Main/A/B/C", AbsolutePath(root, c))
	assert.Equal(t, "/root/Main", AbsolutePath(root, root))

	stray := mustNode(t, "Node", "Stray")
	assert.Equal(t, "", PathFrom(root, stray))
}

func TestUniqueName(t *testing.T) {
	parent := mustNode(t, "Node", "P")
	assert.Equal(t, "Box", UniqueName(parent, "Box"))
	seen := map[string]bool{}
	require.NoError(t, parent.AddChild(mustNode(t, "Node", "Box"), -1))
	for i := 0; i < 4; i++ {
		name := UniqueName(parent, "Box")
		assert.False(t, seen[name])
		seen[name] = true
		require.NoError(t, parent.AddChild(mustNode(t, "Node", name), -1))
	}
	assert.Equal(t, map[string]bool{"Box2": true, "Box3": true, "Box4": true, "Box5": true}, seen)
}

func TestDuplicate(t *testing.T) {
	root := buildTree(t)
	a := root.Child("A")
	a.AddGroup("enemies")
	a.SetBehavior(&Behavior{Path: "res://a.lua", Source: "x = 1", Methods: []string{"ready"}})
	require.NoError(t, a.Set("position", Vec2{5, 6}))
	b := a.Child("B")
	b.SetOwner(a)

	cp := Duplicate(a)
	assert.Nil(t, cp.Parent())
	assert.NotEqual(t, a.ID(), cp.ID())
	assert.True(t, cp.InGroup("enemies"))
	require.NotNil(t, cp.Behavior())
	assert.NotSame(t, a.Behavior(), cp.Behavior())
	assert.Equal(t, "x = 1", cp.Behavior().Source)
	pos, _ := cp.Get("position")
	assert.Equal(t, Vec2{5, 6}, pos)

	cb := cp.Child("B")
	require.NotNil(t, cb)
	assert.Same(t, cp, cb.Owner(), "owner inside the subtree is remapped")
	assert.Same(t, root, cp.Owner(), "owner outside the subtree is kept")
	assert.Same(t, root, cb.Child("C").Owner())

	cp.AddGroup("copy-only")
	assert.False(t, a.InGroup("copy-only"))
}

func TestGroups(t *testing.T) {
	n := mustNode(t, "Node", "N")
	assert.True(t, n.AddGroup("b"))
	assert.False(t, n.AddGroup("b"))
	assert.True(t, n.AddGroup("a"))
	assert.Equal(t, []string{"a", "b"}, n.Groups())
	assert.True(t, n.RemoveGroup("a"))
	assert.False(t, n.RemoveGroup("a"))
}

func TestTransform2DRoundTrip(t *testing.T) {
	parent := mustNode(t, "Node2D", "P")
	child := mustNode(t, "Node2D", "C")
	require.NoError(t, parent.AddChild(child, -1))
	require.NoError(t, parent.Set("position", Vec2{100, 50}))
	require.NoError(t, parent.Set("rotation", math.Pi/2))
	require.NoError(t, child.Set("position", Vec2{10, 0}))

	g := Global2D(child)
	assert.InDelta(t, 100, g.Origin.X, 1e-9)
	assert.InDelta(t, 60, g.Origin.Y, 1e-9)

	local := Global2D(parent).Inverse().Mul(g)
	pos, rot, scale := local.Decompose()
	assert.InDelta(t, 10, pos.X, 1e-9)
	assert.InDelta(t, 0, pos.Y, 1e-9)
	assert.InDelta(t, 0, rot, 1e-9)
	assert.InDelta(t, 1, scale.X, 1e-9)
	assert.InDelta(t, 1, scale.Y, 1e-9)
}

func TestGlobal3D(t *testing.T) {
	a := mustNode(t, "Node3D", "A")
	b := mustNode(t, "MeshInstance3D", "B")
	require.NoError(t, a.AddChild(b, -1))
	require.NoError(t, a.Set("position", Vec3{1, 2, 3}))
	require.NoError(t, b.Set("position", Vec3{1, 1, 1}))
	assert.Equal(t, Vec3{2, 3, 4}, Global3D(b))
}

func TestEncodeDecode(t *testing.T) {
	root := buildTree(t)
	c := root.Child("A").Child("B").Child("C")
	require.NoError(t, c.Set("position", Vec2{10, 20}))
	require.NoError(t, c.Set("z_index", 3))
	require.NoError(t, c.Set("modulate", Color{1, 0, 0, 1}))
	c.AddGroup("sprites")
	c.SetBehavior(&Behavior{Path: "res://c.lua", Source: "function ready() end"})

	data, skipped, err := Encode(root)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	loaded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "Main", loaded.Name())
	lc := Resolve(loaded, "A/B/C")
	require.NotNil(t, lc)
	assert.Equal(t, c.ID(), lc.ID())
	assert.Equal(t, "Sprite2D", lc.TypeName())
	assert.Equal(t, []string{"sprites"}, lc.Groups())
	assert.Equal(t, c.Properties(), lc.Properties())
	require.NotNil(t, lc.Behavior())
	assert.Equal(t, "res://c.lua", lc.Behavior().Path)
	assert.Same(t, loaded, lc.Owner())
	assert.Nil(t, loaded.Owner())
}

func TestEncodeSkipsUnownedNodes(t *testing.T) {
	root := buildTree(t)
	b := root.Child("A").Child("B")
	b.SetOwner(nil)

	data, skipped, err := Encode(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"A/B"}, skipped)

	loaded, err := Decode(data)
	require.NoError(t, err)
	assert.Nil(t, Resolve(loaded, "A/B"))
	assert.NotNil(t, Resolve(loaded, "A"))
	assert.NotNil(t, Resolve(loaded, "UI"))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("format: 9\nroot: {name: X, type: Node}\n"))
	assert.ErrorIs(t, err, ErrBadFormat)

	_, err = Decode([]byte("format: 1\nroot: {name: X, type: Bogus}\n"))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte("format: 1\n"))
	assert.Error(t, err)

	_, err = Decode([]byte(":::"))
	assert.Error(t, err)
}

func TestNewResource(t *testing.T) {
	r, unknown, err := NewResource("StandardMaterial3D", map[string]any{
		"albedo_color": "#00ff00",
		"metallic":     0.5,
		"shininess":    3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shininess"}, unknown)
	assert.Equal(t, 0.5, r.Properties["metallic"])

	data, err := r.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "resource: StandardMaterial3D")

	_, _, err = NewResource("Node2D", nil)
	assert.Error(t, err)
	_, _, err = NewResource("Missing", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}
