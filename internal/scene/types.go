package scene

import (
	"sort"
)

// Space is the coordinate space a node type lives in.
type Space int

const (
	SpaceNone Space = iota
	Space2D
	Space3D
)

func (s Space) String() string {
	switch s {
	case Space2D:
		return "2d"
	case Space3D:
		return "3d"
	default:
		return "none"
	}
}

// PropertyDef declares one property of a type.
type PropertyDef struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"type"`
	Default any    `json:"default"`
}

// TypeInfo describes a registered node or resource type.
type TypeInfo struct {
	Name        string
	Base        string
	Description string
	Space       Space
	Resource    bool
	Abstract    bool

	own []PropertyDef
}

var registry = map[string]*TypeInfo{}

func register(t *TypeInfo) {
	if t.Base != "" {
		if base, ok := registry[t.Base]; ok && t.Space == SpaceNone {
			t.Space = base.Space
		}
	}
	registry[t.Name] = t
}

// LookupType returns the registered type with the given name.
func LookupType(name string) (*TypeInfo, bool) {
	t, ok := registry[name]
	return t, ok
}

// TypeNames returns all registered type names, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Is reports whether t is the named type or inherits from it.
func (t *TypeInfo) Is(name string) bool {
	for cur := t; cur != nil; cur = registry[cur.Base] {
		if cur.Name == name {
			return true
		}
		if cur.Base == "" {
			break
		}
	}
	return false
}

// Ancestry returns the type chain from t up to its root type.
func (t *TypeInfo) Ancestry() []string {
	var out []string
	for cur := t; cur != nil; cur = registry[cur.Base] {
		out = append(out, cur.Name)
		if cur.Base == "" {
			break
		}
	}
	return out
}

// Property looks up a declared property, including inherited ones.
func (t *TypeInfo) Property(name string) (PropertyDef, bool) {
	for cur := t; cur != nil; cur = registry[cur.Base] {
		for _, p := range cur.own {
			if p.Name == name {
				return p, true
			}
		}
		if cur.Base == "" {
			break
		}
	}
	return PropertyDef{}, false
}

// Properties returns every declared property, base types first.
func (t *TypeInfo) Properties() []PropertyDef {
	chain := t.Ancestry()
	var out []PropertyDef
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, registry[chain[i]].own...)
	}
	return out
}

var (
	zero2 = Vec2{}
	one2  = Vec2{X: 1, Y: 1}
	zero3 = Vec3{}
	one3  = Vec3{X: 1, Y: 1, Z: 1}
	white = Color{R: 1, G: 1, B: 1, A: 1}
)

func init() {
	register(&TypeInfo{Name: "Node", Description: "Base of every scene node.", own: []PropertyDef{
		{"editor_description", KindString, ""},
		{"process_priority", KindInt, int64(0)},
	}})

	register(&TypeInfo{Name: "Node2D", Base: "Node", Space: Space2D, Description: "2D node with a position, rotation and scale.", own: []PropertyDef{
		{"position", KindVec2, zero2},
		{"rotation", KindFloat, 0.0},
		{"scale", KindVec2, one2},
		{"visible", KindBool, true},
		{"z_index", KindInt, int64(0)},
		{"modulate", KindColor, white},
	}})
	register(&TypeInfo{Name: "Sprite2D", Base: "Node2D", Description: "Textured rectangle.", own: []PropertyDef{
		{"texture", KindString, ""},
		{"size", KindVec2, Vec2{X: 32, Y: 32}},
		{"centered", KindBool, true},
		{"flip_h", KindBool, false},
		{"flip_v", KindBool, false},
	}})
	register(&TypeInfo{Name: "Camera2D", Base: "Node2D", Description: "2D viewport camera.", own: []PropertyDef{
		{"zoom", KindVec2, one2},
		{"enabled", KindBool, true},
	}})
	register(&TypeInfo{Name: "CharacterBody2D", Base: "Node2D", Description: "Kinematic 2D body.", own: []PropertyDef{
		{"velocity", KindVec2, zero2},
		{"collision_layer", KindInt, int64(1)},
	}})
	register(&TypeInfo{Name: "Area2D", Base: "Node2D", Description: "2D overlap region.", own: []PropertyDef{
		{"monitoring", KindBool, true},
		{"collision_layer", KindInt, int64(1)},
	}})
	register(&TypeInfo{Name: "CollisionShape2D", Base: "Node2D", Description: "Collision shape for a 2D body.", own: []PropertyDef{
		{"shape", KindString, ""},
		{"disabled", KindBool, false},
	}})

	register(&TypeInfo{Name: "Control", Base: "Node", Space: Space2D, Description: "Base UI element.", own: []PropertyDef{
		{"position", KindVec2, zero2},
		{"size", KindVec2, zero2},
		{"rotation", KindFloat, 0.0},
		{"scale", KindVec2, one2},
		{"visible", KindBool, true},
		{"modulate", KindColor, white},
		{"tooltip_text", KindString, ""},
	}})
	register(&TypeInfo{Name: "Container", Base: "Control", Description: "Control that arranges its children."})
	register(&TypeInfo{Name: "ColorRect", Base: "Control", Description: "Solid color rectangle.", own: []PropertyDef{
		{"color", KindColor, white},
	}})
	register(&TypeInfo{Name: "Label", Base: "Control", Description: "Text display.", own: []PropertyDef{
		{"text", KindString, ""},
		{"horizontal_alignment", KindInt, int64(0)},
	}})
	register(&TypeInfo{Name: "Button", Base: "Control", Description: "Clickable button.", own: []PropertyDef{
		{"text", KindString, ""},
		{"disabled", KindBool, false},
		{"flat", KindBool, false},
	}})

	register(&TypeInfo{Name: "Node3D", Base: "Node", Space: Space3D, Description: "3D node with a position, rotation and scale.", own: []PropertyDef{
		{"position", KindVec3, zero3},
		{"rotation", KindVec3, zero3},
		{"scale", KindVec3, one3},
		{"visible", KindBool, true},
	}})
	register(&TypeInfo{Name: "MeshInstance3D", Base: "Node3D", Description: "Renders a mesh.", own: []PropertyDef{
		{"mesh", KindString, ""},
		{"cast_shadow", KindBool, true},
	}})
	register(&TypeInfo{Name: "Camera3D", Base: "Node3D", Description: "3D viewport camera.", own: []PropertyDef{
		{"fov", KindFloat, 75.0},
		{"current", KindBool, false},
	}})

	register(&TypeInfo{Name: "Timer", Base: "Node", Description: "Countdown timer.", own: []PropertyDef{
		{"wait_time", KindFloat, 1.0},
		{"one_shot", KindBool, false},
		{"autostart", KindBool, false},
	}})
	register(&TypeInfo{Name: "AudioStreamPlayer", Base: "Node", Description: "Non-positional audio playback.", own: []PropertyDef{
		{"stream", KindString, ""},
		{"volume_db", KindFloat, 0.0},
		{"autoplay", KindBool, false},
	}})

	register(&TypeInfo{Name: "Resource", Resource: true, Abstract: true, Description: "Base of standalone assets.", own: []PropertyDef{
		{"resource_name", KindString, ""},
	}})
	register(&TypeInfo{Name: "StandardMaterial3D", Base: "Resource", Resource: true, Description: "PBR material.", own: []PropertyDef{
		{"albedo_color", KindColor, white},
		{"metallic", KindFloat, 0.0},
		{"roughness", KindFloat, 1.0},
	}})
	register(&TypeInfo{Name: "Gradient", Base: "Resource", Resource: true, Description: "Color ramp.", own: []PropertyDef{
		{"start_color", KindColor, Color{A: 1}},
		{"end_color", KindColor, white},
		{"interpolation_mode", KindInt, int64(0)},
	}})
	register(&TypeInfo{Name: "LabelSettings", Base: "Resource", Resource: true, Description: "Shared text styling.", own: []PropertyDef{
		{"font_size", KindInt, int64(16)},
		{"font_color", KindColor, white},
	}})
}
