package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scenebridge/internal/scene"
)

func node(t *testing.T, typ, name string, props map[string]any) *scene.Node {
	t.Helper()
	n, err := scene.NewNode(typ, name)
	require.NoError(t, err)
	for k, v := range props {
		require.NoError(t, n.Set(k, v))
	}
	return n
}

func TestRenderEmpty(t *testing.T) {
	img, stats := Render(nil, Viewport{Width: 8, Height: 4})
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, Background, img.RGBAAt(3, 3))
	assert.Zero(t, stats.Drawn)
}

func TestRenderColorRect(t *testing.T) {
	root := node(t, "Node2D", "Main", map[string]any{"position": scene.Vec2{X: 10, Y: 10}})
	rect := node(t, "ColorRect", "Red", map[string]any{
		"position": scene.Vec2{X: 5, Y: 5},
		"size":     scene.Vec2{X: 10, Y: 10},
		"color":    "#ff0000",
	})
	require.NoError(t, root.AddChild(rect, -1))

	img, stats := Render(root, Viewport{Width: 64, Height: 64})
	assert.Equal(t, 1, stats.Drawn)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(16, 16))
	assert.Equal(t, Background, img.RGBAAt(14, 14))
	assert.Equal(t, Background, img.RGBAAt(25, 25))
}

func TestRenderHiddenAndZOrder(t *testing.T) {
	root := node(t, "Node2D", "Main", nil)
	hidden := node(t, "Node2D", "Hidden", map[string]any{"visible": false})
	under := node(t, "Sprite2D", "Under", map[string]any{"centered": false, "z_index": 1, "modulate": "#0000ff"})
	over := node(t, "Sprite2D", "Over", map[string]any{"centered": false, "modulate": "#00ff00"})
	inHidden := node(t, "Sprite2D", "Inside", map[string]any{"centered": false})
	require.NoError(t, root.AddChild(under, -1))
	require.NoError(t, root.AddChild(over, -1))
	require.NoError(t, root.AddChild(hidden, -1))
	require.NoError(t, hidden.AddChild(inHidden, -1))

	img, stats := Render(root, Viewport{Width: 40, Height: 40})
	assert.Equal(t, 2, stats.Drawn)
	// Higher z_index draws last even though it comes first in the tree.
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(5, 5))
}

func TestRenderCulls(t *testing.T) {
	root := node(t, "Node2D", "Main", nil)
	far := node(t, "Sprite2D", "Far", map[string]any{"position": scene.Vec2{X: 1000, Y: 1000}})
	require.NoError(t, root.AddChild(far, -1))
	_, stats := Render(root, Viewport{Width: 10, Height: 10})
	assert.Equal(t, 1, stats.Culled)
	assert.Zero(t, stats.Drawn)
}

func TestEncodePNG(t *testing.T) {
	img, _ := Render(nil, Viewport{Width: 4, Height: 4})
	data, err := EncodePNG(img)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
}
