// Package render rasterizes the 2D portion of a scene into an RGBA image.
// Shapes are drawn as the axis-aligned bounds of their transformed rectangles.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sort"

	"github.com/standardbeagle/scenebridge/internal/scene"
)

// Background is the default clear color.
var Background = color.RGBA{R: 0x4d, G: 0x4d, B: 0x4d, A: 0xff}

// Viewport is the render target size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type item struct {
	z     int64
	order int
	rect  image.Rectangle
	col   color.RGBA
}

// Stats summarizes one render pass.
type Stats struct {
	Drawn  int `json:"drawn"`
	Culled int `json:"culled"`
}

// Render draws root into a new image of the viewport size. A nil root yields
// a cleared frame.
func Render(root *scene.Node, vp Viewport) (*image.RGBA, Stats) {
	img := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: Background}, image.Point{}, draw.Src)
	var stats Stats
	if root == nil {
		return img, stats
	}

	offset := cameraOffset(root, vp)
	var items []item
	order := 0
	root.Walk(func(n *scene.Node) bool {
		if !visible(n) {
			return false
		}
		r, col, ok := shape(n)
		if !ok {
			return true
		}
		order++
		g := scene.Global2D(n)
		bounds := transformRect(g, r).Sub(offset)
		if !bounds.Overlaps(img.Bounds()) {
			stats.Culled++
			return true
		}
		z, _ := n.Get("z_index")
		zi, _ := z.(int64)
		items = append(items, item{z: zi, order: order, rect: bounds, col: col})
		return true
	})

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].z != items[j].z {
			return items[i].z < items[j].z
		}
		return items[i].order < items[j].order
	})
	for _, it := range items {
		draw.Draw(img, it.rect, &image.Uniform{C: it.col}, image.Point{}, draw.Over)
		stats.Drawn++
	}
	return img, stats
}

func visible(n *scene.Node) bool {
	v, ok := n.Get("visible")
	if !ok {
		return true
	}
	b, _ := v.(bool)
	return b
}

// shape returns the local rectangle and fill color of drawable nodes.
func shape(n *scene.Node) (rect [4]float64, col color.RGBA, ok bool) {
	t := n.Type()
	mod := colorProp(n, "modulate")
	switch {
	case t.Is("ColorRect"):
		size := vec2Prop(n, "size")
		return [4]float64{0, 0, size.X, size.Y}, premul(multiply(colorProp(n, "color"), mod)), true
	case t.Is("Sprite2D"):
		size := vec2Prop(n, "size")
		x, y := 0.0, 0.0
		if c, _ := n.Get("centered"); c == true {
			x, y = -size.X/2, -size.Y/2
		}
		return [4]float64{x, y, x + size.X, y + size.Y}, premul(mod), true
	case t.Is("Button"):
		size := vec2Prop(n, "size")
		base := scene.Color{R: 0.2, G: 0.2, B: 0.25, A: 1}
		return [4]float64{0, 0, size.X, size.Y}, premul(multiply(base, mod)), true
	}
	return rect, col, false
}

func transformRect(t scene.Transform2D, r [4]float64) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range []scene.Vec2{{X: r[0], Y: r[1]}, {X: r[2], Y: r[1]}, {X: r[0], Y: r[3]}, {X: r[2], Y: r[3]}} {
		q := t.Apply(p)
		minX, maxX = math.Min(minX, q.X), math.Max(maxX, q.X)
		minY, maxY = math.Min(minY, q.Y), math.Max(maxY, q.Y)
	}
	return image.Rect(int(math.Round(minX)), int(math.Round(minY)), int(math.Round(maxX)), int(math.Round(maxY)))
}

func cameraOffset(root *scene.Node, vp Viewport) image.Point {
	var off image.Point
	found := false
	root.Walk(func(n *scene.Node) bool {
		if found {
			return false
		}
		if n.Type().Is("Camera2D") {
			if en, _ := n.Get("enabled"); en == true {
				p := scene.Global2D(n).Origin
				off = image.Pt(int(math.Round(p.X))-vp.Width/2, int(math.Round(p.Y))-vp.Height/2)
				found = true
			}
		}
		return true
	})
	return off
}

func colorProp(n *scene.Node, name string) scene.Color {
	if v, ok := n.Get(name); ok {
		if c, ok := v.(scene.Color); ok {
			return c
		}
	}
	return scene.Color{R: 1, G: 1, B: 1, A: 1}
}

func vec2Prop(n *scene.Node, name string) scene.Vec2 {
	if v, ok := n.Get(name); ok {
		if c, ok := v.(scene.Vec2); ok {
			return c
		}
	}
	return scene.Vec2{}
}

func multiply(a, b scene.Color) scene.Color {
	return scene.Color{R: a.R * b.R, G: a.G * b.G, B: a.B * b.B, A: a.A * b.A}
}

// premul converts to the alpha-premultiplied form image/draw expects.
func premul(c scene.Color) color.RGBA {
	r, g, b, a := c.RGBA8()
	return color.RGBA{
		R: uint8(uint16(r) * uint16(a) / 255),
		G: uint8(uint16(g) * uint16(a) / 255),
		B: uint8(uint16(b) * uint16(a) / 255),
		A: a,
	}
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
