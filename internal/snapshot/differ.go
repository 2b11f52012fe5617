package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// Differ handles image comparison
type Differ struct {
	threshold float64
}

// NewDiffer creates a new image differ
func NewDiffer(threshold float64) *Differ {
	if threshold <= 0 {
		threshold = 0.01 // Default 1% difference threshold
	}
	return &Differ{threshold: threshold}
}

// Diff is the outcome of comparing two frames.
type Diff struct {
	Fraction float64
	Pixels   int
	Bounds   image.Rectangle // Empty when nothing changed
	Image    *image.RGBA
}

// Compare compares two images pixel by pixel
func (d *Differ) Compare(baseline, current image.Image) (*Diff, error) {
	baselineBounds := baseline.Bounds()
	currentBounds := current.Bounds()

	if baselineBounds.Dx() != currentBounds.Dx() || baselineBounds.Dy() != currentBounds.Dy() {
		return nil, fmt.Errorf("image dimensions differ: baseline %dx%d vs current %dx%d",
			baselineBounds.Dx(), baselineBounds.Dy(),
			currentBounds.Dx(), currentBounds.Dy())
	}

	w, h := baselineBounds.Dx(), baselineBounds.Dy()
	out := &Diff{Image: image.NewRGBA(image.Rect(0, 0, w, h))}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			baselineColor := baseline.At(baselineBounds.Min.X+x, baselineBounds.Min.Y+y)
			currentColor := current.At(currentBounds.Min.X+x, currentBounds.Min.Y+y)

			if colorsEqual(baselineColor, currentColor) {
				// No difference - show current pixel dimmed
				r, g, b, a := currentColor.RGBA()
				out.Image.Set(x, y, color.RGBA{
					R: uint8(r >> 9), // Darken
					G: uint8(g >> 9),
					B: uint8(b >> 9),
					A: uint8(a >> 8),
				})
				continue
			}
			out.Image.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
			out.Pixels++
			out.Bounds = out.Bounds.Union(image.Rect(x, y, x+1, y+1))
		}
	}

	if total := w * h; total > 0 {
		out.Fraction = float64(out.Pixels) / float64(total)
	}
	return out, nil
}

// SaveDiffImage saves a diff image to disk
func (d *Differ) SaveDiffImage(img image.Image, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	return nil
}

// HasSignificantChanges checks if diff fraction exceeds threshold
func (d *Differ) HasSignificantChanges(fraction float64) bool {
	return fraction > d.threshold
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

func colorsEqual(c1, c2 color.Color) bool {
	r1, g1, b1, a1 := c1.RGBA()
	r2, g2, b2, a2 := c2.RGBA()

	// Allow small tolerance (1 unit in 8-bit color space)
	const tolerance uint32 = 256

	return abs(r1, r2) <= tolerance &&
		abs(g1, g2) <= tolerance &&
		abs(b1, b2) <= tolerance &&
		abs(a1, a2) <= tolerance
}

func abs(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
