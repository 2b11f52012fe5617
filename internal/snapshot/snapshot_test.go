package snapshot

import (
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDiffer(t *testing.T) {
	d := NewDiffer(0)
	a := solid(10, 10, color.RGBA{A: 255})
	b := solid(10, 10, color.RGBA{A: 255})
	b.SetRGBA(2, 3, color.RGBA{R: 255, A: 255})
	b.SetRGBA(4, 5, color.RGBA{R: 255, A: 255})

	diff, err := d.Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, diff.Pixels)
	assert.InDelta(t, 0.02, diff.Fraction, 1e-9)
	assert.Equal(t, image.Rect(2, 3, 5, 6), diff.Bounds)
	assert.True(t, d.HasSignificantChanges(diff.Fraction))

	same, err := d.Compare(a, a)
	require.NoError(t, err)
	assert.Zero(t, same.Pixels)
	assert.True(t, same.Bounds.Empty())

	_, err = d.Compare(a, solid(5, 5, color.RGBA{}))
	assert.Error(t, err)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("main-menu_v2.1"))
	for _, bad := range []string{"", "../escape", "a/b", ".hidden", "with space"} {
		assert.Error(t, ValidateName(bad), bad)
	}
}

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0.01, "")
	require.NoError(t, err)

	base := solid(20, 10, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	b, err := m.CreateBaseline("menu", Capture{ScenePath: "res://menu.scene", Frame: 7, NodeCount: 3, Image: base})
	require.NoError(t, err)
	assert.Equal(t, Viewport{Width: 20, Height: 10}, b.Viewport)
	assert.Equal(t, uint64(7), b.Frame)

	res, err := m.CompareToBaseline("menu", Capture{Frame: 9, Image: base})
	require.NoError(t, err)
	assert.False(t, res.HasChanges)
	assert.Zero(t, res.DiffPercentage)
	assert.Nil(t, res.ChangedRegion)
	assert.Equal(t, "No visual changes detected", res.Description)
	assert.FileExists(t, res.DiffImagePath)

	changed := solid(20, 10, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	for x := 0; x < 10; x++ {
		changed.SetRGBA(x, 0, color.RGBA{G: 255, A: 255})
	}
	res, err = m.CompareToBaseline("menu", Capture{Image: changed})
	require.NoError(t, err)
	assert.True(t, res.HasChanges)
	assert.InDelta(t, 5.0, res.DiffPercentage, 1e-9)
	require.NotNil(t, res.ChangedRegion)
	assert.Equal(t, Region{X: 0, Y: 0, Width: 10, Height: 1}, *res.ChangedRegion)

	list, err := m.ListBaselines()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "menu", list[0].Name)

	require.NoError(t, m.DeleteBaseline("menu"))
	_, err = m.GetBaseline("menu")
	assert.True(t, errors.Is(err, ErrBaselineNotFound))
}

func TestCompareSizeMismatch(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0, "")
	require.NoError(t, err)
	_, err = m.CreateBaseline("a", Capture{Image: solid(4, 4, color.RGBA{A: 255})})
	require.NoError(t, err)

	res, err := m.CompareToBaseline("a", Capture{Image: solid(8, 8, color.RGBA{A: 255})})
	require.NoError(t, err)
	assert.True(t, res.HasChanges)
	assert.Contains(t, res.Description, "dimensions differ")
	assert.Empty(t, res.DiffImagePath)
}

func TestCompareMissingBaseline(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0, "")
	require.NoError(t, err)
	_, err = m.CompareToBaseline("nope", Capture{Image: solid(1, 1, color.RGBA{})})
	assert.True(t, errors.Is(err, ErrBaselineNotFound))

	_, err = m.CreateBaseline("../x", Capture{Image: solid(1, 1, color.RGBA{})})
	assert.Error(t, err)
}

func TestListSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 0, "")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir+"/junk", 0o755))

	list, err := m.ListBaselines()
	require.NoError(t, err)
	assert.Empty(t, list)
}
