package georgb

import (
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePreview(t *testing.T) {
	dir := t.TempDir()
	rgb := gradient(200, 100)

	png := filepath.Join(dir, "quicklook.png")
	require.NoError(t, WritePreview(png, rgb, 50))
	img, err := imaging.Open(png)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())

	// Never upscaled.
	jpg := filepath.Join(dir, "quicklook.jpg")
	require.NoError(t, WritePreview(jpg, rgb, 1000))
	img, err = imaging.Open(jpg)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestWritePreviewErrors(t *testing.T) {
	dir := t.TempDir()
	rgb := gradient(10, 10)
	assert.Error(t, WritePreview(filepath.Join(dir, "q.png"), rgb, 0))
	assert.Error(t, WritePreview(filepath.Join(dir, "q.xyz"), rgb, 10))
	assert.Error(t, WritePreview(filepath.Join(dir, "missing", "q.png"), rgb, 10))
}

func TestRGBBufferImage(t *testing.T) {
	rgb := gradient(3, 2)
	img := rgb.Image()
	c := img.NRGBAAt(2, 1)
	assert.Equal(t, uint8(2), c.R)
	assert.Equal(t, uint8(1), c.G)
	assert.Equal(t, uint8(3), c.B)
	assert.Equal(t, uint8(255), c.A)

	assert.Equal(t, []byte{0, 0, 0, 1, 0, 1, 2, 0, 2, 0, 1, 1, 1, 1, 0, 2, 1, 3}, rgb.Interleaved())
}
