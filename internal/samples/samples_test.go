package samples

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// digitPNG draws a dark vertical stroke on a white w x h RGBA canvas.
func digitPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x >= w/2-w/10 && x < w/2+w/10 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	s, err := Decode(digitPNG(t, 100, 80))
	require.NoError(t, err)
	require.Len(t, s.Vector, Size*Size)

	// Background inverts to 0, the stroke to 1.
	assert.InDelta(t, 0, s.Vector[5*Size+1], 1e-6)
	assert.InDelta(t, 1, s.Vector[5*Size+Size/2], 1e-6)
	for _, v := range s.Vector {
		require.True(t, v >= 0 && v <= 1)
	}
	assert.Equal(t, image.Rect(0, 0, Size, Size), s.Resized.Bounds())
}

func TestDecode_AlreadySmall(t *testing.T) {
	s, err := Decode(digitPNG(t, Size, Size))
	require.NoError(t, err)
	assert.InDelta(t, 1, s.Vector[Size/2], 1e-6)
}

func TestDecode_NotPNG(t *testing.T) {
	_, err := Decode([]byte("GIF89a not really"))
	assert.ErrorIs(t, err, ErrNotPNG)

	_, err = Decode([]byte("plain text"))
	assert.ErrorIs(t, err, ErrNotPNG)
}

func writeCategory(t *testing.T, dir, category string) {
	t.Helper()
	for i := 0; i < PerCategory; i++ {
		require.NoError(t, os.WriteFile(Path(dir, category, i), digitPNG(t, 40+i, 40), 0o644))
	}
}

func TestLoadCategory(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "Font")

	got, err := LoadCategory(dir, "Font")
	require.NoError(t, err)
	require.Len(t, got, PerCategory)
	for i, s := range got {
		assert.Equal(t, i, s.Index)
	}

	_, err = LoadCategory(dir, "Handwritten")
	assert.Error(t, err)
}

func TestDumps(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "MNIST")
	got, err := LoadCategory(dir, "MNIST")
	require.NoError(t, err)

	require.NoError(t, DumpJSON(dir, "MNIST", got[3]))
	raw, err := os.ReadFile(filepath.Join(dir, "MNIST-3.json"))
	require.NoError(t, err)
	var decoded map[string][]float32
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, got[3].Vector, decoded["results"])

	require.NoError(t, DumpPNG(dir, got[3]))
	f, err := os.Open(filepath.Join(dir, "komprimiert-3.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, Size, img.Bounds().Dx())
}
