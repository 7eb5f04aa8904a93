package predict

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/samples"
)

func writeSamples(t *testing.T, dir string, categories ...string) {
	t.Helper()
	for _, category := range categories {
		for i := 0; i < samples.PerCategory; i++ {
			img := image.NewGray(image.Rect(0, 0, 32, 32))
			for p := range img.Pix {
				img.Pix[p] = 255
			}
			for y := 4; y < 28; y++ {
				img.SetGray(8+i, y, color.Gray{Y: 0})
			}
			var buf bytes.Buffer
			require.NoError(t, png.Encode(&buf, img))
			require.NoError(t, os.WriteFile(samples.Path(dir, category, i), buf.Bytes(), 0o644))
		}
	}
}

func TestClassifier_All(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, samples.Categories...)
	net, err := model.New("dense", 1)
	require.NoError(t, err)

	var out bytes.Buffer
	c := &Classifier{Net: net, SamplesDir: dir, Out: &out}
	preds, err := c.All()
	require.NoError(t, err)

	require.Len(t, preds, len(samples.Categories))
	for _, category := range samples.Categories {
		require.Len(t, preds[category], samples.PerCategory)
		for _, p := range preds[category] {
			assert.True(t, p >= 0 && p <= 9)
		}
	}
	assert.Contains(t, out.String(), "Handwritten:\n")
	assert.Equal(t, len(samples.Categories)*(samples.PerCategory+1), strings.Count(out.String(), "\n"))
}

func TestClassifier_Dumps(t *testing.T) {
	dir := t.TempDir()
	dumps := t.TempDir()
	writeSamples(t, dir, "Computer")
	net, err := model.New("dense", 2)
	require.NoError(t, err)

	c := &Classifier{Net: net, SamplesDir: dir, DumpDir: dumps, DumpJSON: true, DumpPNG: true}
	results, err := c.Category("Computer")
	require.NoError(t, err)
	require.Len(t, results, samples.PerCategory)
	assert.Equal(t, "Computer", results[4].Category)
	assert.Equal(t, 4, results[4].Index)

	assert.FileExists(t, filepath.Join(dumps, "Computer-9.json"))
	assert.FileExists(t, filepath.Join(dumps, "komprimiert-9.png"))
}

func TestClassifier_MissingCategory(t *testing.T) {
	net, err := model.New("dense", 3)
	require.NoError(t, err)
	c := &Classifier{Net: net, SamplesDir: t.TempDir()}
	_, err = c.All()
	assert.Error(t, err)
}
