package mnist

import (
	"bytes"
	"compress/gzip"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSplit writes n images whose first pixel is the image index and
// whose label is index % 10.
func writeSplit(t *testing.T, dir, imagesFile, labelsFile string, n int, gz bool) {
	t.Helper()
	img := &Images{Count: n, Rows: ImageSize, Cols: ImageSize, Pixels: make([]byte, n*NumPixels)}
	labels := make([]byte, n)
	for i := 0; i < n; i++ {
		img.Pixels[i*NumPixels] = byte(i)
		img.Pixels[i*NumPixels+1] = 255
		labels[i] = byte(i % NumClasses)
	}

	var ib, lb bytes.Buffer
	require.NoError(t, WriteImages(&ib, img))
	require.NoError(t, WriteLabels(&lb, labels))

	write := func(name string, data []byte) {
		if gz {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write(data)
			require.NoError(t, err)
			require.NoError(t, zw.Close())
			data = buf.Bytes()
			name += ".gz"
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	write(imagesFile, ib.Bytes())
	write(labelsFile, lb.Bytes())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, TrainImagesFile, TrainLabelsFile, 30, true)
	writeSplit(t, dir, TestImagesFile, TestLabelsFile, 12, false)

	sets, err := Load(dir, Options{ValidationSize: 5, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, 5, sets.Validation.NumExamples())
	assert.Equal(t, 25, sets.Train.NumExamples())
	assert.Equal(t, 12, sets.Test.NumExamples())

	// Validation takes the head of the training file.
	assert.Equal(t, float32(0), sets.Validation.Image(0)[0])
	assert.Equal(t, float32(5)/255, sets.Train.Image(0)[0])
	assert.Equal(t, float32(1), sets.Train.Image(0)[1])
	assert.Equal(t, 5, sets.Train.Label(0))

	x, y := sets.Test.Slice(0, 3)
	assert.Equal(t, []int{3, NumPixels}, []int(x.Shape()))
	assert.Equal(t, []int{3, NumClasses}, []int(y.Shape()))
	assert.Equal(t, []int{0, 1, 2}, y.ArgmaxRows())
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load(t.TempDir(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TrainImagesFile)
}

func TestLoad_ValidationTooLarge(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, TrainImagesFile, TrainLabelsFile, 10, false)
	writeSplit(t, dir, TestImagesFile, TestLabelsFile, 10, false)

	_, err := Load(dir, Options{})
	assert.Error(t, err, "default validation size exceeds 10 images")
}

func TestReadImages_InvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels")
	var buf bytes.Buffer
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	require.NoError(t, WriteLabels(&buf, want))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := ReadImages(path)
	assert.ErrorIs(t, err, ErrInvalidIDX)

	labels, err := ReadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, want, labels)
}

func TestReadLabels_OutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels")
	var buf bytes.Buffer
	require.NoError(t, WriteLabels(&buf, []byte{1, 12}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := ReadLabels(path)
	assert.ErrorIs(t, err, ErrInvalidIDX)
}

func indexDataSet(t *testing.T, n int) *DataSet {
	t.Helper()
	images := make([]float32, n)
	labels := make([]int, n)
	for i := range images {
		images[i] = float32(i)
		labels[i] = i % NumClasses
	}
	ds, err := NewDataSet(images, labels, 1, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	return ds
}

func TestNextBatch_EpochBoundary(t *testing.T) {
	ds := indexDataSet(t, 10)

	seen := map[float32]int{}
	collect := func(n int) []float32 {
		x, y := ds.NextBatch(n)
		require.Equal(t, []int{n, 1}, []int(x.Shape()))
		require.Equal(t, []int{n, NumClasses}, []int(y.Shape()))
		for i, v := range x.Data() {
			assert.Equal(t, int(v)%NumClasses, y.ArgmaxRows()[i], "label follows its image")
		}
		return x.Data()
	}

	for _, v := range collect(4) {
		seen[v]++
	}
	for _, v := range collect(4) {
		seen[v]++
	}
	assert.Equal(t, 0, ds.EpochsCompleted())

	// Crosses the boundary: two leftovers plus two from the next epoch.
	third := collect(4)
	assert.Equal(t, 1, ds.EpochsCompleted())
	for _, v := range third[:2] {
		seen[v]++
	}
	assert.Len(t, seen, 10, "first epoch visits every example")
	for v, c := range seen {
		assert.Equal(t, 1, c, "example %v visited once", v)
	}
}

func TestNextBatch_ManyEpochs(t *testing.T) {
	ds := indexDataSet(t, 7)
	for i := 0; i < 20; i++ {
		x, _ := ds.NextBatch(3)
		assert.Equal(t, 3, x.Dim(0))
	}
	assert.Equal(t, 60/7, ds.EpochsCompleted())
}

func TestNewDataSet_Invalid(t *testing.T) {
	_, err := NewDataSet(make([]float32, 5), []int{1, 2}, 2, nil)
	assert.Error(t, err)

	_, err = NewDataSet(make([]float32, 2), []int{10}, 2, nil)
	assert.Error(t, err)
}

func TestOneHot(t *testing.T) {
	oh := OneHot([]int{2, 0}, 3)
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0}, oh.Data())
}

func TestSynthetic(t *testing.T) {
	sets := Synthetic(200, 50, 3)
	assert.Equal(t, 20, sets.Validation.NumExamples())
	assert.Equal(t, 200, sets.Train.NumExamples())
	assert.Equal(t, 50, sets.Test.NumExamples())

	for i := 0; i < sets.Train.NumExamples(); i++ {
		for _, v := range sets.Train.Image(i) {
			require.True(t, v >= 0 && v <= 1)
		}
	}
}

// csvSplit renders rows of constant-valued images in the Kaggle layout.
func csvSplit(labels []int, pixel int) string {
	var sb strings.Builder
	sb.WriteString("label")
	for i := 0; i < NumPixels; i++ {
		sb.WriteString(",pixel")
		sb.WriteString(strconv.Itoa(i))
	}
	sb.WriteString("\n")
	for _, label := range labels {
		sb.WriteString(strconv.Itoa(label))
		for i := 0; i < NumPixels; i++ {
			sb.WriteString(",")
			sb.WriteString(strconv.Itoa(pixel))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvSplit([]int{3, 7}, 255)), 0o644))

	ds, err := LoadCSV(path, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumExamples())
	assert.Equal(t, 7, ds.Label(1))
	assert.Equal(t, float32(1), ds.Image(0)[783])

	ds, err = LoadCSV(path, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.NumExamples())
}

func TestLoadCSV_LabelOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvSplit([]int{12}, 0)), 0o644))

	_, err := LoadCSV(path, 0, 1)
	assert.Error(t, err)
}

func TestLoad_FallsBackToCSV(t *testing.T) {
	dir := t.TempDir()
	train := make([]int, 12)
	for i := range train {
		train[i] = i % NumClasses
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, TrainCSVFile), []byte(csvSplit(train, 51)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TestCSVFile), []byte(csvSplit([]int{4, 2}, 0)), 0o644))

	sets, err := Load(dir, Options{ValidationSize: 2, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, sets.Validation.NumExamples())
	assert.Equal(t, 10, sets.Train.NumExamples())
	assert.Equal(t, 2, sets.Test.NumExamples())
	assert.Equal(t, 2, sets.Train.Label(0))
	assert.Equal(t, float32(51)/255, sets.Train.Image(0)[0])
	assert.Equal(t, 4, sets.Test.Label(0))
}
