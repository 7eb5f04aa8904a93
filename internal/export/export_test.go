package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/onnx"
	"github.com/brice-v/digitnet/internal/serialization"
	"github.com/brice-v/digitnet/internal/tensor"
)

func testStats() Statistics {
	return Statistics{
		Steps:     10,
		BatchSize: 5,
		Accuracy:  RoundAccuracy(0.912345),
		PicPredictions: map[string][]int{
			"Handwritten": {0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			"Font":        {9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		},
	}
}

func testNet(t *testing.T, arch string) *model.Network {
	t.Helper()
	net, err := model.New(arch, 42)
	require.NoError(t, err)
	return net
}

func testInput() *tensor.Tensor {
	x := tensor.Zeros(tensor.Shape{2, model.Features})
	for i := range x.Data() {
		x.Data()[i] = float32(i%29) / 29
	}
	return x
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	net := testNet(t, "dense")

	got, err := Save(dir, net, testStats(), Options{RunID: "run-1", Version: "test"})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	for _, name := range []string{CheckpointFile, ONNXFile, StatisticsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dense", b.Header.Architecture)
	assert.Equal(t, "run-1", b.Header.RunID)
	assert.Equal(t, testStats(), *b.Statistics)

	x := testInput()
	want := net.Probabilities(x)
	out, err := b.Run(model.OutputName, map[string]*tensor.Tensor{model.InputName: x})
	require.NoError(t, err)
	assert.Equal(t, want.Data(), out.Data())
}

func TestStatistics_ExactKeys(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, testNet(t, "dense"), testStats(), Options{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, StatisticsFile))
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))

	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"accuracy", "batch_size", "picPredictions", "steps"}, keys)
	assert.JSONEq(t, "0.9123", string(decoded["accuracy"]))

	var preds map[string][]int
	require.NoError(t, json.Unmarshal(decoded["picPredictions"], &preds))
	for category, p := range preds {
		assert.Len(t, p, 10, category)
		for _, d := range p {
			assert.True(t, d >= 0 && d <= 9)
		}
	}
}

func TestStatistics_EmptyPredictionsAreAnObject(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, testNet(t, "dense"), Statistics{Steps: 1, BatchSize: 1}, Options{})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, StatisticsFile))
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.JSONEq(t, "{}", string(decoded["picPredictions"]))
}

func TestSave_ReplacesExistingBundle(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "export")

	_, err := Save(dir, testNet(t, "dense"), testStats(), Options{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644))

	second := testStats()
	second.Steps = 99
	_, err = Save(dir, testNet(t, "dense"), second, Options{})
	require.NoError(t, err)

	b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 99, b.Statistics.Steps)
	assert.NoFileExists(t, filepath.Join(dir, "stale.txt"))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary or previous directories remain")
	assert.Equal(t, "export", entries[0].Name())
}

func TestLoad_FallsBackToPreviousDuringSwap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	_, err := Save(dir, testNet(t, "dense"), testStats(), Options{})
	require.NoError(t, err)

	// State between the two renames of a swap.
	require.NoError(t, os.Rename(dir, dir+previousSuffix))

	b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dense", b.Header.Architecture)

	resolved, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)
}

func TestResolve_TimestampedBundleDuringSwap(t *testing.T) {
	dir := t.TempDir()
	stamped, err := Save(dir, testNet(t, "estimator"), testStats(), Options{
		Timestamped: true,
		Now:         func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)

	// State between the two renames of a re-export into the stamped directory.
	require.NoError(t, os.Rename(stamped, stamped+previousSuffix))

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, stamped, latest)

	resolved, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, stamped, resolved)

	b, err := Load(resolved)
	require.NoError(t, err)
	assert.Equal(t, "estimator", b.Header.Architecture)
	assert.Equal(t, stamped+previousSuffix, b.Dir)
}

func TestLatest_PrefersNewerStampOverReplacedOlderOne(t *testing.T) {
	dir := t.TempDir()
	net := testNet(t, "estimator")
	older, err := Save(dir, net, testStats(), Options{Timestamped: true, Now: func() time.Time { return time.Unix(100, 0) }})
	require.NoError(t, err)
	newer, err := Save(dir, net, testStats(), Options{Timestamped: true, Now: func() time.Time { return time.Unix(200, 0) }})
	require.NoError(t, err)
	require.NoError(t, os.Rename(older, older+previousSuffix))

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, latest)
}

func TestSave_Timestamped(t *testing.T) {
	dir := t.TempDir()
	net := testNet(t, "estimator")

	clock := time.Unix(1700000000, 0)
	first, err := Save(dir, net, testStats(), Options{Timestamped: true, Now: func() time.Time { return clock }})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1700000000"), first)

	clock = clock.Add(90 * time.Second)
	second, err := Save(dir, net, testStats(), Options{Timestamped: true, Now: func() time.Time { return clock }})
	require.NoError(t, err)

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	resolved, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, second, resolved)

	b, err := Load(latest)
	require.NoError(t, err)
	assert.Equal(t, "estimator", b.Header.Architecture)
}

func TestLatest_Empty(t *testing.T) {
	_, err := Latest(t.TempDir())
	assert.ErrorIs(t, err, ErrNoExport)

	_, err = Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoExport)
}

func TestLoad_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, testNet(t, "dense"), testStats(), Options{})
	require.NoError(t, err)

	path := filepath.Join(dir, CheckpointFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-3] ^= 0x40
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Load(dir)
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestBundle_SignatureLookup(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, testNet(t, "cnn"), testStats(), Options{})
	require.NoError(t, err)
	b, err := Load(dir)
	require.NoError(t, err)

	for _, name := range []string{model.InputName, model.OutputName, model.DropoutName} {
		_, err := b.Lookup(name)
		assert.NoError(t, err, name)
	}
	_, err = b.Lookup("y_conv")
	assert.ErrorIs(t, err, ErrUnknownSignature)

	x := testInput()
	_, err = b.Run("probabilities", map[string]*tensor.Tensor{model.InputName: x})
	assert.ErrorIs(t, err, ErrUnknownSignature)

	_, err = b.Run(model.OutputName, map[string]*tensor.Tensor{"x": x})
	assert.ErrorIs(t, err, ErrUnknownSignature)

	keep := tensor.MustNew(tensor.Shape{}, []float32{1})
	out, err := b.Run(model.OutputName, map[string]*tensor.Tensor{model.InputName: x, model.DropoutName: keep})
	require.NoError(t, err)
	assert.Equal(t, []int{2, model.Classes}, []int(out.Shape()))

	zero := tensor.MustNew(tensor.Shape{}, []float32{0})
	_, err = b.Run(model.OutputName, map[string]*tensor.Tensor{model.InputName: x, model.DropoutName: zero})
	assert.Error(t, err)
}

func TestSave_WritesParsableONNX(t *testing.T) {
	dir := t.TempDir()
	_, err := Save(dir, testNet(t, "cnn"), testStats(), Options{Version: "v1"})
	require.NoError(t, err)

	m, err := onnx.ParseFile(filepath.Join(dir, ONNXFile))
	require.NoError(t, err)
	assert.Equal(t, "v1", m.ProducerVersion)
	assert.Equal(t, model.InputName, m.Graph.Inputs[0].Name)
	assert.Equal(t, model.OutputName, m.Graph.Outputs[0].Name)
	assert.Equal(t, "Softmax", m.Graph.Nodes[len(m.Graph.Nodes)-1].OpType)
}

func TestSave_RejectsInvalidStatistics(t *testing.T) {
	tests := []struct {
		name  string
		preds []int
	}{
		{"not a digit", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}},
		{"too few", []int{3}},
		{"too many", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0}},
		{"empty", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := testStats()
			stats.PicPredictions["MNIST"] = tt.preds
			dir := filepath.Join(t.TempDir(), "export")
			_, err := Save(dir, testNet(t, "dense"), stats, Options{})
			assert.Error(t, err)
			assert.NoDirExists(t, dir)
		})
	}
}

func TestRoundAccuracy(t *testing.T) {
	assert.Equal(t, 0.9123, RoundAccuracy(0.912345))
	assert.Equal(t, 1.0, RoundAccuracy(1))
}
