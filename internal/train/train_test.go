package train

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brice-v/digitnet/internal/mnist"
	"github.com/brice-v/digitnet/internal/model"
)

func TestRun_LearnsSyntheticDigits(t *testing.T) {
	sets := mnist.Synthetic(1000, 200, 1)
	net, err := model.New("dense", 1)
	require.NoError(t, err)

	before := Evaluate(net, sets.Test, 64)

	var out bytes.Buffer
	res, err := Run(net, sets.Train, Config{Steps: 300, BatchSize: 50, Out: &out})
	require.NoError(t, err)
	assert.Equal(t, 300, res.Steps)
	assert.Equal(t, 50, res.BatchSize)

	after := Evaluate(net, sets.Test, 64)
	assert.Greater(t, after, before)
	assert.GreaterOrEqual(t, after, float32(0.9))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "step 0, training accuracy "))
	assert.True(t, strings.HasPrefix(lines[2], "step 200, training accuracy "))
}

func TestRun_Defaults(t *testing.T) {
	arch, err := model.Lookup("cnn")
	require.NoError(t, err)

	cfg := Config{}.withDefaults(arch)
	assert.Equal(t, 500, cfg.Steps)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, float32(0.5), cfg.KeepProb)
	assert.Equal(t, DefaultLogEvery, cfg.LogEvery)
	assert.NotNil(t, cfg.Out)
}

func TestRun_Errors(t *testing.T) {
	sets := mnist.Synthetic(20, 10, 2)
	net, err := model.New("dense", 2)
	require.NoError(t, err)

	_, err = Run(net, sets.Train, Config{Steps: 1, BatchSize: 50})
	assert.Error(t, err)

	_, err = Run(net, sets.Train, Config{Steps: 1, BatchSize: 5, KeepProb: 1.5})
	assert.Error(t, err)
}

func TestEvaluate_ChunkingDoesNotMatter(t *testing.T) {
	sets := mnist.Synthetic(10, 37, 3)
	net, err := model.New("dense", 3)
	require.NoError(t, err)

	whole := Evaluate(net, sets.Test, 1000)
	assert.Equal(t, whole, Evaluate(net, sets.Test, 5))
	assert.Equal(t, whole, Evaluate(net, sets.Test, 0))
}
