// Package train runs the fixed-step training loop and measures accuracy.
package train

import (
	"fmt"
	"io"
	"time"

	"github.com/brice-v/digitnet/internal/mnist"
	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/nn"
)

// DefaultLogEvery is the logging interval in steps.
const DefaultLogEvery = 100

// DefaultEvalBatch is the chunk size used by Evaluate.
const DefaultEvalBatch = 500

// Config controls a training run. Zero fields take the architecture defaults.
type Config struct {
	Steps     int
	BatchSize int
	KeepProb  float32
	LogEvery  int
	Out       io.Writer // progress lines; nil discards them
}

// Result summarizes a finished run.
type Result struct {
	Steps     int
	BatchSize int
	FinalLoss float32
	Duration  time.Duration
}

func (c Config) withDefaults(arch model.Architecture) Config {
	if c.Steps <= 0 {
		c.Steps = arch.Steps
	}
	if c.BatchSize <= 0 {
		c.BatchSize = arch.BatchSize
	}
	if c.KeepProb <= 0 {
		c.KeepProb = arch.KeepProb
	}
	if c.LogEvery <= 0 {
		c.LogEvery = DefaultLogEvery
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	return c
}

// Run trains net for a fixed number of steps on random batches of data.
//
// Every LogEvery steps, starting at step 0, the accuracy of the current
// batch is measured with dropout disabled and written to Out before the
// update is applied.
func Run(net *model.Network, data *mnist.DataSet, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults(net.Architecture())
	if cfg.KeepProb > 1 {
		return nil, fmt.Errorf("keep probability %g out of range (0, 1]", cfg.KeepProb)
	}
	if data.NumExamples() < cfg.BatchSize {
		return nil, fmt.Errorf("batch size %d exceeds the %d training examples", cfg.BatchSize, data.NumExamples())
	}

	opt, err := net.NewOptimizer()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var loss float32
	for step := 0; step < cfg.Steps; step++ {
		x, y := data.NextBatch(cfg.BatchSize)
		if step%cfg.LogEvery == 0 {
			acc := nn.Accuracy(net.Forward(x, 1), y)
			fmt.Fprintf(cfg.Out, "step %d, training accuracy %g\n", step, acc)
		}
		loss = net.TrainStep(x, y, cfg.KeepProb, opt)
	}

	return &Result{
		Steps:     cfg.Steps,
		BatchSize: cfg.BatchSize,
		FinalLoss: loss,
		Duration:  time.Since(start),
	}, nil
}

// Evaluate returns the accuracy of net over the whole data set, with
// dropout disabled. Examples are processed in chunks of batchSize
// (DefaultEvalBatch when batchSize <= 0).
func Evaluate(net *model.Network, data *mnist.DataSet, batchSize int) float32 {
	n := data.NumExamples()
	if n == 0 {
		return 0
	}
	if batchSize <= 0 {
		batchSize = DefaultEvalBatch
	}

	correct := 0
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		x, y := data.Slice(start, end)
		correct += nn.CountCorrect(net.Forward(x, 1), y)
	}
	return float32(correct) / float32(n)
}
