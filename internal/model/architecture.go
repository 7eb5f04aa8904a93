// Package model defines the digit classifiers digitnet trains.
//
// Three architectures are available:
//
//	dense:     784 → 200 → 100 → 60 → 30 (ReLU) → dropout → 10
//	cnn:       conv5x5/32 SAME → pool → conv5x5/64 SAME → pool → 1024 → dropout → 10
//	estimator: conv5x5/32 VALID → pool → conv5x5/64 VALID → pool → 500 → dropout → 10
//
// Each comes with its training defaults (optimizer, learning rate, step
// count, batch size, keep probability). A Network returns logits from
// Forward; exported models end in a softmax and report probabilities.
package model

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/brice-v/digitnet/internal/nn"
)

// Signature names shared by every architecture.
const (
	InputName   = "input"       // [batch, 784] image rows
	OutputName  = "output"      // [batch, 10] class probabilities
	DropoutName = "dropoutRate" // scalar keep probability, 1 at inference
)

// Input and output sizes.
const (
	Features = 784
	Classes  = 10
)

// ErrUnknownArchitecture is returned by Lookup for unregistered names.
var ErrUnknownArchitecture = errors.New("model: unknown architecture")

// Architecture describes one network variant and its training defaults.
type Architecture struct {
	Name      string
	Optimizer string  // "adam" or "adagrad"
	LR        float32 // learning rate
	Steps     int
	BatchSize int
	KeepProb  float32 // dropout keep probability during training

	// Timestamped exports land in a <unix-seconds> subdirectory.
	Timestamped bool

	build func(rng *rand.Rand) *nn.Sequential
}

var architectures = map[string]Architecture{
	"dense": {
		Name:      "dense",
		Optimizer: "adam",
		LR:        0.003,
		Steps:     1000,
		BatchSize: 100,
		KeepProb:  0.5,
		build:     buildDense,
	},
	"cnn": {
		Name:      "cnn",
		Optimizer: "adam",
		LR:        1e-4,
		Steps:     500,
		BatchSize: 50,
		KeepProb:  0.5,
		build:     buildCNN,
	},
	"estimator": {
		Name:        "estimator",
		Optimizer:   "adagrad",
		LR:          0.01,
		Steps:       200,
		BatchSize:   50,
		KeepProb:    0.5,
		Timestamped: true,
		build:       buildEstimator,
	},
}

// Lookup returns the architecture registered under name.
func Lookup(name string) (Architecture, error) {
	a, ok := architectures[name]
	if !ok {
		return Architecture{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownArchitecture, name, Names())
	}
	return a, nil
}

// Names returns the registered architecture names, sorted.
func Names() []string {
	names := make([]string, 0, len(architectures))
	for name := range architectures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildDense(rng *rand.Rand) *nn.Sequential {
	initializer := nn.TruncatedNormalInit{Stddev: 0.1, BiasValue: 0.1, Rng: rng}
	return nn.NewSequential(
		nn.NewLinear("fc1", Features, 200, initializer),
		nn.NewReLU(),
		nn.NewLinear("fc2", 200, 100, initializer),
		nn.NewReLU(),
		nn.NewLinear("fc3", 100, 60, initializer),
		nn.NewReLU(),
		nn.NewLinear("fc4", 60, 30, initializer),
		nn.NewReLU(),
		nn.NewDropout(rng),
		nn.NewLinear("fc5", 30, Classes, initializer),
	)
}

func buildCNN(rng *rand.Rand) *nn.Sequential {
	initializer := nn.TruncatedNormalInit{Stddev: 0.1, BiasValue: 0.1, Rng: rng}
	return nn.NewSequential(
		nn.NewReshape(-1, 28, 28, 1),
		nn.NewConv2D("conv1", 1, 32, 5, 1, nn.Same, initializer),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2, nn.Same), // -> 14x14x32
		nn.NewConv2D("conv2", 32, 64, 5, 1, nn.Same, initializer),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2, nn.Same), // -> 7x7x64
		nn.NewReshape(-1, 7*7*64),
		nn.NewLinear("fc1", 7*7*64, 1024, initializer),
		nn.NewReLU(),
		nn.NewDropout(rng),
		nn.NewLinear("fc2", 1024, Classes, initializer),
	)
}

func buildEstimator(rng *rand.Rand) *nn.Sequential {
	initializer := nn.GlorotInit{Rng: rng}
	return nn.NewSequential(
		nn.NewReshape(-1, 28, 28, 1),
		nn.NewConv2D("conv1", 1, 32, 5, 1, nn.Valid, initializer),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2, nn.Valid), // -> 12x12x32
		nn.NewConv2D("conv2", 32, 64, 5, 1, nn.Valid, initializer),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2, nn.Valid), // -> 4x4x64
		nn.NewReshape(-1, 4*4*64),
		nn.NewLinear("dense", 4*4*64, 500, initializer),
		nn.NewReLU(),
		nn.NewDropout(rng),
		nn.NewLinear("logits", 500, Classes, initializer),
	)
}
