// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Plain gradient descent
//   - Adam: Adaptive Moment Estimation
//   - Adagrad: Per-parameter learning rates from accumulated squared gradients
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-4})
//
//	for step := range steps {
//	    optimizer.ZeroGrad()
//	    logits := model.Forward(x)
//	    _, grad := nn.SoftmaxCrossEntropy(logits, y)
//	    model.Backward(grad)
//	    optimizer.Step()
//	}
package optim

import (
	"fmt"
	"strings"

	"github.com/brice-v/digitnet/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply the accumulated parameter gradients
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring)
type Optimizer interface {
	// Step applies one update to every parameter from its Grad buffer.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// Name returns the algorithm name, e.g. "Adam".
	Name() string
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// New builds an optimizer by name ("adam", "adagrad", "sgd").
func New(name string, params []*nn.Parameter, lr float32) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "adam":
		return NewAdam(params, AdamConfig{LR: lr}), nil
	case "adagrad":
		return NewAdagrad(params, AdagradConfig{LR: lr}), nil
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr}), nil
	default:
		return nil, fmt.Errorf("optim: unknown optimizer %q", name)
	}
}
