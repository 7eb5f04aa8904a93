package optim

import (
	"math"

	"github.com/brice-v/digitnet/internal/nn"
)

// Adagrad scales each parameter's step by the inverse square root of its
// accumulated squared gradients:
//
//	acc   = acc + gradient²
//	param = param - lr * gradient / sqrt(acc)
//
// Accumulators start at InitialAccumulator (default 0.1) so the first
// step is bounded.
type Adagrad struct {
	params []*nn.Parameter
	lr     float32
	acc    [][]float32
}

// AdagradConfig holds configuration for the Adagrad optimizer.
type AdagradConfig struct {
	LR                 float32 // Learning rate (default: 0.01)
	InitialAccumulator float32 // Starting accumulator value (default: 0.1)
}

// NewAdagrad creates a new Adagrad optimizer.
func NewAdagrad(params []*nn.Parameter, config AdagradConfig) *Adagrad {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.InitialAccumulator == 0 {
		config.InitialAccumulator = 0.1
	}
	a := &Adagrad{params: params, lr: config.LR, acc: make([][]float32, len(params))}
	for i, p := range params {
		acc := make([]float32, p.Tensor().Len())
		for j := range acc {
			acc[j] = config.InitialAccumulator
		}
		a.acc[i] = acc
	}
	return a
}

// Step applies one Adagrad update.
func (a *Adagrad) Step() {
	for pi, param := range a.params {
		acc := a.acc[pi]
		value := param.Tensor().Data()
		for i, g := range param.Grad().Data() {
			acc[i] += g * g
			value[i] -= a.lr * g / float32(math.Sqrt(float64(acc[i])))
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adagrad) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the learning rate.
func (a *Adagrad) GetLR() float32 {
	return a.lr
}

// Name returns "Adagrad".
func (a *Adagrad) Name() string {
	return "Adagrad"
}
