package nn

import (
	"github.com/brice-v/digitnet/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The gradient buffer has the same shape as the value and is filled by
// Module.Backward. It accumulates until ZeroGrad is called.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
	grad   *tensor.Tensor
}

// NewParameter creates a new trainable parameter.
//
// Parameters:
//   - name: Descriptive name for this parameter (e.g., "conv1.weight")
//   - t: The initialized parameter tensor
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
		grad:   tensor.Zeros(t.Shape()),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter) ZeroGrad() {
	p.grad.Zero()
}
