// Package nn implements the neural network layers used by digitnet.
//
// This package provides building blocks for constructing classifiers:
//   - Module interface: Forward/Backward pass plus trainable parameters
//   - Parameter: Trainable tensor with its gradient accumulator
//   - Layers: Linear, Conv2D, MaxPool2D, Dropout, Reshape
//   - Activations: ReLU, Softmax
//   - Losses and metrics: SoftmaxCrossEntropy, Accuracy
//   - Sequential: Container for stacking layers
//
// Every layer caches what it needs from the last Forward call and
// computes input gradients in Backward, so a Sequential can be trained
// without a gradient tape. Layout is NHWC for images and
// [batch, features] for dense activations.
package nn

import (
	"github.com/brice-v/digitnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input and remember what Backward needs
//   - Backward: Accumulate parameter gradients and return the input gradient
//   - Parameters: Return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear("fc1", 784, 128, init),
//	    nn.NewReLU(),
//	    nn.NewLinear("fc2", 128, 10, init),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Backward takes the gradient of the loss w.r.t. the last output and
	// returns the gradient w.r.t. the last input. Parameter gradients are
	// added to Parameter.Grad.
	Backward(grad *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter
}

// StateDict returns a map of parameter names to their value tensors.
func StateDict(m Module) map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	for _, p := range m.Parameters() {
		out[p.Name()] = p.Tensor()
	}
	return out
}

// LoadStateDict copies values from stateDict into the module parameters.
//
// Every parameter must be present with a matching shape; extra entries
// are ignored.
func LoadStateDict(m Module, stateDict map[string]*tensor.Tensor) error {
	for _, p := range m.Parameters() {
		src, ok := stateDict[p.Name()]
		if !ok {
			return &StateError{Name: p.Name(), Reason: "missing in state dict"}
		}
		if !src.Shape().Equal(p.Tensor().Shape()) {
			return &StateError{
				Name:   p.Name(),
				Reason: "shape mismatch: expected " + p.Tensor().Shape().String() + ", got " + src.Shape().String(),
			}
		}
		copy(p.Tensor().Data(), src.Data())
	}
	return nil
}

// StateError reports a parameter that could not be restored.
type StateError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return "nn: parameter " + e.Name + ": " + e.Reason
}

// CountParameters returns the number of trainable scalars in m.
func CountParameters(m Module) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Tensor().Len()
	}
	return total
}
