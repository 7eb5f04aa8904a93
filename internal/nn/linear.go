package nn

import (
	"fmt"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [in_features, out_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Example:
//
//	layer := nn.NewLinear("fc1", 784, 200, init)
//	output := layer.Forward(input) // [batch, 200]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter

	input *tensor.Tensor
}

// NewLinear creates a new Linear layer named name.
//
// Parameter names are name+".weight" and name+".bias".
func NewLinear(name string, inFeatures, outFeatures int, init Initializer) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	w := init.Weight(tensor.Shape{inFeatures, outFeatures}, inFeatures, outFeatures)
	b := init.Bias(tensor.Shape{outFeatures})
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", w),
		bias:        NewParameter(name+".bias", b),
	}
}

// Forward computes y = x @ W + b.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}
	l.input = input

	batch := inputShape[0]
	output := tensor.Zeros(tensor.Shape{batch, l.outFeatures})
	out := output.Data()
	bias := l.bias.Tensor().Data()
	for i := 0; i < batch; i++ {
		copy(out[i*l.outFeatures:(i+1)*l.outFeatures], bias)
	}
	tensor.MatMul(out, input.Data(), l.weight.Tensor().Data(), batch, l.inFeatures, l.outFeatures, false, false, true)
	return output
}

// Backward accumulates dW = xᵀ @ g, db = Σ g and returns dx = g @ Wᵀ.
func (l *Linear) Backward(grad *tensor.Tensor) *tensor.Tensor {
	if l.input == nil {
		panic("Linear.Backward: called before Forward")
	}
	batch := l.input.Dim(0)
	g := grad.Data()

	tensor.MatMul(l.weight.Grad().Data(), l.input.Data(), g, l.inFeatures, batch, l.outFeatures, true, false, true)

	db := l.bias.Grad().Data()
	for i := 0; i < batch; i++ {
		for j, v := range g[i*l.outFeatures : (i+1)*l.outFeatures] {
			db[j] += v
		}
	}

	dx := tensor.Zeros(l.input.Shape())
	tensor.MatMul(dx.Data(), g, l.weight.Tensor().Data(), batch, l.outFeatures, l.inFeatures, false, true, false)
	return dx
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// String returns a string representation of the layer.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}
