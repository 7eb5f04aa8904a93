package nn

import (
	"math/rand"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Initializer creates the initial weight and bias tensors of a layer.
type Initializer interface {
	Weight(shape tensor.Shape, fanIn, fanOut int) *tensor.Tensor
	Bias(shape tensor.Shape) *tensor.Tensor
}

// TruncatedNormalInit draws weights from a normal distribution truncated at
// two standard deviations and fills biases with a constant.
//
// With Stddev 0.1 and BiasValue 0.1 this matches the classic MNIST
// tutorial networks: small positive biases keep ReLU units alive at start.
type TruncatedNormalInit struct {
	Stddev    float64
	BiasValue float32
	Rng       *rand.Rand
}

// Weight implements Initializer.
func (i TruncatedNormalInit) Weight(shape tensor.Shape, _, _ int) *tensor.Tensor {
	return tensor.TruncatedNormal(shape, i.Stddev, i.Rng)
}

// Bias implements Initializer.
func (i TruncatedNormalInit) Bias(shape tensor.Shape) *tensor.Tensor {
	return tensor.Full(shape, i.BiasValue)
}

// GlorotInit uses Xavier/Glorot uniform weights and zero biases.
type GlorotInit struct {
	Rng *rand.Rand
}

// Weight implements Initializer.
func (i GlorotInit) Weight(shape tensor.Shape, fanIn, fanOut int) *tensor.Tensor {
	return tensor.XavierUniform(shape, fanIn, fanOut, i.Rng)
}

// Bias implements Initializer.
func (i GlorotInit) Bias(shape tensor.Shape) *tensor.Tensor {
	return tensor.Zeros(shape)
}
