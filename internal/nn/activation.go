package nn

import (
	"math"

	"github.com/brice-v/digitnet/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU struct {
	output *tensor.Tensor
}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := input.Clone()
	d := out.Data()
	for i, v := range d {
		if v < 0 {
			d[i] = 0
		}
	}
	r.output = out
	return out
}

// Backward passes gradients through where the output was positive.
func (r *ReLU) Backward(grad *tensor.Tensor) *tensor.Tensor {
	dx := grad.Clone()
	d := dx.Data()
	for i, y := range r.output.Data() {
		if y <= 0 {
			d[i] = 0
		}
	}
	return dx
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// String returns "ReLU()".
func (r *ReLU) String() string {
	return "ReLU()"
}

// Softmax applies a row-wise softmax to a [batch, classes] tensor.
type Softmax struct {
	output *tensor.Tensor
}

// NewSoftmax creates a new Softmax module.
func NewSoftmax() *Softmax {
	return &Softmax{}
}

// Forward computes softmax over the last dimension.
func (s *Softmax) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := input.Clone()
	rows := out.Dim(0)
	for i := 0; i < rows; i++ {
		SoftmaxInPlace(out.Row(i))
	}
	s.output = out
	return out
}

// Backward applies the softmax Jacobian: dx = y ⊙ (g - Σ g⊙y).
func (s *Softmax) Backward(grad *tensor.Tensor) *tensor.Tensor {
	dx := tensor.Zeros(grad.Shape())
	rows := grad.Dim(0)
	for i := 0; i < rows; i++ {
		y := s.output.Row(i)
		g := grad.Row(i)
		var dot float32
		for j := range y {
			dot += g[j] * y[j]
		}
		d := dx.Row(i)
		for j := range y {
			d[j] = y[j] * (g[j] - dot)
		}
	}
	return dx
}

// Parameters returns nil.
func (s *Softmax) Parameters() []*Parameter {
	return nil
}

// String returns "Softmax()".
func (s *Softmax) String() string {
	return "Softmax()"
}

// SoftmaxInPlace replaces v with softmax(v) using the max-subtraction trick.
func SoftmaxInPlace(v []float32) {
	if len(v) == 0 {
		return
	}
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - maxV))
		v[i] = float32(e)
		sum += e
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}
