package nn

import (
	"fmt"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Reshape changes the view of its input, e.g. flattened MNIST rows into
// [N, 28, 28, 1] images or pooled feature maps into [N, 7*7*64] rows.
// One dimension may be -1.
type Reshape struct {
	dims       []int
	inputShape tensor.Shape
}

// NewReshape creates a reshape layer targeting dims.
func NewReshape(dims ...int) *Reshape {
	return &Reshape{dims: dims}
}

// Forward returns a view with the target shape.
func (r *Reshape) Forward(input *tensor.Tensor) *tensor.Tensor {
	r.inputShape = input.Shape().Clone()
	return input.Reshape(r.dims...)
}

// Backward restores the input shape.
func (r *Reshape) Backward(grad *tensor.Tensor) *tensor.Tensor {
	return grad.Reshape(r.inputShape...)
}

// Parameters returns nil.
func (r *Reshape) Parameters() []*Parameter {
	return nil
}

// Dims returns the target dimensions.
func (r *Reshape) Dims() []int {
	return r.dims
}

// String returns a string representation of the layer.
func (r *Reshape) String() string {
	return fmt.Sprintf("Reshape(%v)", r.dims)
}
