// Package tensor implements the dense float32 tensors used by digitnet.
//
// Tensors are row-major and always live in host memory. Layout follows
// the network definitions: images are NHWC, dense activations are
// [batch, features].
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is a dense, row-major float32 tensor.
type Tensor struct {
	shape Shape
	data  []float32
}

// New wraps data with the given shape. The slice is not copied.
func New(shape Shape, data []float32) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// MustNew is like New but panics on error.
func MustNew(shape Shape, data []float32) *Tensor {
	t, err := New(shape, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor shape. Callers must not modify it.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the underlying storage.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Reshape returns a view with a new shape sharing the same storage.
// A single dimension may be -1.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape, err := Shape(dims).Resolve(len(t.data))
	if err != nil {
		panic(fmt.Sprintf("tensor.Reshape: %v", err))
	}
	return &Tensor{shape: shape, data: t.data}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Zero sets every element to zero.
func (t *Tensor) Zero() {
	clear(t.data)
}

// Row returns row i of a 2D tensor as a slice of the storage.
func (t *Tensor) Row(i int) []float32 {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor.Row: expected 2D tensor, got shape %v", t.shape))
	}
	cols := t.shape[1]
	return t.data[i*cols : (i+1)*cols]
}

// ArgmaxRows returns the index of the largest element of every row of a 2D tensor.
func (t *Tensor) ArgmaxRows() []int {
	rows := t.shape[0]
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = Argmax(t.Row(i))
	}
	return out
}

// Argmax returns the index of the largest value. Ties resolve to the lowest index.
func Argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Bytes encodes the storage as little-endian IEEE-754 float32.
func (t *Tensor) Bytes() []byte {
	buf := make([]byte, 4*len(t.data))
	for i, v := range t.data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// FromBytes decodes little-endian float32 data into a tensor of the given shape.
func FromBytes(shape Shape, buf []byte) (*Tensor, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("float32 data length %d is not a multiple of 4", len(buf))
	}
	data := make([]float32, len(buf)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return New(shape, data)
}
