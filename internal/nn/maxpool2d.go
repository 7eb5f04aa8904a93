package nn

import (
	"fmt"
	"math"

	"github.com/brice-v/digitnet/internal/parallel"
	"github.com/brice-v/digitnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each window. Unlike Conv2D, MaxPool2D has no learnable parameters.
//
// Input shape:  [batch, height, width, channels]
// Output shape: [batch, out_height, out_width, channels]
//
// With Same padding the output is ceil(in/stride) and windows that hang
// over the border only consider the real pixels, so 28x28 pools to 14x14
// and 7x7 to 4x4.
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2, nn.Same)
//	output := pool.Forward(input) // [32, 14, 14, 32] for a [32, 28, 28, 32] input
type MaxPool2D struct {
	kernelSize int
	stride     int
	padding    Padding

	inputShape tensor.Shape
	argmax     []int
}

// NewMaxPool2D creates a new 2D max pooling layer.
//
// Parameters:
//   - kernelSize: Size of pooling window (square)
//   - stride: Stride for pooling (typically same as kernelSize for non-overlapping)
//   - padding: Same or Valid
func NewMaxPool2D(kernelSize, stride int, padding Padding) *MaxPool2D {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride, padding: padding}
}

// Forward performs the forward pass, recording the winning input index of
// every output element for Backward.
func (m *MaxPool2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,H,W,C], got %dD", len(inputShape)))
	}
	n, h, w, ch := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	hOut, padTop := m.padding.outputSize(h, m.kernelSize, m.stride)
	wOut, padLeft := m.padding.outputSize(w, m.kernelSize, m.stride)
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: input %dx%d too small for window %d", h, w, m.kernelSize))
	}

	output := tensor.Zeros(tensor.Shape{n, hOut, wOut, ch})
	out := output.Data()
	in := input.Data()
	if cap(m.argmax) < len(out) {
		m.argmax = make([]int, len(out))
	}
	m.argmax = m.argmax[:len(out)]
	m.inputShape = inputShape.Clone()

	parallel.For(n*hOut, func(idx int) {
		b, oy := idx/hOut, idx%hOut
		y0 := oy*m.stride - padTop
		for ox := 0; ox < wOut; ox++ {
			x0 := ox*m.stride - padLeft
			for c := 0; c < ch; c++ {
				best := float32(math.Inf(-1))
				bestIdx := -1
				for ky := max(y0, 0); ky < min(y0+m.kernelSize, h); ky++ {
					for kx := max(x0, 0); kx < min(x0+m.kernelSize, w); kx++ {
						i := ((b*h+ky)*w+kx)*ch + c
						if in[i] > best || bestIdx < 0 {
							best = in[i]
							bestIdx = i
						}
					}
				}
				o := ((b*hOut+oy)*wOut+ox)*ch + c
				out[o] = best
				m.argmax[o] = bestIdx
			}
		}
	}, parallel.Default())

	return output
}

// Backward routes each output gradient to the input element that won the max.
func (m *MaxPool2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	if m.inputShape == nil {
		panic("maxpool2d: Backward called before Forward")
	}
	dx := tensor.Zeros(m.inputShape)
	d := dx.Data()
	for o, g := range grad.Data() {
		d[m.argmax[o]] += g
	}
	return dx
}

// Parameters returns an empty slice: MaxPool2D has no learnable parameters.
func (m *MaxPool2D) Parameters() []*Parameter {
	return []*Parameter{}
}

// KernelSize returns the pooling kernel size.
func (m *MaxPool2D) KernelSize() int {
	return m.kernelSize
}

// Stride returns the stride.
func (m *MaxPool2D) Stride() int {
	return m.stride
}

// Padding returns the padding mode.
func (m *MaxPool2D) Padding() Padding {
	return m.padding
}

// String returns a string representation of the layer.
func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d, padding=%s)", m.kernelSize, m.stride, m.padding)
}
