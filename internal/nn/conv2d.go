package nn

import (
	"fmt"

	"github.com/brice-v/digitnet/internal/parallel"
	"github.com/brice-v/digitnet/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, height, width, in_channels]
// Weight shape: [kernel_h, kernel_w, in_channels, out_channels]
// Bias shape:   [out_channels]
// Output shape: [batch, out_h, out_w, out_channels]
//
// The kernel layout makes the flattened weight a
// [kernel_h*kernel_w*in_channels, out_channels] matrix, so the forward
// pass is a single im2col followed by one matmul.
//
// Example:
//
//	// 1 channel -> 32 channels, 5x5 kernel, output keeps 28x28
//	conv := nn.NewConv2D("conv1", 1, 32, 5, 1, nn.Same, init)
//	output := conv.Forward(input) // [N, 28, 28, 32]
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     Padding

	weight *Parameter
	bias   *Parameter

	input *tensor.Tensor
	cols  []float32
	geom  convGeometry
}

type convGeometry struct {
	n, h, w, hOut, wOut, padTop, padLeft int
}

// NewConv2D creates a new 2D convolutional layer with a square kernel.
func NewConv2D(name string, inChannels, outChannels, kernelSize, stride int, padding Padding, init Initializer) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}

	weightShape := tensor.Shape{kernelSize, kernelSize, inChannels, outChannels}
	fanIn := inChannels * kernelSize * kernelSize
	fanOut := outChannels * kernelSize * kernelSize

	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter(name+".weight", init.Weight(weightShape, fanIn, fanOut)),
		bias:        NewParameter(name+".bias", init.Bias(tensor.Shape{outChannels})),
	}
}

// Forward performs the forward pass.
func (c *Conv2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,H,W,C], got %dD", len(inputShape)))
	}
	if inputShape[3] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[3], c.inChannels))
	}

	g := convGeometry{n: inputShape[0], h: inputShape[1], w: inputShape[2]}
	g.hOut, g.padTop = c.padding.outputSize(g.h, c.kernelSize, c.stride)
	g.wOut, g.padLeft = c.padding.outputSize(g.w, c.kernelSize, c.stride)
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: input %dx%d too small for kernel %d", g.h, g.w, c.kernelSize))
	}

	rows := g.n * g.hOut * g.wOut
	colWidth := c.kernelSize * c.kernelSize * c.inChannels
	if cap(c.cols) < rows*colWidth {
		c.cols = make([]float32, rows*colWidth)
	}
	c.cols = c.cols[:rows*colWidth]
	c.im2col(input.Data(), g)

	c.input = input
	c.geom = g

	output := tensor.Zeros(tensor.Shape{g.n, g.hOut, g.wOut, c.outChannels})
	out := output.Data()
	bias := c.bias.Tensor().Data()
	for r := 0; r < rows; r++ {
		copy(out[r*c.outChannels:(r+1)*c.outChannels], bias)
	}
	tensor.MatMul(out, c.cols, c.weight.Tensor().Data(), rows, colWidth, c.outChannels, false, false, true)
	return output
}

// Backward accumulates weight and bias gradients and returns the input gradient.
func (c *Conv2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	if c.input == nil {
		panic("conv2d: Backward called before Forward")
	}
	g := c.geom
	rows := g.n * g.hOut * g.wOut
	colWidth := c.kernelSize * c.kernelSize * c.inChannels
	gd := grad.Data()

	// dW [colWidth, outC] += colsᵀ @ grad
	tensor.MatMul(c.weight.Grad().Data(), c.cols, gd, colWidth, rows, c.outChannels, true, false, true)

	db := c.bias.Grad().Data()
	for r := 0; r < rows; r++ {
		for j, v := range gd[r*c.outChannels : (r+1)*c.outChannels] {
			db[j] += v
		}
	}

	// dcols [rows, colWidth] = grad @ Wᵀ
	dcols := make([]float32, rows*colWidth)
	tensor.MatMul(dcols, gd, c.weight.Tensor().Data(), rows, c.outChannels, colWidth, false, true, false)

	dx := tensor.Zeros(c.input.Shape())
	c.col2im(dx.Data(), dcols, g)
	return dx
}

// im2col unrolls every receptive field into one row of c.cols.
// Column order is (kh, kw, cin), matching the weight layout.
func (c *Conv2D) im2col(in []float32, g convGeometry) {
	k, cin := c.kernelSize, c.inChannels
	colWidth := k * k * cin
	parallel.For(g.n*g.hOut, func(idx int) {
		b, oy := idx/g.hOut, idx%g.hOut
		for ox := 0; ox < g.wOut; ox++ {
			row := c.cols[((b*g.hOut+oy)*g.wOut+ox)*colWidth:][:colWidth]
			for ky := 0; ky < k; ky++ {
				iy := oy*c.stride + ky - g.padTop
				for kx := 0; kx < k; kx++ {
					ix := ox*c.stride + kx - g.padLeft
					dst := row[(ky*k+kx)*cin : (ky*k+kx+1)*cin]
					if iy < 0 || iy >= g.h || ix < 0 || ix >= g.w {
						clear(dst)
						continue
					}
					copy(dst, in[((b*g.h+iy)*g.w+ix)*cin:])
				}
			}
		}
	}, parallel.Default())
}

// col2im scatters column gradients back onto the input grid.
// Each batch image is handled by one worker, so writes never overlap.
func (c *Conv2D) col2im(dx, dcols []float32, g convGeometry) {
	k, cin := c.kernelSize, c.inChannels
	colWidth := k * k * cin
	parallel.For(g.n, func(b int) {
		for oy := 0; oy < g.hOut; oy++ {
			for ox := 0; ox < g.wOut; ox++ {
				row := dcols[((b*g.hOut+oy)*g.wOut+ox)*colWidth:][:colWidth]
				for ky := 0; ky < k; ky++ {
					iy := oy*c.stride + ky - g.padTop
					if iy < 0 || iy >= g.h {
						continue
					}
					for kx := 0; kx < k; kx++ {
						ix := ox*c.stride + kx - g.padLeft
						if ix < 0 || ix >= g.w {
							continue
						}
						dst := dx[((b*g.h+iy)*g.w+ix)*cin:][:cin]
						for ch, v := range row[(ky*k+kx)*cin : (ky*k+kx+1)*cin] {
							dst[ch] += v
						}
					}
				}
			}
		}
	}, parallel.Config{Enabled: true, NumWorkers: parallel.Default().NumWorkers, MinChunkSize: 1})
}

// Parameters returns [weight, bias].
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// InChannels returns the number of input channels.
func (c *Conv2D) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int {
	return c.outChannels
}

// KernelSize returns the square kernel extent.
func (c *Conv2D) KernelSize() int {
	return c.kernelSize
}

// Stride returns the stride.
func (c *Conv2D) Stride() int {
	return c.stride
}

// Padding returns the padding mode.
func (c *Conv2D) Padding() Padding {
	return c.padding
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%s)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}
