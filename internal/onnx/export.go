package onnx

import (
	"fmt"

	"github.com/brice-v/digitnet/internal/nn"
	"github.com/brice-v/digitnet/internal/tensor"
)

// Versions written into exported models.
const (
	IRVersion    = 8
	OpsetVersion = 13
)

// ExportOptions configures Export.
type ExportOptions struct {
	GraphName       string
	InputName       string // graph input, [batch, InputFeatures]
	OutputName      string // graph output, [batch, classes]
	InputFeatures   int
	ProducerVersion string
	DocString       string
}

func (o *ExportOptions) defaults() {
	if o.GraphName == "" {
		o.GraphName = "digitnet"
	}
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	if o.InputFeatures == 0 {
		o.InputFeatures = 784
	}
}

// Export converts a layer stack into an ONNX model. Dropout layers are
// emitted as inference-mode Dropout nodes, which are the identity.
func Export(layers []nn.Module, opts ExportOptions) (*ModelProto, error) {
	opts.defaults()

	b := &graphBuilder{graph: &GraphProto{Name: opts.GraphName}, current: opts.InputName}
	b.graph.Inputs = []ValueInfoProto{floatValueInfo(opts.InputName, opts.InputFeatures)}

	var outFeatures int
	for i, layer := range layers {
		switch l := layer.(type) {
		case *nn.Reshape:
			b.toNHWC()
			dims := make([]int64, len(l.Dims()))
			for j, d := range l.Dims() {
				dims[j] = int64(d)
			}
			shapeName := b.name("reshape", "shape")
			b.graph.Initializers = append(b.graph.Initializers, TensorProto{
				Name:      shapeName,
				DataType:  TensorProtoInt64,
				Dims:      []int64{int64(len(dims))},
				Int64Data: dims,
			})
			b.node("Reshape", nil, b.current, shapeName)
			b.rank4 = len(dims) == 4

		case *nn.Conv2D:
			if !b.rank4 {
				return nil, fmt.Errorf("layer %d: conv2d needs a rank-4 input", i)
			}
			b.toNCHW()
			w := l.Weight().Tensor()
			b.addFloat(l.Weight().Name(), hwioToOIHW(w), []int64{
				int64(l.OutChannels()), int64(l.InChannels()), int64(l.KernelSize()), int64(l.KernelSize()),
			})
			b.addFloat(l.Bias().Name(), l.Bias().Tensor().Data(), []int64{int64(l.OutChannels())})
			k, s := int64(l.KernelSize()), int64(l.Stride())
			b.node("Conv", []AttributeProto{
				intsAttr("kernel_shape", k, k),
				intsAttr("strides", s, s),
				stringAttr("auto_pad", autoPad(l.Padding())),
			}, b.current, l.Weight().Name(), l.Bias().Name())

		case *nn.MaxPool2D:
			if !b.rank4 {
				return nil, fmt.Errorf("layer %d: maxpool2d needs a rank-4 input", i)
			}
			b.toNCHW()
			k, s := int64(l.KernelSize()), int64(l.Stride())
			b.node("MaxPool", []AttributeProto{
				intsAttr("kernel_shape", k, k),
				intsAttr("strides", s, s),
				stringAttr("auto_pad", autoPad(l.Padding())),
			}, b.current)

		case *nn.Linear:
			b.addFloat(l.Weight().Name(), l.Weight().Tensor().Data(), []int64{
				int64(l.InFeatures()), int64(l.OutFeatures()),
			})
			b.addFloat(l.Bias().Name(), l.Bias().Tensor().Data(), []int64{int64(l.OutFeatures())})
			b.node("Gemm", nil, b.current, l.Weight().Name(), l.Bias().Name())
			outFeatures = l.OutFeatures()

		case *nn.ReLU:
			b.node("Relu", nil, b.current)

		case *nn.Softmax:
			b.node("Softmax", []AttributeProto{intAttr("axis", -1)}, b.current)

		case *nn.Dropout:
			b.node("Dropout", nil, b.current)

		default:
			return nil, fmt.Errorf("layer %d: unsupported layer %T", i, layer)
		}
	}
	if b.nchw || b.rank4 {
		return nil, fmt.Errorf("network output is not a [batch, classes] matrix")
	}
	if outFeatures == 0 {
		return nil, fmt.Errorf("network has no linear output layer")
	}
	if len(b.graph.Nodes) == 0 {
		return nil, fmt.Errorf("empty network")
	}

	// Rename the final tensor to the requested output name.
	last := &b.graph.Nodes[len(b.graph.Nodes)-1]
	last.Outputs[0] = opts.OutputName
	b.graph.Outputs = []ValueInfoProto{floatValueInfo(opts.OutputName, outFeatures)}

	return &ModelProto{
		IRVersion:       IRVersion,
		OpsetImport:     []OperatorSetID{{Version: OpsetVersion}},
		ProducerName:    "digitnet",
		ProducerVersion: opts.ProducerVersion,
		DocString:       opts.DocString,
		Graph:           b.graph,
	}, nil
}

type graphBuilder struct {
	graph   *GraphProto
	current string // name of the tensor produced by the last node
	counter int
	rank4   bool
	nchw    bool
}

func (b *graphBuilder) name(op, suffix string) string {
	return fmt.Sprintf("%s_%d_%s", op, b.counter, suffix)
}

func (b *graphBuilder) node(op string, attrs []AttributeProto, inputs ...string) {
	out := b.name(op, "out")
	b.graph.Nodes = append(b.graph.Nodes, NodeProto{
		Name:       fmt.Sprintf("%s_%d", op, b.counter),
		OpType:     op,
		Inputs:     inputs,
		Outputs:    []string{out},
		Attributes: attrs,
	})
	b.counter++
	b.current = out
}

func (b *graphBuilder) addFloat(name string, data []float32, dims []int64) {
	b.graph.Initializers = append(b.graph.Initializers, TensorProto{
		Name:     name,
		DataType: TensorProtoFloat,
		Dims:     dims,
		RawData:  tensor.MustNew(tensor.Shape{len(data)}, data).Bytes(),
	})
}

func (b *graphBuilder) toNCHW() {
	if b.nchw {
		return
	}
	b.node("Transpose", []AttributeProto{intsAttr("perm", 0, 3, 1, 2)}, b.current)
	b.nchw = true
}

func (b *graphBuilder) toNHWC() {
	if !b.nchw {
		return
	}
	b.node("Transpose", []AttributeProto{intsAttr("perm", 0, 2, 3, 1)}, b.current)
	b.nchw = false
}

// hwioToOIHW reorders a [kh, kw, in, out] kernel to [out, in, kh, kw].
func hwioToOIHW(w *tensor.Tensor) []float32 {
	s := w.Shape()
	kh, kw, cin, cout := s[0], s[1], s[2], s[3]
	src := w.Data()
	dst := make([]float32, len(src))
	for y := 0; y < kh; y++ {
		for x := 0; x < kw; x++ {
			for i := 0; i < cin; i++ {
				for o := 0; o < cout; o++ {
					dst[((o*cin+i)*kh+y)*kw+x] = src[((y*kw+x)*cin+i)*cout+o]
				}
			}
		}
	}
	return dst
}

// autoPad maps padding modes to ONNX auto_pad values. SAME puts the odd
// padding pixel at the end, which is SAME_UPPER.
func autoPad(p nn.Padding) string {
	if p == nn.Same {
		return "SAME_UPPER"
	}
	return "VALID"
}

func floatValueInfo(name string, features int) ValueInfoProto {
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{
			ElemType: TensorProtoFloat,
			Shape: &TensorShapeProto{Dims: []DimensionProto{
				{DimParam: "batch"},
				{DimValue: int64(features)},
			}},
		}},
	}
}

func intAttr(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

func intsAttr(name string, v ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: v}
}

func stringAttr(name, v string) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoString, S: []byte(v)}
}
