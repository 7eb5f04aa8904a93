package onnx

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brice-v/digitnet/internal/nn"
	"github.com/brice-v/digitnet/internal/tensor"
)

func smallCNN() []nn.Module {
	ini := nn.GlorotInit{Rng: rand.New(rand.NewSource(1))}
	return []nn.Module{
		nn.NewReshape(-1, 4, 4, 1),
		nn.NewConv2D("conv1", 1, 2, 3, 1, nn.Same, ini),
		nn.NewReLU(),
		nn.NewMaxPool2D(2, 2, nn.Same),
		nn.NewReshape(-1, 2*2*2),
		nn.NewLinear("fc1", 8, 3, ini),
		nn.NewReLU(),
		nn.NewDropout(rand.New(rand.NewSource(2))),
		nn.NewLinear("fc2", 3, 2, ini),
		nn.NewSoftmax(),
	}
}

func opTypes(g *GraphProto) []string {
	ops := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ops[i] = n.OpType
	}
	return ops
}

func TestExport_GraphStructure(t *testing.T) {
	model, err := Export(smallCNN(), ExportOptions{InputFeatures: 16, ProducerVersion: "test"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Reshape", "Transpose", "Conv", "Relu", "MaxPool", "Transpose", "Reshape",
		"Gemm", "Relu", "Dropout", "Gemm", "Softmax",
	}, opTypes(model.Graph))

	last := model.Graph.Nodes[len(model.Graph.Nodes)-1]
	assert.Equal(t, []string{"output"}, last.Outputs)
	assert.Equal(t, "input", model.Graph.Nodes[0].Inputs[0])

	// Every node input is either a graph input, an initializer or an
	// earlier node's output.
	known := map[string]bool{"input": true}
	for _, ini := range model.Graph.Initializers {
		known[ini.Name] = true
	}
	for _, n := range model.Graph.Nodes {
		for _, in := range n.Inputs {
			assert.True(t, known[in], "node %s reads undefined tensor %s", n.Name, in)
		}
		for _, out := range n.Outputs {
			known[out] = true
		}
	}
}

func TestExport_RoundTripThroughWireFormat(t *testing.T) {
	layers := smallCNN()
	model, err := Export(layers, ExportOptions{InputFeatures: 16, ProducerVersion: "1.2.3", DocString: "cnn"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, Marshal(model), 0o644))

	parsed, err := ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(IRVersion), parsed.IRVersion)
	assert.Equal(t, "digitnet", parsed.ProducerName)
	assert.Equal(t, "1.2.3", parsed.ProducerVersion)
	assert.Equal(t, "cnn", parsed.DocString)
	require.Len(t, parsed.OpsetImport, 1)
	assert.Equal(t, int64(OpsetVersion), parsed.OpsetImport[0].Version)

	require.NotNil(t, parsed.Graph)
	assert.Equal(t, opTypes(model.Graph), opTypes(parsed.Graph))
	require.Len(t, parsed.Graph.Inputs, 1)
	in := parsed.Graph.Inputs[0]
	assert.Equal(t, "input", in.Name)
	require.NotNil(t, in.Type)
	assert.Equal(t, int32(TensorProtoFloat), in.Type.TensorType.ElemType)
	assert.Equal(t, []DimensionProto{{DimParam: "batch"}, {DimValue: 16}}, in.Type.TensorType.Shape.Dims)
	require.Len(t, parsed.Graph.Outputs, 1)
	assert.Equal(t, "output", parsed.Graph.Outputs[0].Name)

	conv := parsed.Graph.Nodes[2]
	require.Equal(t, "Conv", conv.OpType)
	assert.Equal(t, []int64{3, 3}, conv.Attr("kernel_shape").Ints)
	assert.Equal(t, "SAME_UPPER", string(conv.Attr("auto_pad").S))
	softmax := parsed.Graph.Nodes[len(parsed.Graph.Nodes)-1]
	assert.Equal(t, int64(-1), softmax.Attr("axis").I)

	byName := map[string]TensorProto{}
	for _, ini := range parsed.Graph.Initializers {
		byName[ini.Name] = ini
	}
	fc1 := byName["fc1.weight"]
	assert.Equal(t, []int64{8, 3}, fc1.Dims)
	got, err := tensor.FromBytes(tensor.Shape{8, 3}, fc1.RawData)
	require.NoError(t, err)
	want := layers[5].(*nn.Linear).Weight().Tensor().Data()
	assert.Equal(t, want, got.Data())

	shape := byName["reshape_0_shape"]
	assert.Equal(t, []int64{-1, 4, 4, 1}, shape.Int64Data)
}

func TestExport_ConvKernelLayout(t *testing.T) {
	ini := nn.GlorotInit{Rng: rand.New(rand.NewSource(3))}
	conv := nn.NewConv2D("c", 2, 3, 2, 1, nn.Valid, ini)
	w := conv.Weight().Tensor()
	for i := range w.Data() {
		w.Data()[i] = float32(i)
	}

	got := hwioToOIHW(w)
	// HWIO index of (y=1, x=0, i=1, o=2) is ((1*2+0)*2+1)*3+2 = 17.
	// OIHW index of the same element is ((2*2+1)*2+1)*2+0 = 22.
	assert.Equal(t, float32(17), got[22])
	assert.ElementsMatch(t, w.Data(), got)
}

func TestExport_Errors(t *testing.T) {
	ini := nn.GlorotInit{Rng: rand.New(rand.NewSource(4))}

	_, err := Export([]nn.Module{nn.NewConv2D("c", 1, 1, 3, 1, nn.Same, ini)}, ExportOptions{})
	assert.Error(t, err, "conv without a rank-4 input")

	_, err = Export([]nn.Module{nn.NewReLU()}, ExportOptions{})
	assert.Error(t, err, "no linear output layer")

	_, err = Export([]nn.Module{nn.NewSequential()}, ExportOptions{})
	assert.Error(t, err, "unsupported layer")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte{0x0a, 0xff})
	assert.ErrorIs(t, err, ErrMalformed)
}
