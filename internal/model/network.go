package model

import (
	"fmt"
	"math/rand"

	"github.com/brice-v/digitnet/internal/nn"
	"github.com/brice-v/digitnet/internal/optim"
	"github.com/brice-v/digitnet/internal/serialization"
	"github.com/brice-v/digitnet/internal/tensor"
)

// Network is a built classifier.
//
// Layers cache activations between Forward and Backward, so a Network
// must not be used from several goroutines at once.
type Network struct {
	arch Architecture
	seq  *nn.Sequential
}

// New builds the named architecture with weights drawn from seed.
func New(name string, seed int64) (*Network, error) {
	arch, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Network{arch: arch, seq: arch.build(rand.New(rand.NewSource(seed)))}, nil
}

// Architecture returns the network's architecture.
func (n *Network) Architecture() Architecture {
	return n.arch
}

// Parameters returns the trainable parameters.
func (n *Network) Parameters() []*nn.Parameter {
	return n.seq.Parameters()
}

// NewOptimizer creates the architecture's optimizer over the network parameters.
func (n *Network) NewOptimizer() (optim.Optimizer, error) {
	return optim.New(n.arch.Optimizer, n.seq.Parameters(), n.arch.LR)
}

// Forward returns logits for a [batch, 784] input with the given dropout
// keep probability.
func (n *Network) Forward(x *tensor.Tensor, keepProb float32) *tensor.Tensor {
	for _, d := range n.seq.Dropouts() {
		d.SetKeepProb(keepProb)
	}
	return n.seq.Forward(x)
}

// Probabilities returns softmax class probabilities with dropout disabled.
func (n *Network) Probabilities(x *tensor.Tensor) *tensor.Tensor {
	probs := n.Forward(x, 1)
	for i := 0; i < probs.Dim(0); i++ {
		nn.SoftmaxInPlace(probs.Row(i))
	}
	return probs
}

// TrainStep runs one optimizer update on a batch and returns the loss.
func (n *Network) TrainStep(x, y *tensor.Tensor, keepProb float32, opt optim.Optimizer) float32 {
	opt.ZeroGrad()
	logits := n.Forward(x, keepProb)
	loss, grad := nn.SoftmaxCrossEntropy(logits, y)
	n.seq.Backward(grad)
	opt.Step()
	return loss
}

// Prediction is the classification of one input row.
type Prediction struct {
	Class      int       `json:"class"`
	Confidence float32   `json:"confidence"` // probability of Class
	Scores     []float32 `json:"scores"`     // probability of every class
}

// Predict classifies each row of x.
func (n *Network) Predict(x *tensor.Tensor) []Prediction {
	probs := n.Probabilities(x)
	out := make([]Prediction, probs.Dim(0))
	for i := range out {
		row := append([]float32(nil), probs.Row(i)...)
		class := tensor.Argmax(row)
		out[i] = Prediction{Class: class, Confidence: row[class], Scores: row}
	}
	return out
}

// PredictVector classifies a single 784-value image.
func (n *Network) PredictVector(v []float32) (Prediction, error) {
	if len(v) != Features {
		return Prediction{}, fmt.Errorf("input has %d values, want %d", len(v), Features)
	}
	x, err := tensor.New(tensor.Shape{1, Features}, append([]float32(nil), v...))
	if err != nil {
		return Prediction{}, err
	}
	return n.Predict(x)[0], nil
}

// ExportLayers returns the layer stack followed by the output softmax.
func (n *Network) ExportLayers() []nn.Module {
	layers := append([]nn.Module(nil), n.seq.Modules()...)
	return append(layers, nn.NewSoftmax())
}

// StateDict returns the network weights by parameter name.
func (n *Network) StateDict() map[string]*tensor.Tensor {
	return nn.StateDict(n.seq)
}

// LoadStateDict replaces the network weights.
func (n *Network) LoadStateDict(sd map[string]*tensor.Tensor) error {
	return nn.LoadStateDict(n.seq, sd)
}

// Signature describes the named inputs and outputs of every exported network.
func Signature() *serialization.Signature {
	return &serialization.Signature{
		Inputs: map[string]serialization.TensorInfo{
			InputName:   {DType: serialization.DTypeFloat32, Shape: []int{-1, Features}},
			DropoutName: {DType: serialization.DTypeFloat32, Shape: []int{}},
		},
		Outputs: map[string]serialization.TensorInfo{
			OutputName: {DType: serialization.DTypeFloat32, Shape: []int{-1, Classes}},
		},
	}
}

// String describes the layer stack.
func (n *Network) String() string {
	return fmt.Sprintf("%s %v", n.arch.Name, n.seq)
}
