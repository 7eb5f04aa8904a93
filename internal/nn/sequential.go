package nn

import (
	"fmt"
	"strings"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input; Backward walks
// the chain in reverse.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear("fc1", 784, 128, init),
//	    nn.NewReLU(),
//	    nn.NewLinear("fc2", 128, 10, init),
//	)
//
//	output := model.Forward(input)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Backward propagates grad through all modules in reverse order.
func (s *Sequential) Backward(grad *tensor.Tensor) *tensor.Tensor {
	for i := len(s.modules) - 1; i >= 0; i-- {
		grad = s.modules[i].Backward(grad)
	}
	return grad
}

// Parameters returns the parameters of all modules, in order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Modules returns the contained modules.
func (s *Sequential) Modules() []Module {
	return s.modules
}

// Dropouts returns every Dropout layer in the chain.
func (s *Sequential) Dropouts() []*Dropout {
	var out []*Dropout
	for _, m := range s.modules {
		if d, ok := m.(*Dropout); ok {
			out = append(out, d)
		}
	}
	return out
}

// ZeroGrad clears the gradients of all parameters.
func (s *Sequential) ZeroGrad() {
	for _, p := range s.Parameters() {
		p.ZeroGrad()
	}
}

// String lists the contained modules, one per line.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&b, "  (%d): %v\n", i, m)
	}
	b.WriteString(")")
	return b.String()
}
