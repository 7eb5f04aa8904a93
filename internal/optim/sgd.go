package optim

import "github.com/brice-v/digitnet/internal/nn"

// SGD implements plain gradient descent: param = param - lr * gradient.
type SGD struct {
	params []*nn.Parameter
	lr     float32
}

// SGDConfig holds configuration for SGD.
type SGDConfig struct {
	LR float32 // Learning rate (default: 0.5)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.5
	}
	return &SGD{params: params, lr: config.LR}
}

// Step applies one gradient-descent update.
func (s *SGD) Step() {
	for _, param := range s.params {
		value := param.Tensor().Data()
		for i, g := range param.Grad().Data() {
			value[i] -= s.lr * g
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// Name returns "SGD".
func (s *SGD) Name() string {
	return "SGD"
}
