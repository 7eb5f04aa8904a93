package nn

import (
	"fmt"
	"math/rand"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Dropout randomly zeroes activations during training.
//
// The layer is driven by a keep probability rather than a drop rate:
// each element survives with probability keepProb and survivors are
// scaled by 1/keepProb, so a keep probability of 1 turns the layer into
// the identity. This is the value fed through the "dropoutRate" signature
// input of an exported model.
type Dropout struct {
	keepProb float32
	rng      *rand.Rand
	mask     []float32
}

// NewDropout creates a dropout layer with keep probability 1.
func NewDropout(rng *rand.Rand) *Dropout {
	return &Dropout{keepProb: 1, rng: rng}
}

// SetKeepProb sets the keep probability for subsequent Forward calls.
func (d *Dropout) SetKeepProb(p float32) {
	if p <= 0 || p > 1 {
		panic(fmt.Sprintf("dropout: keep probability %g outside (0, 1]", p))
	}
	d.keepProb = p
}

// KeepProb returns the current keep probability.
func (d *Dropout) KeepProb() float32 {
	return d.keepProb
}

// Forward applies the dropout mask.
func (d *Dropout) Forward(input *tensor.Tensor) *tensor.Tensor {
	if d.keepProb >= 1 {
		d.mask = d.mask[:0]
		return input.Clone()
	}
	out := input.Clone()
	data := out.Data()
	if cap(d.mask) < len(data) {
		d.mask = make([]float32, len(data))
	}
	d.mask = d.mask[:len(data)]
	scale := 1 / d.keepProb
	for i := range data {
		//nolint:gosec // dropout noise is not security-critical
		if d.rng.Float32() < d.keepProb {
			d.mask[i] = scale
			data[i] *= scale
		} else {
			d.mask[i] = 0
			data[i] = 0
		}
	}
	return out
}

// Backward applies the same mask to the gradient.
func (d *Dropout) Backward(grad *tensor.Tensor) *tensor.Tensor {
	dx := grad.Clone()
	if len(d.mask) == 0 {
		return dx
	}
	data := dx.Data()
	for i := range data {
		data[i] *= d.mask[i]
	}
	return dx
}

// Parameters returns nil.
func (d *Dropout) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the layer.
func (d *Dropout) String() string {
	return fmt.Sprintf("Dropout(keep_prob=%g)", d.keepProb)
}
