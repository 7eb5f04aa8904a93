package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(err)
	}
	return &Tensor{shape: shape.Clone(), data: make([]float32, shape.NumElements())}
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	b := tensor.Full(tensor.Shape{32}, 0.1) // bias initialised like the CNN variant
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	t.Fill(value)
	return t
}

// TruncatedNormal draws from N(0, stddev²), redrawing samples further than
// two standard deviations from the mean.
//
//nolint:gosec // Weight initialization is not security-critical.
func TruncatedNormal(shape Shape, stddev float64, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		for {
			v := rng.NormFloat64()
			if math.Abs(v) <= 2 {
				t.data[i] = float32(v * stddev)
				break
			}
		}
	}
	return t
}

// XavierUniform draws from U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
//
// This is the Glorot initializer, the default kernel initializer of the
// layer API the estimator variant is modelled on.
func XavierUniform(shape Shape, fanIn, fanOut int, rng *rand.Rand) *Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}
