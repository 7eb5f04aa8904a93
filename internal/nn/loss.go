package nn

import (
	"fmt"
	"math"

	"github.com/brice-v/digitnet/internal/tensor"
)

// SoftmaxCrossEntropy computes the mean cross-entropy between softmax(logits)
// and one-hot labels, and the gradient of that mean w.r.t. the logits.
//
// Mathematical Formulation:
//
//	Loss = -1/N Σ_i Σ_j y_ij · log softmax(logits_i)_j
//	∂L/∂logits = (softmax(logits) - y) / N
//
// The log-sum-exp form keeps the loss finite for large logits.
func SoftmaxCrossEntropy(logits, labels *tensor.Tensor) (float32, *tensor.Tensor) {
	if !logits.Shape().Equal(labels.Shape()) || len(logits.Shape()) != 2 {
		panic(fmt.Sprintf("SoftmaxCrossEntropy: logits %v and labels %v must be equal 2D shapes",
			logits.Shape(), labels.Shape()))
	}
	n := logits.Dim(0)
	grad := logits.Clone()
	var total float64
	for i := 0; i < n; i++ {
		row := logits.Row(i)
		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxV))
		}
		logSum := math.Log(sum) + float64(maxV)

		y := labels.Row(i)
		g := grad.Row(i)
		for j, v := range row {
			logP := float64(v) - logSum
			total -= float64(y[j]) * logP
			g[j] = (float32(math.Exp(logP)) - y[j]) / float32(n)
		}
	}
	return float32(total / float64(n)), grad
}

// Accuracy returns the fraction of rows whose argmax matches the one-hot label.
func Accuracy(logits, labels *tensor.Tensor) float32 {
	correct := CountCorrect(logits, labels)
	return float32(correct) / float32(logits.Dim(0))
}

// CountCorrect returns how many rows have matching argmax in both tensors.
func CountCorrect(logits, labels *tensor.Tensor) int {
	pred := logits.ArgmaxRows()
	want := labels.ArgmaxRows()
	correct := 0
	for i := range pred {
		if pred[i] == want[i] {
			correct++
		}
	}
	return correct
}
