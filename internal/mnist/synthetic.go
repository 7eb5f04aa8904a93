package mnist

import (
	"math/rand"
)

// Synthetic generates a separable stand-in for MNIST: each class lights a
// 6x6 block at its own position on a noisy 28x28 canvas. It lets the
// training pipeline run without the dataset files.
func Synthetic(train, test int, seed int64) *DataSets {
	rng := rand.New(rand.NewSource(seed))
	validation := train / 10

	build := func(n int) *DataSet {
		images := make([]float32, n*NumPixels)
		labels := make([]int, n)
		for i := 0; i < n; i++ {
			labels[i] = rng.Intn(NumClasses)
			drawSynthetic(images[i*NumPixels:(i+1)*NumPixels], labels[i], rng)
		}
		ds, err := NewDataSet(images, labels, NumPixels, rand.New(rand.NewSource(rng.Int63())))
		if err != nil {
			panic(err)
		}
		return ds
	}

	return &DataSets{
		Validation: build(validation),
		Train:      build(train),
		Test:       build(test),
	}
}

func drawSynthetic(img []float32, class int, rng *rand.Rand) {
	for i := range img {
		img[i] = 0.2 * rng.Float32()
	}
	// Five block positions per row, two rows.
	top := 3 + (class/5)*13
	left := 1 + (class%5)*5
	for y := top; y < top+6; y++ {
		for x := left; x < left+6 && x < ImageSize; x++ {
			img[y*ImageSize+x] = 0.8 + 0.2*rng.Float32()
		}
	}
}
