package mnist

import (
	"fmt"
	"math/rand"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Dataset dimensions.
const (
	ImageSize  = 28
	NumPixels  = ImageSize * ImageSize
	NumClasses = 10
)

// DataSet is one split of the dataset: flattened images and one-hot labels.
//
// NextBatch walks the examples in a shuffled order. When a batch crosses
// the end of an epoch the remaining examples are joined with the head of
// a freshly shuffled next epoch, so every batch has exactly the requested
// size.
type DataSet struct {
	images   []float32 // n*features
	labels   []int
	features int
	n        int

	rng             *rand.Rand
	perm            []int
	indexInEpoch    int
	epochsCompleted int
}

// NewDataSet creates a data set from flattened images and class labels.
func NewDataSet(images []float32, labels []int, features int, rng *rand.Rand) (*DataSet, error) {
	if features <= 0 {
		return nil, fmt.Errorf("invalid feature count %d", features)
	}
	if len(images) != len(labels)*features {
		return nil, fmt.Errorf("%d image values for %d labels of %d features", len(images), len(labels), features)
	}
	for i, l := range labels {
		if l < 0 || l >= NumClasses {
			return nil, fmt.Errorf("label %d at index %d out of range [0, %d)", l, i, NumClasses)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	perm := make([]int, len(labels))
	for i := range perm {
		perm[i] = i
	}
	return &DataSet{
		images:   images,
		labels:   labels,
		features: features,
		n:        len(labels),
		rng:      rng,
		perm:     perm,
	}, nil
}

// NumExamples returns the number of examples.
func (d *DataSet) NumExamples() int {
	return d.n
}

// Features returns the length of one image vector.
func (d *DataSet) Features() int {
	return d.features
}

// EpochsCompleted returns how many full passes NextBatch has made.
func (d *DataSet) EpochsCompleted() int {
	return d.epochsCompleted
}

// Label returns the class of example i.
func (d *DataSet) Label(i int) int {
	return d.labels[i]
}

// Image returns the image vector of example i.
func (d *DataSet) Image(i int) []float32 {
	return d.images[i*d.features : (i+1)*d.features]
}

// Slice returns examples [start, end) as an image batch and one-hot labels.
func (d *DataSet) Slice(start, end int) (*tensor.Tensor, *tensor.Tensor) {
	if start < 0 || end > d.n || start >= end {
		panic(fmt.Sprintf("mnist: invalid slice [%d, %d) of %d examples", start, end, d.n))
	}
	idx := make([]int, end-start)
	for i := range idx {
		idx[i] = start + i
	}
	return d.gather(idx)
}

// NextBatch returns the next batchSize examples.
func (d *DataSet) NextBatch(batchSize int) (*tensor.Tensor, *tensor.Tensor) {
	if batchSize <= 0 || batchSize > d.n {
		panic(fmt.Sprintf("mnist: batch size %d with %d examples", batchSize, d.n))
	}

	start := d.indexInEpoch
	if d.epochsCompleted == 0 && start == 0 {
		d.shuffle()
	}

	if start+batchSize > d.n {
		d.epochsCompleted++
		idx := append([]int(nil), d.perm[start:]...)
		d.shuffle()
		d.indexInEpoch = batchSize - len(idx)
		idx = append(idx, d.perm[:d.indexInEpoch]...)
		return d.gather(idx)
	}

	d.indexInEpoch += batchSize
	return d.gather(d.perm[start:d.indexInEpoch])
}

func (d *DataSet) shuffle() {
	d.rng.Shuffle(len(d.perm), func(i, j int) {
		d.perm[i], d.perm[j] = d.perm[j], d.perm[i]
	})
}

func (d *DataSet) gather(idx []int) (*tensor.Tensor, *tensor.Tensor) {
	x := tensor.Zeros(tensor.Shape{len(idx), d.features})
	y := tensor.Zeros(tensor.Shape{len(idx), NumClasses})
	xd, yd := x.Data(), y.Data()
	for row, i := range idx {
		copy(xd[row*d.features:], d.Image(i))
		yd[row*NumClasses+d.labels[i]] = 1
	}
	return x, y
}

// OneHot encodes class labels as a [len(labels), classes] matrix.
func OneHot(labels []int, classes int) *tensor.Tensor {
	t := tensor.Zeros(tensor.Shape{len(labels), classes})
	for i, l := range labels {
		t.Data()[i*classes+l] = 1
	}
	return t
}

// DataSets groups the three splits.
type DataSets struct {
	Train      *DataSet
	Validation *DataSet
	Test       *DataSet
}
