package mnist

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// File names of the dataset, without the optional .gz suffix.
const (
	TrainImagesFile = "train-images-idx3-ubyte"
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"

	// CSV exports used when the IDX files are absent.
	TrainCSVFile = "mnist_train.csv"
	TestCSVFile  = "mnist_test.csv"
)

// DefaultValidationSize is the number of training images held out for validation.
const DefaultValidationSize = 5000

// Options configures Load.
type Options struct {
	ValidationSize int   // defaults to DefaultValidationSize; negative disables the split
	Seed           int64 // shuffling seed for NextBatch
}

// Load reads the dataset from dir.
func Load(dir string, opts Options) (*DataSets, error) {
	validation := opts.ValidationSize
	if validation == 0 {
		validation = DefaultValidationSize
	}
	if validation < 0 {
		validation = 0
	}

	trainX, trainY, err := loadSplit(dir, TrainImagesFile, TrainLabelsFile, TrainCSVFile)
	if err != nil {
		return nil, err
	}
	testX, testY, err := loadSplit(dir, TestImagesFile, TestLabelsFile, TestCSVFile)
	if err != nil {
		return nil, err
	}
	if validation >= len(trainY) {
		return nil, fmt.Errorf("validation size %d must be smaller than the %d training images", validation, len(trainY))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	split := validation * NumPixels

	sets := &DataSets{}
	if sets.Validation, err = NewDataSet(trainX[:split], trainY[:validation], NumPixels, rand.New(rand.NewSource(rng.Int63()))); err != nil {
		return nil, fmt.Errorf("validation split: %w", err)
	}
	if sets.Train, err = NewDataSet(trainX[split:], trainY[validation:], NumPixels, rand.New(rand.NewSource(rng.Int63()))); err != nil {
		return nil, fmt.Errorf("train split: %w", err)
	}
	if sets.Test, err = NewDataSet(testX, testY, NumPixels, rand.New(rand.NewSource(rng.Int63()))); err != nil {
		return nil, fmt.Errorf("test split: %w", err)
	}
	return sets, nil
}

func loadSplit(dir, imagesFile, labelsFile, csvFile string) ([]float32, []int, error) {
	imagesPath, err := findFile(dir, imagesFile)
	if err != nil {
		csvPath := filepath.Join(dir, csvFile)
		if _, statErr := os.Stat(csvPath); statErr == nil {
			return readCSV(csvPath, 0)
		}
		return nil, nil, fmt.Errorf("%w (nor %s)", err, csvFile)
	}
	labelsPath, err := findFile(dir, labelsFile)
	if err != nil {
		return nil, nil, err
	}

	img, err := ReadImages(imagesPath)
	if err != nil {
		return nil, nil, err
	}
	if img.Rows != ImageSize || img.Cols != ImageSize {
		return nil, nil, fmt.Errorf("%w: %s: images are %dx%d, want %dx%d",
			ErrInvalidIDX, imagesPath, img.Rows, img.Cols, ImageSize, ImageSize)
	}
	raw, err := ReadLabels(labelsPath)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) != img.Count {
		return nil, nil, fmt.Errorf("%d images but %d labels in %s", img.Count, len(raw), dir)
	}

	pixels := make([]float32, len(img.Pixels))
	for i, p := range img.Pixels {
		pixels[i] = float32(p) / 255
	}
	labels := make([]int, len(raw))
	for i, l := range raw {
		labels[i] = int(l)
	}
	return pixels, labels, nil
}

// findFile prefers the plain file and falls back to the .gz variant.
func findFile(dir, name string) (string, error) {
	for _, candidate := range []string{name, name + ".gz"} {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("mnist: %s(.gz) not found in %s", name, dir)
}
