package mnist

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
)

// LoadCSV loads a split from a Kaggle-style CSV file.
//
// CSV format:
//
//	label,pixel0,pixel1,...,pixel783
//	5,0,0,12,...,0
//
// maxSamples limits the number of rows read; 0 reads all of them.
func LoadCSV(path string, maxSamples int, seed int64) (*DataSet, error) {
	images, labels, err := readCSV(path, maxSamples)
	if err != nil {
		return nil, err
	}
	return NewDataSet(images, labels, NumPixels, rand.New(rand.NewSource(seed)))
}

func readCSV(path string, maxSamples int) ([]float32, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("CSV file %s is empty or missing header", path)
	}
	records = records[1:]
	if maxSamples > 0 && len(records) > maxSamples {
		records = records[:maxSamples]
	}

	images := make([]float32, len(records)*NumPixels)
	labels := make([]int, len(records))
	for i, record := range records {
		if len(record) != NumPixels+1 {
			return nil, nil, fmt.Errorf("invalid record length at row %d: got %d, want %d", i+1, len(record), NumPixels+1)
		}
		label, err := strconv.Atoi(record[0])
		if err != nil || label < 0 || label >= NumClasses {
			return nil, nil, fmt.Errorf("invalid label at row %d: %q", i+1, record[0])
		}
		labels[i] = label
		for j, field := range record[1:] {
			v, err := strconv.Atoi(field)
			if err != nil || v < 0 || v > 255 {
				return nil, nil, fmt.Errorf("invalid pixel %d at row %d: %q", j, i+1, field)
			}
			images[i*NumPixels+j] = float32(v) / 255
		}
	}
	return images, labels, nil
}
