package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/samples"
)

// Statistics is the JSON sidecar written next to every exported model.
type Statistics struct {
	Steps          int              `json:"steps"`
	BatchSize      int              `json:"batch_size"`
	Accuracy       float64          `json:"accuracy"`
	PicPredictions map[string][]int `json:"picPredictions"`
}

// RoundAccuracy rounds to four decimal places, the precision stored in
// statistics.json.
func RoundAccuracy(acc float32) float64 {
	return math.Round(float64(acc)*1e4) / 1e4
}

// Validate checks that every category holds one digit per sample image.
func (s *Statistics) Validate() error {
	if s.Accuracy < 0 || s.Accuracy > 1 {
		return fmt.Errorf("accuracy %g out of range [0, 1]", s.Accuracy)
	}
	for category, preds := range s.PicPredictions {
		if len(preds) != samples.PerCategory {
			return fmt.Errorf("%s has %d predictions, want %d", category, len(preds), samples.PerCategory)
		}
		for i, p := range preds {
			if p < 0 || p >= model.Classes {
				return fmt.Errorf("prediction %d of %s is %d, not a digit", i, category, p)
			}
		}
	}
	return nil
}

func writeStatistics(path string, s Statistics) error {
	if s.PicPredictions == nil {
		s.PicPredictions = map[string][]int{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadStatistics reads a statistics.json file.
func ReadStatistics(path string) (*Statistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Statistics
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}
