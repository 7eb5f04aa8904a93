// Package predict classifies the fixed sample images with a trained model.
package predict

import (
	"fmt"
	"io"

	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/samples"
)

// Classifier runs a network over sample categories.
type Classifier struct {
	Net        *model.Network
	SamplesDir string

	// DumpDir receives <Category>-<i>.json and komprimiert-<i>.png files
	// when the matching Dump flag is set. Defaults to SamplesDir.
	DumpDir  string
	DumpJSON bool
	DumpPNG  bool

	Out io.Writer // one line per image; nil discards
}

// Result is the outcome for one sample image.
type Result struct {
	Category string
	Index    int
	model.Prediction
}

// Category classifies the ten images of one category.
func (c *Classifier) Category(category string) ([]Result, error) {
	out := c.Out
	if out == nil {
		out = io.Discard
	}
	dumpDir := c.DumpDir
	if dumpDir == "" {
		dumpDir = c.SamplesDir
	}

	imgs, err := samples.LoadCategory(c.SamplesDir, category)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(imgs))
	for _, s := range imgs {
		if c.DumpJSON {
			if err := samples.DumpJSON(dumpDir, category, s); err != nil {
				return nil, err
			}
		}
		if c.DumpPNG {
			if err := samples.DumpPNG(dumpDir, s); err != nil {
				return nil, err
			}
		}

		p, err := c.Net.PredictVector(s.Vector)
		if err != nil {
			return nil, fmt.Errorf("%s-%d: %w", category, s.Index, err)
		}
		fmt.Fprintf(out, "%d: the digit shown is a %d with %.2f%% confidence\n", s.Index, p.Class, 100*p.Confidence)
		results = append(results, Result{Category: category, Index: s.Index, Prediction: p})
	}
	return results, nil
}

// All classifies every category in samples.Categories and returns the
// predicted classes per category, as stored in statistics.json.
func (c *Classifier) All() (map[string][]int, error) {
	out := c.Out
	if out == nil {
		out = io.Discard
	}
	preds := make(map[string][]int, len(samples.Categories))
	for _, category := range samples.Categories {
		fmt.Fprintf(out, "%s:\n", category)
		results, err := c.Category(category)
		if err != nil {
			return nil, err
		}
		classes := make([]int, len(results))
		for i, r := range results {
			classes[i] = r.Class
		}
		preds[category] = classes
	}
	return preds, nil
}
