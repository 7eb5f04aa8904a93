// Package export writes and reloads model bundles.
//
// A bundle is a directory holding:
//
//	model.dgt        weights, architecture and signature
//	model.onnx       the same network as an ONNX graph
//	statistics.json  training statistics and sample predictions
//
// Bundles are assembled in a temporary sibling directory and renamed into
// place. A bundle that is being replaced stays readable under
// <dir>.previous until the swap finishes, and Load falls back to it.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/onnx"
	"github.com/brice-v/digitnet/internal/serialization"
)

// File names inside a bundle.
const (
	CheckpointFile = "model.dgt"
	ONNXFile       = "model.onnx"
	StatisticsFile = "statistics.json"

	previousSuffix = ".previous"
)

var (
	// ErrUnknownSignature is returned when a tensor name is not part of
	// the model signature.
	ErrUnknownSignature = errors.New("export: unknown signature name")

	// ErrNoExport is returned when a directory holds no bundle.
	ErrNoExport = errors.New("export: no exported model found")
)

// Options configures Save.
type Options struct {
	// Timestamped places the bundle in <dir>/<unix-seconds>.
	Timestamped bool
	// RunID identifies the training run; a random UUID when empty.
	RunID string
	// Version is recorded as the producer version.
	Version string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Save exports net and stats into dir and returns the bundle directory.
func Save(dir string, net *model.Network, stats Statistics, opts Options) (string, error) {
	if err := stats.Validate(); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	target := dir
	if opts.Timestamped {
		target = filepath.Join(dir, strconv.FormatInt(now().Unix(), 10))
	}
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(target)+".tmp-")
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := writeBundle(tmp, net, stats, opts, now()); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	if err := swap(tmp, target); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	return target, nil
}

func writeBundle(dir string, net *model.Network, stats Statistics, opts Options, now time.Time) error {
	arch := net.Architecture()
	header := serialization.Header{
		Producer:     "digitnet " + opts.Version,
		Architecture: arch.Name,
		RunID:        opts.RunID,
		CreatedAt:    now.UTC(),
		Signature:    model.Signature(),
		Metadata: map[string]string{
			"optimizer":  arch.Optimizer,
			"steps":      strconv.Itoa(stats.Steps),
			"batch_size": strconv.Itoa(stats.BatchSize),
			"accuracy":   strconv.FormatFloat(stats.Accuracy, 'f', 4, 64),
		},
	}
	if err := serialization.WriteFile(filepath.Join(dir, CheckpointFile), net.StateDict(), header); err != nil {
		return fmt.Errorf("export: checkpoint: %w", err)
	}

	graph, err := onnx.Export(net.ExportLayers(), onnx.ExportOptions{
		GraphName:       arch.Name,
		InputName:       model.InputName,
		OutputName:      model.OutputName,
		InputFeatures:   model.Features,
		ProducerVersion: opts.Version,
		DocString:       "digitnet " + arch.Name + " run " + opts.RunID,
	})
	if err != nil {
		return fmt.Errorf("export: onnx: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ONNXFile), onnx.Marshal(graph), 0o644); err != nil {
		return fmt.Errorf("export: onnx: %w", err)
	}

	if err := writeStatistics(filepath.Join(dir, StatisticsFile), stats); err != nil {
		return fmt.Errorf("export: statistics: %w", err)
	}
	return nil
}

// swap moves the finished bundle in tmp to target.
func swap(tmp, target string) error {
	previous := target + previousSuffix
	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	hadOld := true
	if err := os.Rename(target, previous); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("export: %w", err)
		}
		hadOld = false
	}
	if err := os.Rename(tmp, target); err != nil {
		if hadOld {
			_ = os.Rename(previous, target)
		}
		return fmt.Errorf("export: %w", err)
	}
	if hadOld {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("export: removing replaced bundle: %w", err)
		}
	}
	return nil
}

// Latest returns the newest timestamped bundle below dir. A bundle caught
// in the middle of a swap still counts; its base path is returned and
// Load picks up the replaced copy.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w in %s: %v", ErrNoExport, dir, err)
	}
	seen := make(map[int64]bool, len(entries))
	var stamps []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), previousSuffix), 10, 64)
		if err != nil || seen[ts] {
			continue
		}
		seen[ts] = true
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] > stamps[j] })
	for _, ts := range stamps {
		candidate := filepath.Join(dir, strconv.FormatInt(ts, 10))
		if hasBundle(candidate) || hasBundle(candidate+previousSuffix) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoExport, dir)
}

// Resolve returns dir itself when it holds a bundle, or else its newest
// timestamped bundle.
func Resolve(dir string) (string, error) {
	if hasBundle(dir) || hasBundle(dir+previousSuffix) {
		return dir, nil
	}
	return Latest(dir)
}

func hasBundle(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, CheckpointFile))
	return err == nil
}
