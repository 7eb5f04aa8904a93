package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/brice-v/digitnet/internal/config"
	"github.com/brice-v/digitnet/internal/export"
	"github.com/brice-v/digitnet/internal/mnist"
	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/parallel"
	"github.com/brice-v/digitnet/internal/predict"
	"github.com/brice-v/digitnet/internal/registry"
	"github.com/brice-v/digitnet/internal/train"
)

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	flags := config.NewFlags(fs,
		"architecture", "data_dir", "export_dir", "samples_dir", "db", "steps", "batch_size",
		"keep_prob", "log_every", "seed", "workers", "synthetic", "no_save")
	fs.Parse(args)

	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}
	if err := cfg.ApplyArchitecture(); err != nil {
		return err
	}
	if cfg.Workers > 0 {
		pc := parallel.Default()
		pc.NumWorkers = cfg.Workers
		parallel.SetDefault(pc)
	}

	var sets *mnist.DataSets
	if cfg.Synthetic {
		fmt.Println("Using synthetic data")
		sets = mnist.Synthetic(5000, 1000, cfg.Seed)
	} else {
		fmt.Printf("Loading MNIST data from %s\n", cfg.DataDir)
		if sets, err = mnist.Load(cfg.DataDir, mnist.Options{Seed: cfg.Seed}); err != nil {
			return fmt.Errorf("%w (use -synthetic to train without the dataset)", err)
		}
	}
	fmt.Printf("  train %d, validation %d, test %d examples\n",
		sets.Train.NumExamples(), sets.Validation.NumExamples(), sets.Test.NumExamples())

	net, err := model.New(cfg.Architecture, cfg.Seed)
	if err != nil {
		return err
	}
	arch := net.Architecture()
	fmt.Printf("Training %s network: %d steps, batch %d, %s lr=%g\n",
		arch.Name, cfg.Steps, cfg.BatchSize, arch.Optimizer, arch.LR)

	runID := uuid.NewString()
	started := time.Now()
	res, err := train.Run(net, sets.Train, train.Config{
		Steps:     cfg.Steps,
		BatchSize: cfg.BatchSize,
		KeepProb:  cfg.KeepProb,
		LogEvery:  cfg.LogEvery,
		Out:       os.Stdout,
	})
	if err != nil {
		return err
	}

	acc := train.Evaluate(net, sets.Test, 0)
	fmt.Printf("test accuracy %g (%v)\n", acc, res.Duration.Round(time.Millisecond))

	stats := export.Statistics{
		Steps:          res.Steps,
		BatchSize:      res.BatchSize,
		Accuracy:       export.RoundAccuracy(acc),
		PicPredictions: map[string][]int{},
	}

	exportDir := ""
	if !cfg.NoSave {
		if exportDir, err = export.Save(cfg.ExportDir, net, stats, export.Options{
			Timestamped: arch.Timestamped,
			RunID:       runID,
			Version:     version,
		}); err != nil {
			return err
		}
		fmt.Printf("Model exported to %s\n", exportDir)

		// Classify the samples with the reloaded export, then record the
		// predictions next to it.
		preds, err := classifyExport(exportDir, cfg.SamplesDir)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Printf("No sample images in %s, skipping predictions\n", cfg.SamplesDir)
		case err != nil:
			return err
		default:
			stats.PicPredictions = preds
			if _, err := export.Save(exportDir, net, stats, export.Options{RunID: runID, Version: version}); err != nil {
				return err
			}
		}
	}

	if cfg.DB != "" {
		reg, err := registry.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer reg.Close()
		if err := reg.Record(registry.Run{
			ID:             runID,
			Architecture:   arch.Name,
			Steps:          stats.Steps,
			BatchSize:      stats.BatchSize,
			Accuracy:       stats.Accuracy,
			ExportDir:      exportDir,
			StartedAt:      started,
			Duration:       res.Duration,
			PicPredictions: stats.PicPredictions,
		}); err != nil {
			return err
		}
	}
	return nil
}

func classifyExport(exportDir, samplesDir string) (map[string][]int, error) {
	b, err := export.Load(exportDir)
	if err != nil {
		return nil, err
	}
	c := &predict.Classifier{Net: b.Net, SamplesDir: samplesDir, Out: os.Stdout}
	return c.All()
}
