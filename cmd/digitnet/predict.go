package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/brice-v/digitnet/internal/config"
	"github.com/brice-v/digitnet/internal/export"
	"github.com/brice-v/digitnet/internal/predict"
)

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	flags := config.NewFlags(fs, "export_dir", "samples_dir")
	category := fs.String("category", "", "classify only this category")
	dumpJSON := fs.Bool("dump-json", false, "write <Category>-<i>.json with the preprocessed vectors")
	dumpPNG := fs.Bool("dump-png", false, "write komprimiert-<i>.png with the scaled images")
	fs.Parse(args)

	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}

	dir, err := export.Resolve(cfg.ExportDir)
	if err != nil {
		return err
	}
	b, err := export.Load(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %s model from %s\n", b.Header.Architecture, b.Dir)

	c := &predict.Classifier{
		Net:        b.Net,
		SamplesDir: cfg.SamplesDir,
		DumpJSON:   *dumpJSON,
		DumpPNG:    *dumpPNG,
		Out:        os.Stdout,
	}
	if *category != "" {
		_, err := c.Category(*category)
		return err
	}
	_, err = c.All()
	return err
}
