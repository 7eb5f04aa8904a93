// Package config resolves run configuration from architecture defaults,
// an optional YAML file and command-line flags, in that order of
// precedence.
//
// Example file:
//
//	architecture: cnn
//	data_dir: ./MNIST_data
//	export_dir: ./export
//	samples_dir: ./Own_dat
//	steps: 500
//	batch_size: 50
package config

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brice-v/digitnet/internal/model"
)

// Config holds every setting of the digitnet subcommands.
type Config struct {
	Architecture string  `yaml:"architecture"`
	DataDir      string  `yaml:"data_dir"`
	ExportDir    string  `yaml:"export_dir"`
	SamplesDir   string  `yaml:"samples_dir"`
	DB           string  `yaml:"db"`
	Steps        int     `yaml:"steps"`
	BatchSize    int     `yaml:"batch_size"`
	KeepProb     float32 `yaml:"keep_prob"`
	LogEvery     int     `yaml:"log_every"`
	Seed         int64   `yaml:"seed"`
	Workers      int     `yaml:"workers"`
	Synthetic    bool    `yaml:"synthetic"`
	NoSave       bool    `yaml:"no_save"`
	Addr         string  `yaml:"addr"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Architecture: "cnn",
		DataDir:      "MNIST_data",
		ExportDir:    "export",
		SamplesDir:   "Own_dat",
		LogEvery:     100,
		Seed:         1,
		Addr:         ":8080",
	}
}

// Load reads a YAML file on top of Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// ApplyArchitecture fills unset training fields from the architecture defaults.
func (c *Config) ApplyArchitecture() error {
	arch, err := model.Lookup(c.Architecture)
	if err != nil {
		return err
	}
	if c.Steps == 0 {
		c.Steps = arch.Steps
	}
	if c.BatchSize == 0 {
		c.BatchSize = arch.BatchSize
	}
	if c.KeepProb == 0 {
		c.KeepProb = arch.KeepProb
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Steps < 0:
		return fmt.Errorf("config: steps %d < 0", c.Steps)
	case c.BatchSize < 0:
		return fmt.Errorf("config: batch_size %d < 0", c.BatchSize)
	case c.KeepProb < 0 || c.KeepProb > 1:
		return fmt.Errorf("config: keep_prob %g out of range (0, 1]", c.KeepProb)
	case c.LogEvery < 0:
		return fmt.Errorf("config: log_every %d < 0", c.LogEvery)
	case c.Workers < 0:
		return fmt.Errorf("config: workers %d < 0", c.Workers)
	}
	return nil
}

// Flags binds command-line flags to a Config.
type Flags struct {
	fs   *flag.FlagSet
	vals Config
	keep float64
	file string
}

// NewFlags registers the named settings on fs. Only the listed keys get
// flags, so each subcommand exposes what it uses. Keys are the YAML names.
func NewFlags(fs *flag.FlagSet, keys ...string) *Flags {
	f := &Flags{fs: fs, vals: Default()}
	fs.StringVar(&f.file, "config", "", "YAML configuration file")
	for _, key := range keys {
		switch key {
		case "architecture":
			fs.StringVar(&f.vals.Architecture, "arch", f.vals.Architecture, fmt.Sprintf("network architecture %v", model.Names()))
		case "data_dir":
			fs.StringVar(&f.vals.DataDir, "data", f.vals.DataDir, "directory holding the MNIST IDX files")
		case "export_dir":
			fs.StringVar(&f.vals.ExportDir, "export", f.vals.ExportDir, "export bundle directory")
		case "samples_dir":
			fs.StringVar(&f.vals.SamplesDir, "samples", f.vals.SamplesDir, "directory holding the sample PNG images")
		case "db":
			fs.StringVar(&f.vals.DB, "db", f.vals.DB, "sqlite run registry (empty disables it)")
		case "steps":
			fs.IntVar(&f.vals.Steps, "steps", 0, "training steps (0 uses the architecture default)")
		case "batch_size":
			fs.IntVar(&f.vals.BatchSize, "batch", 0, "batch size (0 uses the architecture default)")
		case "keep_prob":
			fs.Float64Var(&f.keep, "keep", 0, "dropout keep probability (0 uses the architecture default)")
		case "log_every":
			fs.IntVar(&f.vals.LogEvery, "log-every", f.vals.LogEvery, "log training accuracy every N steps")
		case "seed":
			fs.Int64Var(&f.vals.Seed, "seed", f.vals.Seed, "random seed")
		case "workers":
			fs.IntVar(&f.vals.Workers, "workers", 0, "kernel worker goroutines (0 uses the physical core count)")
		case "synthetic":
			fs.BoolVar(&f.vals.Synthetic, "synthetic", false, "train on generated data instead of MNIST")
		case "no_save":
			fs.BoolVar(&f.vals.NoSave, "no-save", false, "skip exporting the trained model")
		case "addr":
			fs.StringVar(&f.vals.Addr, "addr", f.vals.Addr, "HTTP listen address")
		default:
			panic(fmt.Sprintf("config: unknown key %q", key))
		}
	}
	return f
}

// Resolve merges defaults, the -config file and the flags that were set
// explicitly. Call it after fs.Parse.
func (f *Flags) Resolve() (Config, error) {
	c := Default()
	if f.file != "" {
		var err error
		if c, err = Load(f.file); err != nil {
			return c, err
		}
	}

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "arch":
			c.Architecture = f.vals.Architecture
		case "data":
			c.DataDir = f.vals.DataDir
		case "export":
			c.ExportDir = f.vals.ExportDir
		case "samples":
			c.SamplesDir = f.vals.SamplesDir
		case "db":
			c.DB = f.vals.DB
		case "steps":
			c.Steps = f.vals.Steps
		case "batch":
			c.BatchSize = f.vals.BatchSize
		case "keep":
			c.KeepProb = float32(f.keep)
		case "log-every":
			c.LogEvery = f.vals.LogEvery
		case "seed":
			c.Seed = f.vals.Seed
		case "workers":
			c.Workers = f.vals.Workers
		case "synthetic":
			c.Synthetic = f.vals.Synthetic
		case "no-save":
			c.NoSave = f.vals.NoSave
		case "addr":
			c.Addr = f.vals.Addr
		}
	})
	return c, c.Validate()
}
