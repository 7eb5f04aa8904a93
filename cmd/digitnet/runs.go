package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brice-v/digitnet/internal/config"
	"github.com/brice-v/digitnet/internal/parallel"
	"github.com/brice-v/digitnet/internal/registry"
)

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	flags := config.NewFlags(fs, "db")
	limit := fs.Int("n", 20, "number of runs to show (0 shows all)")
	fs.Parse(args)

	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}
	if cfg.DB == "" {
		return errors.New("no registry given, use -db")
	}

	reg, err := registry.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer reg.Close()

	runs, err := reg.List(*limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARCH\tSTEPS\tBATCH\tACCURACY\tSTARTED\tDURATION\tEXPORT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.4f\t%s\t%v\t%s\n",
			r.ID, r.Architecture, r.Steps, r.BatchSize, r.Accuracy,
			r.StartedAt.Format(time.RFC3339), r.Duration, r.ExportDir)
	}
	return w.Flush()
}

func runVersion() {
	fmt.Printf("digitnet %s\n", version)
	fmt.Println(parallel.CPUSummary())
	cfg := parallel.Default()
	fmt.Printf("kernel workers: %d\n", cfg.NumWorkers)
}
