package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/brice-v/digitnet/internal/config"
	"github.com/brice-v/digitnet/internal/registry"
	"github.com/brice-v/digitnet/internal/server"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags := config.NewFlags(fs, "export_dir", "db", "addr")
	fs.Parse(args)

	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}

	opts := server.Options{}
	if cfg.DB != "" {
		reg, err := registry.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer reg.Close()
		opts.Registry = reg
	}

	s, err := server.New(cfg.ExportDir, opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	log.Printf("[server] listening on %s", cfg.Addr)
	return srv.ListenAndServe()
}
