// Package main provides the digitnet CLI.
//
// Usage:
//
//	digitnet train   -arch cnn -data MNIST_data -export export -samples Own_dat
//	digitnet predict -export export -samples Own_dat
//	digitnet serve   -export export -addr :8080
//	digitnet runs    -db runs.sqlite3
//	digitnet version
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "v0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "digitnet %s - MNIST digit classifiers\n\n", version)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  train      Train, evaluate and export a network")
	fmt.Fprintln(os.Stderr, "  predict    Classify the sample images with an exported network")
	fmt.Fprintln(os.Stderr, "  serve      Serve predictions over HTTP")
	fmt.Fprintln(os.Stderr, "  runs       List recorded training runs")
	fmt.Fprintln(os.Stderr, "  version    Show version and CPU features")
	fmt.Fprintln(os.Stderr, "\nRun 'digitnet <command> -h' for the flags of a command.")
}

func main() {
	log.SetFlags(log.LstdFlags)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "train":
		err = runTrain(args)
	case "predict":
		err = runPredict(args)
	case "serve":
		err = runServe(args)
	case "runs":
		err = runRuns(args)
	case "version":
		runVersion()
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
