package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/lettse/littlemovers/internal/config"
	"github.com/lettse/littlemovers/internal/log"
	"github.com/lettse/littlemovers/internal/pipeline"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the batch configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("littlemovers %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug || cfg.Logging.Debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	batch := pipeline.New(cfg, log.GetSugaredLogger())
	events := batch.Start(context.Background())

	// The worker emits ordered progress events; consuming them here
	// keeps the batch goroutine from ever blocking on a full channel.
	var failed bool
	for ev := range events {
		fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Status)
		if ev.Err != nil {
			failed = true
		}
	}

	if failed {
		log.Errorf("Batch finished with errors")
		os.Exit(1)
	}
	log.Info("Batch complete")
}
