package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service"
	"logseqbridge/src/internal/service/logging"
)

var Version = domain.Version

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.Version {
		fmt.Printf("logseq-http-server v%s\n", Version)
		return
	}

	cfg := opts.config()
	logs := logging.Open(cfg.LogFile, cfg.Debug, os.Stderr)
	defer logs.Close()

	// Initialize Context
	ctx := &domain.Context{
		Config: cfg,
		Logger: logs.Logger,
	}

	// Create and Run Orchestrator
	orchestrator := service.CreateOrchestrator(ctx, logs)
	if err := orchestrator.Run(); err != nil {
		logging.Failure(logs.Logger).Error("server failed", "error", err)
		logs.Close()
		log.Fatalf("Error running orchestrator: %v", err)
	}
}
