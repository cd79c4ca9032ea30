package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logseqbridge/src/internal/api"
	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/cli"
	"logseqbridge/src/internal/service/journal"
	"logseqbridge/src/internal/service/logging"
)

const shutdownTimeout = 5 * time.Second

type Orchestrator struct {
	ctx *domain.Context
	log *logging.Log
	out io.Writer
}

func CreateOrchestrator(ctx *domain.Context, log *logging.Log) *Orchestrator {
	return &Orchestrator{
		ctx: ctx,
		log: log,
		out: os.Stdout,
	}
}

// Run serves until SIGINT or SIGTERM.
func (o *Orchestrator) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return o.RunContext(ctx)
}

// RunContext serves until ctx is done, then shuts the listener down.
func (o *Orchestrator) RunContext(ctx context.Context) error {
	cfg := o.ctx.Config
	lifecycle := logging.Lifecycle(o.ctx.Logger)

	if cfg.Debug {
		printDebugWarning(o.out, o.log.Path())
		select {
		case <-time.After(cfg.DebugPause):
		case <-ctx.Done():
			return nil
		}
	}

	if err := o.log.Watch(ctx); err != nil {
		logging.Failure(o.ctx.Logger).Error("log file watcher disabled", "error", err)
	}

	executor := cli.New(cfg, o.ctx.Logger)
	client := journal.New(cfg, o.ctx.Logger)
	server := api.Create(o.ctx, executor, client)

	l, err := net.Listen("tcp", server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr(), err)
	}

	printBanner(o.out, cfg, o.log.Path(), l.Addr())
	mode := "Privacy Mode"
	if cfg.Debug {
		mode = "DEBUG MODE"
	}
	lifecycle.Info(fmt.Sprintf("Server v%s started on %s:%d (%s)", cfg.Version, cfg.Host, cfg.Port, mode))

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(l)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	fmt.Fprint(o.out, "\n\nShutting down server...\n")
	lifecycle.Info("Server stopped by user")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return <-served
}
