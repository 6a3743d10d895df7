// Command layerlapse turns a recorded 3D print session into a one-frame-per-layer
// timelapse.
//
// It parses flags, validates configuration, and either runs system
// diagnostics (--check) or the post-processing pipeline on the session
// directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/backmassage/layerlapse/internal/check"
	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/display"
	"github.com/backmassage/layerlapse/internal/logging"
	"github.com/backmassage/layerlapse/internal/pipeline"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, os.Args[1:], version); err != nil {
		fmt.Fprintf(os.Stderr, "layerlapse: %v\n", err)
		return pipeline.ExitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "layerlapse: %v\n", err)
		return pipeline.ExitFailure
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "layerlapse: %v\n", err)
		return pipeline.ExitFailure
	}
	defer log.Close()

	// Phase 2: Logger available.
	display.PrintBanner(os.Stdout)

	if cfg.CheckOnly {
		if !check.RunCheck(&cfg, log) {
			return pipeline.ExitFailure
		}
		return pipeline.ExitOK
	}

	log.Info("=== layerlapse v%s (%s) ===", version, commit)
	log.Info("Session: %s", cfg.SessionDir)
	if cfg.DryRun {
		log.Warn("DRY RUN: no frames or video will be written")
	} else if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return pipeline.ExitFailure
	}
	log.Info("")

	// Phase 3: cancel on SIGINT/SIGTERM so an in-flight ffmpeg is killed
	// and its partial output discarded.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, stopping after the current ffmpeg call…")
		cancel()
	}()

	// Phase 4: log → layers → frames → recovery → assembly.
	_, err = pipeline.Run(ctx, &cfg, log, pipeline.DefaultDeps(&cfg))
	return pipeline.ExitCode(err)
}
