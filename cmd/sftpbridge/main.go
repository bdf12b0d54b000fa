package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/karousn/sftpbridge/internal/app"
	"github.com/karousn/sftpbridge/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sftpbridge", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	var once bool
	fs.BoolVar(&once, "once", false, "Run the configured jobs once and exit, ignoring agent.schedule")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Agent.LogLevel, cfg.Agent.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	stack, err := bootstrapRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer stack.Shutdown(context.Background(), log)

	schedule := strings.TrimSpace(cfg.Agent.Schedule)
	if once || schedule == "" {
		return stack.Runner.RunAll(ctx)
	}

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	if _, err := scheduler.AddFunc(schedule, func() {
		if err := stack.Runner.RunAll(ctx); err != nil {
			log.Warn("scheduled transfer run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}

	scheduler.Start()
	log.Info("agent scheduled",
		zap.String("spec", schedule),
		zap.Int("jobs", len(cfg.Jobs)))

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(shutdownTimeout):
		log.Warn("timed out waiting for running jobs")
	}

	log.Info("agent stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
