// Command streamlookup enriches a Kinesis stream with a slowly-changing
// reference table and writes partitioned CSV to S3, one micro-batch per
// window.
//
// Usage:
//
//	streamlookup --job-name lookup --tgt-s3-bkt my-bucket run
//	streamlookup --tgt-s3-bkt my-bucket mark-changed
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"StreamLookup/internal/app"
	"StreamLookup/internal/config"
	"StreamLookup/internal/logging"
)

var version = "dev"

func main() {
	cliApp := &cli.App{
		Name:    "streamlookup",
		Usage:   "Streaming lookup join with refreshable reference data",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to YAML configuration",
				EnvVars: []string{"STREAM_LOOKUP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "job-name",
				Usage:   "Job name, used in the checkpoint path",
				EnvVars: []string{"JOB_NAME"},
			},
			&cli.StringFlag{
				Name:    "tgt-s3-bkt",
				Usage:   "Bucket holding the output and the change marker",
				EnvVars: []string{"TGT_S3_BKT"},
			},
			&cli.StringFlag{
				Name:    "temp-dir",
				Usage:   "Checkpoint root (local path or s3:// uri)",
				EnvVars: []string{"TEMP_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			markChangedCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process the stream until interrupted or a batch fails",
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigs := make(chan os.Signal, 2)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Close(); err != nil {
					logger.Warn("close failed", "error", err)
				}
			}()

			go handleSignals(ctx, sigs, application.Stop, cancel, logger)
			return application.Run(ctx)
		},
	}
}

func markChangedCommand() *cli.Command {
	return &cli.Command{
		Name:  "mark-changed",
		Usage: "Raise the change marker so the next batch reloads reference data",
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			ctx := c.Context
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.MarkReferenceChanged(ctx, cfg); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "marker raised: s3://%s/%s\n", cfg.Output.Bucket, cfg.Output.ChangeKey)
			return nil
		},
	}
}

// handleSignals drains on the first signal: the window in flight finishes and
// no new one starts. A second signal cancels ctx and aborts the window.
func handleSignals(ctx context.Context, sigs <-chan os.Signal, drain func(context.Context) error, cancel context.CancelFunc, logger *slog.Logger) {
	select {
	case <-ctx.Done():
		return
	case sig := <-sigs:
		logger.Info("draining after current window", "signal", sig.String())
		if err := drain(ctx); err != nil {
			logger.Warn("drain failed", "error", err)
		}
	}

	select {
	case <-ctx.Done():
	case sig := <-sigs:
		logger.Warn("aborting current window", "signal", sig.String())
		cancel()
	}
}

// loadConfig layers defaults, the YAML file, environment and flags.
func loadConfig(c *cli.Context) config.Config {
	cfg := config.Load()
	if c.IsSet("config") {
		cfg = config.LoadFrom(c.String("config"))
	}

	if c.IsSet("job-name") {
		cfg.Job.Name = c.String("job-name")
	}
	if c.IsSet("tgt-s3-bkt") {
		cfg.Output.Bucket = c.String("tgt-s3-bkt")
	}
	if c.IsSet("temp-dir") {
		cfg.Job.TempDir = c.String("temp-dir")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	return cfg
}
