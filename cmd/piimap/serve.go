package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/piimap/piimap"
	"github.com/piimap/piimap/internal/log"
)

func serveCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan worker",
		Long: `Run the scan worker until interrupted.

The worker processes queued scans, rule reloads, and lineage refreshes,
and enqueues periodic rescans for datasources whose schedule is due.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables

Environment variables:
  DATA_DIR                     Data directory (default: .piimap)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/piimap.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  SEED_RULES_PATH              YAML rule set to seed instead of the built-in one

  SCAN_SAMPLE_BUDGET           Values sampled per container (default: 100)
  SCAN_BATCH_SIZE              Records per stream batch (default: 100)
  SCAN_CONTAINER_CONCURRENCY   Containers scanned in parallel (default: 4)
  SCAN_SAMPLE_VALUE_LIMIT      Masked samples kept per finding (default: 5)

  PERIODIC_RESCAN_ENABLED      Enable periodic rescans (default: true)
  PERIODIC_RESCAN_INTERVAL_SECONDS  Rescan interval (default: 86400)

  NER_ENABLED                  Enable the local NER model (default: true)
  NER_MODEL_DIR                NER model directory (default: {data_dir}/models)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runServe(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	opts := append(clientOptions(cfg), piimap.WithLogger(slogger))

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting piimap", attrs...)

	client, err := piimap.New(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close piimap client", slog.Any("error", err))
		}
	}()

	// Block until interrupted; the worker and periodic rescan run in the
	// background inside the client.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slogger.Info("shutting down")
	return nil
}
