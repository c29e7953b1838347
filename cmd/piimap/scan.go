package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/piimap/piimap"
	"github.com/piimap/piimap/application/service"
	domainscan "github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/log"
)

func scanCmd() *cobra.Command {
	var (
		envFile    string
		name       string
		targetType string
		locator    string
		scope      string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one datasource and print the findings",
		Long: `Register a datasource (or reuse an existing one by name), run a
scan synchronously, and print the per-field findings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(envFile, name, targetType, locator, scope)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&name, "name", "", "Datasource name")
	cmd.Flags().StringVar(&targetType, "target", "database", "Target type: database, object_store, document")
	cmd.Flags().StringVar(&locator, "locator", "", "Target locator (database URL or directory path)")
	cmd.Flags().StringVar(&scope, "scope", "", "Scan scope: full, metadata, data (default: datasource scope)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("locator")

	return cmd
}

func runScan(envFile, name, targetType, locator, scope string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	slogger := log.NewLogger(cfg).Slog()

	client, err := piimap.New(append(clientOptions(cfg), piimap.WithLogger(slogger))...)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close piimap client", slog.Any("error", err))
		}
	}()

	ctx := context.Background()

	var runScope domainscan.Scope
	if scope != "" {
		runScope, err = domainscan.ParseScope(scope)
		if err != nil {
			return err
		}
	}

	ds, created, err := client.DataSources.Add(ctx, &service.DataSourceAddParams{
		Name:       name,
		TargetType: targetType,
		Locator:    locator,
	})
	if err != nil {
		return fmt.Errorf("add datasource: %w", err)
	}
	if !created {
		slogger.Info("reusing existing datasource", slog.Int64("datasource_id", ds.ID()))
	}

	report, err := client.Scans.Run(ctx, ds.ID(), runScope)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	fmt.Printf("run %s finished: %s (%d findings across %d containers)\n",
		report.RunID(), report.Status(), report.FoundItems(), report.ContainersScanned())
	for _, failure := range report.Failures() {
		fmt.Printf("  failed: %s during %s: %s\n", failure.Container(), failure.Phase(), failure.Message())
	}

	results, err := client.DataSources.Results(ctx, ds.ID())
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTAINER\tFIELD\tENTITY\tCOUNT\tCONFIDENCE\tTIER\tSAMPLES")
	for _, result := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\t%v\n",
			result.Container(), result.Field(), result.EntityType(),
			result.Count(), result.AvgConfidence(), result.Tier(), result.Samples())
	}
	return w.Flush()
}
