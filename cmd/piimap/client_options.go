package main

import (
	"strings"

	"github.com/piimap/piimap"
	"github.com/piimap/piimap/internal/config"
)

// clientOptions returns the piimap.Option slice derived from the shared
// parts of AppConfig: database storage, scan tuning, periodic rescan, and
// the NER model. Callers append entrypoint-specific options before passing
// the full slice to piimap.New.
func clientOptions(cfg config.AppConfig) []piimap.Option {
	opts := []piimap.Option{
		piimap.WithDataDir(cfg.DataDir()),
		piimap.WithScanConfig(cfg.Scan()),
		piimap.WithPeriodicRescanConfig(cfg.PeriodicRescan()),
	}

	opts = append(opts, storageOptions(cfg)...)

	if path := cfg.SeedRulesPath(); path != "" {
		opts = append(opts, piimap.WithSeedRulesPath(path))
	}

	ner := cfg.NER()
	if !ner.Enabled() {
		opts = append(opts, piimap.WithoutNER())
	} else if ner.ModelDir() != "" {
		opts = append(opts, piimap.WithModelDir(ner.ModelDir()))
	}

	return opts
}

// storageOptions returns the piimap.Option for the configured database backend.
func storageOptions(cfg config.AppConfig) []piimap.Option {
	dbURL := cfg.DBURL()

	if dbURL != "" && !isSQLite(dbURL) {
		return []piimap.Option{piimap.WithPostgres(dbURL)}
	}

	dbPath := cfg.DataDir() + "/piimap.db"
	if dbURL != "" && isSQLite(dbURL) {
		dbPath = strings.TrimPrefix(dbURL, "sqlite:///")
		if dbPath == dbURL {
			dbPath = strings.TrimPrefix(dbURL, "sqlite:")
		}
	}

	return []piimap.Option{piimap.WithSQLite(dbPath)}
}

// isSQLite checks if the database URL is for SQLite.
func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}
