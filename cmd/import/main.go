// Command import runs the one-shot data migration from a legacy store
// into the configured relational backend. It refuses to run against a
// target that already holds transactions; delete the target data first
// if a fresh start is wanted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"dayledger/internal/config"
	"dayledger/internal/logger"
	"dayledger/internal/migration"
	"dayledger/internal/storage"
	"dayledger/internal/storage/filestore"
	"dayledger/internal/storage/recordstore"
	"dayledger/internal/storage/sqlstore"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Import error: %v", err)
	}
}

func run() error {
	source := flag.String("source", "", "path to the legacy flat file or a CSV snapshot")
	owner := flag.Uint("owner", 0, "user id the imported transactions belong to")
	flag.Parse()

	if *source == "" || *owner == 0 {
		return fmt.Errorf("usage: import -source <file> -owner <id>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	src, err := openSource(*source, uint(*owner))
	if err != nil {
		return err
	}

	dst, err := openTarget(cfg)
	if err != nil {
		return err
	}
	defer dst.Close()

	engine := migration.NewEngine(src, dst, uint(*owner), logger.Get())
	report, err := engine.Run(context.Background())
	if err != nil {
		return err
	}

	logger.Get().Infow("import finished",
		"state", report.State,
		"migrated", report.Migrated,
		"failed", report.Failed,
	)
	return nil
}

func openSource(path string, owner uint) (migration.RecordSource, error) {
	if strings.HasSuffix(path, ".csv") {
		return migration.NewSnapshotSource(path), nil
	}
	return filestore.Open(path, owner)
}

// openTarget constructs the configured relational backend. The flat file
// is a migration source, never a target.
func openTarget(cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLiteLegacy:
		return recordstore.Open(cfg.SQLitePath, cfg.LegacyOwnerID, cfg.StorageTimeout)
	case config.DriverSQLite:
		store, err := sqlstore.OpenSQLite(cfg.SQLitePath, cfg.StorageTimeout)
		if err != nil {
			return nil, err
		}
		if err := store.AutoMigrate(); err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		if err := sqlstore.RunMigrations(cfg.MigrateURL()); err != nil {
			return nil, err
		}
		return sqlstore.OpenPostgres(cfg.DSN(), cfg.StorageTimeout)
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER %q cannot be an import target", cfg.StorageDriver)
	}
}
