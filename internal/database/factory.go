package database

import (
	"fmt"
	"os"
	"path/filepath"

	"smbsync/internal/backup"
	"smbsync/internal/config"
)

// NewLedgerFromConfig creates a Ledger implementation based on the database
// config type. File-backed ledgers are migrated to the latest schema on open.
func NewLedgerFromConfig(cfg config.DatabaseConfig, clock backup.Clock) (backup.Ledger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		ledger, err := NewSQLiteLedger(filepath.Join(cfg.DataDir, "ledger.db"), clock)
		if err != nil {
			return nil, err
		}
		if err := ledger.MigrateUp(); err != nil {
			ledger.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return ledger, nil
	case "memory":
		ledger, err := NewSQLiteLedger(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := ledger.MigrateUp(); err != nil {
			ledger.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return ledger, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
