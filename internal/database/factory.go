package database

import (
	"fmt"
	"os"
	"path/filepath"

	"courier/internal/config"
)

// NewDatabaseFromConfig creates a DB based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return Open(filepath.Join(cfg.DataDir, "courier.db"))
	case "memory":
		return Open(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
