package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and locates the journal backend
type Config struct {
	Backend string `yaml:"backend"`
	// Path is the SQLite file; DSN the PostgreSQL connection string
	Path string `yaml:"path"`
	DSN  string `yaml:"-"`
}

// Open creates the configured journal
func Open(ctx context.Context, cfg Config) (Journal, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite, "":
		if cfg.Path == "" {
			cfg.Path = filepath.Join("data", "journal.db")
		}
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
		return NewSQLite(cfg.Path)
	case BackendPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres journal requires a DSN")
		}
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
