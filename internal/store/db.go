package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MiX1964/wforecast/internal/config"
)

// Open connects to the configured SQL database and validates connectivity.
func Open(cfg *config.AppConfig) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func buildDSN(cfg *config.AppConfig) (string, error) {
	if cfg.DBDSN != "" {
		return cfg.DBDSN, nil
	}
	if cfg.DBDriver != "sqlite3" {
		return "", fmt.Errorf("DB_DSN is required for driver %q", cfg.DBDriver)
	}

	path := cfg.SQLitePath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// busy_timeout lets concurrent writers wait instead of failing with "database is locked".
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
