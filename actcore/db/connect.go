package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// MemoryDSN opens a private in-memory database; handy for tests and dry runs.
const MemoryDSN = ":memory:"

// LibSQLEmbeddedConfig holds configuration for embedded libsql connections.
type LibSQLEmbeddedConfig struct {
	DatabasePath string
	Logger       zerolog.Logger
}

func ConnectToDB(path string, logger zerolog.Logger) (*sql.DB, error) {
	return ConnectToDBWithConfig(&LibSQLEmbeddedConfig{DatabasePath: path, Logger: logger})
}

func ConnectToDBWithConfig(config *LibSQLEmbeddedConfig) (*sql.DB, error) {
	log := config.Logger
	dsn := "file::memory:?cache=shared"

	if config.DatabasePath != MemoryDSN {
		dir := filepath.Dir(config.DatabasePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory %s: %w", dir, err)
		}
		if _, err := os.Stat(config.DatabasePath); os.IsNotExist(err) {
			log.Info().Str("path", config.DatabasePath).Msg("database not found, creating a new one")
			file, err := os.Create(config.DatabasePath)
			if err != nil {
				return nil, fmt.Errorf("could not create db at path %s: %w", config.DatabasePath, err)
			}
			file.Close()
		}
		dsn = "file:" + config.DatabasePath
	}

	log.Debug().Str("dsn", dsn).Msg("connecting to embedded libsql")
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}
	if config.DatabasePath == MemoryDSN {
		// the in-memory database lives as long as its single connection
		db.SetMaxOpenConns(1)
	}

	if err := verifyConnection(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func verifyConnection(db *sql.DB) error {
	var result int
	if err := db.QueryRowContext(context.Background(), "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("basic connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("basic connectivity test failed: unexpected result %d", result)
	}
	return nil
}
