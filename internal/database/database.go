// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package database provides the DuckDB-backed durable store for Ludex.
//
// Two logical tables are owned here: games (the catalog with its
// aggregate feedback counters) and game_ratings (the per-(user,game)
// rating ledger). Every ledger transition mutates both tables inside one
// transaction, which is what keeps the counters consistent with the
// ledger by construction rather than by reconciliation.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Per-(user,game) write locks serializing ledger transitions for the
	// same key. Distinct keys proceed fully in parallel.
	keyLocks sync.Map
}

// New opens the database, applies connection tuning, and initializes the
// schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" && cfg.Path != "" {
		// Ensure the parent directory exists for file-backed databases.
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB is an in-process database; a single connection avoids
	// write-write conflicts between pooled connections.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if cfg.SeedMockData {
		if err := db.seedMockData(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("failed to seed mock data")
		}
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Msg("database initialized")

	return db, nil
}

// initSchema creates the games and game_ratings tables if missing.
func (db *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY,
			name VARCHAR NOT NULL,
			release_date VARCHAR,
			required_age INTEGER,
			price DOUBLE,
			header_image VARCHAR,
			positive INTEGER NOT NULL DEFAULT 0,
			negative INTEGER NOT NULL DEFAULT 0,
			recommendations INTEGER,
			genres VARCHAR,
			categories VARCHAR,
			description VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS game_ratings (
			user_id INTEGER NOT NULL,
			game_id INTEGER NOT NULL,
			evaluation VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, game_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_ratings_game ON game_ratings (game_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// lockKey serializes ledger transitions for one (user, game) pair.
// Returns the unlock function.
func (db *DB) lockKey(userID, gameID int) func() {
	key := fmt.Sprintf("%d:%d", userID, gameID)
	muIface, _ := db.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
