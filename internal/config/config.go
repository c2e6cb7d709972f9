// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package config loads and validates the Ludex configuration.
//
// Configuration is layered via Koanf v2, highest priority last:
//
//  1. Built-in defaults (structs provider)
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables with the LUDEX_ prefix
//     (LUDEX_DATABASE_PATH -> database.path)
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the Ludex server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Consumer  ConsumerConfig  `koanf:"consumer"`
	Refresher RefresherConfig `koanf:"refresher"`
	DLQ       DLQConfig       `koanf:"dlq"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Rate limiting for the ingestion endpoint (token bucket).
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
	RateLimitBurst     int     `koanf:"rate_limit_burst"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file; ":memory:" opens an in-memory database.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads of 0 means use runtime.NumCPU().
	Threads int `koanf:"threads"`
	// SeedMockData loads a small demo catalog on first start.
	SeedMockData bool `koanf:"seed_mock_data"`
}

// NATSConfig holds JetStream queue settings.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	StreamName string `koanf:"stream_name"`
	Subject    string `koanf:"subject"`

	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	MaxDeliver       int           `koanf:"max_deliver"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
}

// ConsumerConfig tunes the feedback event consumer.
type ConsumerConfig struct {
	// Workers bounds how many messages are processed concurrently.
	Workers int `koanf:"workers"`

	// StoreTimeout bounds each ledger transaction; on expiry the event
	// is nacked for redelivery.
	StoreTimeout time.Duration `koanf:"store_timeout"`

	// Circuit breaker over the durable store.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// RefresherConfig tunes similarity index rebuilds.
type RefresherConfig struct {
	// Debounce coalesces a burst of ledger mutations into one rebuild.
	Debounce time.Duration `koanf:"debounce"`
	// RebuildInterval forces a periodic rebuild even without triggers.
	RebuildInterval time.Duration `koanf:"rebuild_interval"`
	// BuildTimeout bounds a single rebuild.
	BuildTimeout time.Duration `koanf:"build_timeout"`
}

// DLQConfig holds dead-letter store settings.
type DLQConfig struct {
	// Dir is the BadgerDB directory; empty uses an in-memory store.
	Dir           string        `koanf:"dir"`
	RetentionTime time.Duration `koanf:"retention_time"`
	// JanitorInterval is how often expired entries are purged.
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8433,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			RateLimitPerSecond: 50,
			RateLimitBurst:     100,
		},
		Database: DatabaseConfig{
			Path:      "/data/ludex.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			StreamName:       "EVALUATIONS",
			Subject:          "evaluations.game",
			DurableName:      "ledger-consumer",
			QueueGroup:       "ledger",
			SubscribersCount: 4,
			MaxDeliver:       5,
			AckWaitTimeout:   30 * time.Second,
			CloseTimeout:     30 * time.Second,
			MaxReconnects:    60,
			ReconnectWait:    2 * time.Second,
		},
		Consumer: ConsumerConfig{
			Workers:                 4,
			StoreTimeout:            5 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Refresher: RefresherConfig{
			Debounce:        2 * time.Second,
			RebuildInterval: 15 * time.Minute,
			BuildTimeout:    2 * time.Minute,
		},
		DLQ: DLQConfig{
			Dir:             "/data/ludex-dlq",
			RetentionTime:   7 * 24 * time.Hour,
			JanitorInterval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.NATS.URL == "" {
		return errors.New("nats.url must not be empty")
	}
	if c.NATS.StreamName == "" || c.NATS.Subject == "" {
		return errors.New("nats.stream_name and nats.subject must not be empty")
	}
	if c.NATS.SubscribersCount <= 0 {
		return fmt.Errorf("nats.subscribers_count must be positive, got %d", c.NATS.SubscribersCount)
	}
	if c.NATS.MaxDeliver <= 0 {
		return fmt.Errorf("nats.max_deliver must be positive, got %d", c.NATS.MaxDeliver)
	}
	if c.Consumer.Workers <= 0 {
		return fmt.Errorf("consumer.workers must be positive, got %d", c.Consumer.Workers)
	}
	if c.Consumer.StoreTimeout <= 0 {
		return errors.New("consumer.store_timeout must be positive")
	}
	if c.Refresher.Debounce <= 0 {
		return errors.New("refresher.debounce must be positive")
	}
	if c.Refresher.BuildTimeout <= 0 {
		return errors.New("refresher.build_timeout must be positive")
	}
	return nil
}
