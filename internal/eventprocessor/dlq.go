// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/logging"
	"github.com/mvidigal/ludex/internal/metrics"
)

const dlqKeyPrefix = "dlq:"

// ErrDLQEntryNotFound is returned when an entry is absent.
var ErrDLQEntryNotFound = errors.New("dead-letter entry not found")

// DLQEntry records one event that permanently failed processing, kept
// for operator inspection rather than automatic replay.
type DLQEntry struct {
	EventID  string `json:"event_id"`
	Payload  []byte `json:"payload"`
	Reason   string `json:"reason"`
	FailedAt int64  `json:"failed_at"`
}

// DLQStore is a BadgerDB-backed dead-letter store. Entries survive
// restarts when a directory is configured; an empty directory runs the
// store in memory for tests and dev.
type DLQStore struct {
	db  *badger.DB
	cfg *config.DLQConfig
}

// NewDLQStore opens the dead-letter store.
func NewDLQStore(cfg *config.DLQConfig) (*DLQStore, error) {
	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter store: %w", err)
	}

	s := &DLQStore{db: db, cfg: cfg}

	if n, err := s.Count(context.Background()); err == nil {
		metrics.DLQEntries.Set(float64(n))
	}
	return s, nil
}

// Add records a permanently failed event.
func (s *DLQStore) Add(ctx context.Context, entry *DLQEntry) error {
	if entry == nil || entry.EventID == "" {
		return errors.New("entry with event id required")
	}
	if entry.FailedAt == 0 {
		entry.FailedAt = time.Now().UnixMilli()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dlqKeyPrefix+entry.EventID), data)
	})
	if err != nil {
		return fmt.Errorf("save dead-letter entry %s: %w", entry.EventID, err)
	}

	metrics.DLQAdded.Inc()
	metrics.DLQEntries.Inc()

	logging.Warn().
		Str("event_id", entry.EventID).
		Str("reason", entry.Reason).
		Msg("event routed to dead-letter store")
	return nil
}

// Get retrieves an entry by event id.
func (s *DLQStore) Get(ctx context.Context, eventID string) (*DLQEntry, error) {
	var entry DLQEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dlqKeyPrefix + eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDLQEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get dead-letter entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns all entries, oldest first.
func (s *DLQStore) List(ctx context.Context) ([]*DLQEntry, error) {
	entries := make([]*DLQEntry, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(dlqKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry DLQEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list dead-letter entries: %w", err)
	}
	return entries, nil
}

// Delete removes an entry.
func (s *DLQStore) Delete(ctx context.Context, eventID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(dlqKeyPrefix + eventID))
	})
	if err != nil {
		return fmt.Errorf("delete dead-letter entry %s: %w", eventID, err)
	}
	metrics.DLQEntries.Dec()
	return nil
}

// Count returns the number of stored entries.
func (s *DLQStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(dlqKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count dead-letter entries: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes entries older than the retention window and
// returns how many were removed.
func (s *DLQStore) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.RetentionTime).UnixMilli()

	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, entry := range entries {
		if entry.FailedAt >= cutoff {
			continue
		}
		if err := s.Delete(ctx, entry.EventID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// RunJanitor purges expired entries on the configured interval until
// the context is cancelled.
func (s *DLQStore) RunJanitor(ctx context.Context) error {
	interval := s.cfg.JanitorInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			purged, err := s.PurgeExpired(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("dead-letter purge failed")
				continue
			}
			if purged > 0 {
				logging.Info().Int("purged", purged).Msg("dead-letter entries purged")
			}
		}
	}
}

// Close releases the underlying store.
func (s *DLQStore) Close() error {
	return s.db.Close()
}
