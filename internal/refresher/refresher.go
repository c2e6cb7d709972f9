// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package refresher owns the live similarity snapshot.
//
// The index is immutable once built; readers always see either the
// previous complete snapshot or the next one, never a partial build.
// Rebuilds are debounced so a burst of catalog mutations costs one
// build, and a periodic ticker guards against missed triggers.
package refresher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/logging"
	"github.com/mvidigal/ludex/internal/metrics"
	"github.com/mvidigal/ludex/internal/similarity"
)

// CatalogSource supplies the documents the index is built from.
type CatalogSource interface {
	CatalogDocuments(ctx context.Context) ([]similarity.Document, error)
}

// Refresher rebuilds the similarity index and swaps it atomically.
type Refresher struct {
	source  CatalogSource
	cfg     *config.RefresherConfig
	current atomic.Pointer[similarity.Index]

	// trigger carries at most one pending rebuild request; further
	// triggers during the debounce window coalesce into it.
	trigger chan struct{}
}

// New creates a refresher holding an empty snapshot until the first
// rebuild completes.
func New(source CatalogSource, cfg *config.RefresherConfig) *Refresher {
	r := &Refresher{
		source:  source,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}

	empty, _ := similarity.Build(context.Background(), nil)
	r.current.Store(empty)
	return r
}

// Index returns the current snapshot. Never nil.
func (r *Refresher) Index() *similarity.Index {
	return r.current.Load()
}

// Trigger requests a debounced rebuild. Non-blocking; triggers landing
// while one is already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Rebuild builds a fresh index from the catalog and swaps it in. On
// failure the previous snapshot stays live.
func (r *Refresher) Rebuild(ctx context.Context) error {
	buildCtx, cancel := context.WithTimeout(ctx, r.cfg.BuildTimeout)
	defer cancel()

	start := time.Now()

	docs, err := r.source.CatalogDocuments(buildCtx)
	if err != nil {
		metrics.RecordRebuild("error", 0, 0)
		return fmt.Errorf("load catalog documents: %w", err)
	}

	index, err := similarity.Build(buildCtx, docs)
	if err != nil {
		result := "error"
		if buildCtx.Err() != nil {
			result = "cancelled"
		}
		metrics.RecordRebuild(result, 0, 0)
		return fmt.Errorf("build similarity index: %w", err)
	}

	r.current.Store(index)

	elapsed := time.Since(start)
	metrics.RecordRebuild("ok", elapsed, index.Size())

	logging.Info().
		Int("games", index.Size()).
		Dur("elapsed", elapsed).
		Msg("similarity index rebuilt")
	return nil
}

// Run serves rebuild requests until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-r.trigger:
			if err := r.debounce(ctx); err != nil {
				return err
			}
			if err := r.Rebuild(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("triggered index rebuild failed")
			}
			ticker.Reset(r.cfg.RebuildInterval)

		case <-ticker.C:
			if err := r.Rebuild(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("periodic index rebuild failed")
			}
		}
	}
}

// debounce waits out the quiet window, absorbing triggers that arrive
// meanwhile so a mutation burst rebuilds once.
func (r *Refresher) debounce(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.Debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.trigger:
			// Absorbed; keep waiting for the window to close.
		case <-timer.C:
			return nil
		}
	}
}
