// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package services

import (
	"context"
	"errors"

	"github.com/thejerf/suture/v4"
)

// RunnerService adapts a context-aware run loop (consumer, refresher,
// janitor) to suture.Service.
type RunnerService struct {
	name string
	run  func(ctx context.Context) error
}

// NewRunnerService wraps a run function under the given service name.
func NewRunnerService(name string, run func(ctx context.Context) error) *RunnerService {
	return &RunnerService{name: name, run: run}
}

// Serve implements suture.Service. Context cancellation is the normal
// stop signal and is reported as a clean termination.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s *RunnerService) String() string {
	return s.name
}
