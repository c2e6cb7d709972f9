// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package eventprocessor moves feedback events from the HTTP edge through
// NATS JetStream into the rating ledger.
//
// Delivery is at-least-once; the ledger itself is idempotent, so the
// pipeline as a whole is exactly-once in effect. Events that can never
// be applied (malformed payloads, unknown games) are dropped to the
// dead-letter store instead of being redelivered forever.
package eventprocessor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvidigal/ludex/internal/models"
)

// EvaluationEvent is the wire format of one feedback event.
type EvaluationEvent struct {
	EventID    string `json:"event_id"`
	UserID     int    `json:"user_id"`
	ItemID     int    `json:"item_id"`
	Evaluation string `json:"evaluation"`
	OccurredAt int64  `json:"occurred_at"`
}

// NewEvaluationEvent builds an event with a fresh id and timestamp.
func NewEvaluationEvent(userID, itemID int, eval models.Evaluation) *EvaluationEvent {
	return &EvaluationEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		ItemID:     itemID,
		Evaluation: string(eval),
		OccurredAt: time.Now().UnixMilli(),
	}
}

// Validate checks the event carries applicable data. A validation
// failure is permanent: redelivering the same bytes can never succeed.
//
// event_id is not required here. External publishers may write the
// minimal {user_id, item_id, evaluation} shape straight to the stream;
// our own edge always stamps an id because it doubles as the broker
// deduplication key.
func (e *EvaluationEvent) Validate() error {
	if e.UserID <= 0 {
		return fmt.Errorf("user_id must be positive, got %d", e.UserID)
	}
	if e.ItemID <= 0 {
		return fmt.Errorf("item_id must be positive, got %d", e.ItemID)
	}
	if _, err := models.ParseEvaluation(e.Evaluation); err != nil {
		return err
	}
	return nil
}
