// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package eventprocessor

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer converts evaluation events to and from their wire bytes.
type Serializer struct{}

// NewSerializer returns a JSON serializer for evaluation events.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal encodes an event.
func (s *Serializer) Marshal(event *EvaluationEvent) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}
	return data, nil
}

// Unmarshal decodes wire bytes into an event. A decode failure means the
// payload is malformed, which callers treat as permanent.
func (s *Serializer) Unmarshal(data []byte) (*EvaluationEvent, error) {
	var event EvaluationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, NewPermanentError("malformed event payload", err)
	}
	return &event, nil
}
