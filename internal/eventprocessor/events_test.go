// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package eventprocessor

import (
	"errors"
	"testing"

	"github.com/mvidigal/ludex/internal/models"
)

func TestNewEvaluationEvent(t *testing.T) {
	event := NewEvaluationEvent(7, 42, models.EvaluationPositive)

	if event.EventID == "" {
		t.Error("EventID is empty, want generated uuid")
	}
	if event.UserID != 7 || event.ItemID != 42 {
		t.Errorf("ids = (%d, %d), want (7, 42)", event.UserID, event.ItemID)
	}
	if event.Evaluation != "positive" {
		t.Errorf("Evaluation = %q, want positive", event.Evaluation)
	}
	if event.OccurredAt == 0 {
		t.Error("OccurredAt is zero, want timestamp")
	}
	if err := event.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestEvaluationEventValidate(t *testing.T) {
	valid := EvaluationEvent{EventID: "e1", UserID: 1, ItemID: 2, Evaluation: "negative"}

	tests := []struct {
		name   string
		mutate func(*EvaluationEvent)
	}{
		{name: "zero user id", mutate: func(e *EvaluationEvent) { e.UserID = 0 }},
		{name: "negative user id", mutate: func(e *EvaluationEvent) { e.UserID = -3 }},
		{name: "zero item id", mutate: func(e *EvaluationEvent) { e.ItemID = 0 }},
		{name: "unknown evaluation", mutate: func(e *EvaluationEvent) { e.Evaluation = "meh" }},
		{name: "empty evaluation", mutate: func(e *EvaluationEvent) { e.Evaluation = "" }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	// The three-field shape external publishers send is acceptable; an
	// event id is only mandatory where our edge generates it.
	minimal := EvaluationEvent{UserID: 1, ItemID: 2, Evaluation: "positive"}
	if err := minimal.Validate(); err != nil {
		t.Errorf("minimal event rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid
			tt.mutate(&event)
			if err := event.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()
	event := NewEvaluationEvent(7, 42, models.EvaluationNegative)

	data, err := s.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := s.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if *got != *event {
		t.Errorf("round trip = %+v, want %+v", got, event)
	}
}

func TestSerializerMalformedPayloadIsPermanent(t *testing.T) {
	s := NewSerializer()

	_, err := s.Unmarshal([]byte("{not json"))
	if err == nil {
		t.Fatal("Unmarshal() = nil error, want permanent error")
	}
	if !IsPermanent(err) {
		t.Errorf("IsPermanent(%v) = false, want true", err)
	}
}

func TestSerializerNilEvent(t *testing.T) {
	if _, err := NewSerializer().Marshal(nil); err == nil {
		t.Error("Marshal(nil) = nil error, want error")
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	retryable := NewRetryableError("transient", cause)
	permanent := NewPermanentError("fatal", cause)

	if !IsRetryable(retryable) || IsPermanent(retryable) {
		t.Error("retryable error misclassified")
	}
	if !IsPermanent(permanent) || IsRetryable(permanent) {
		t.Error("permanent error misclassified")
	}

	// Classification survives wrapping.
	wrapped := NewRetryableError("outer", permanent)
	if !IsPermanent(wrapped) {
		t.Error("wrapped permanent error not detected")
	}
	if !errors.Is(permanent, cause) {
		t.Error("Unwrap() chain broken")
	}
	if permanent.Error() != "fatal: boom" {
		t.Errorf("Error() = %q, want %q", permanent.Error(), "fatal: boom")
	}
}
