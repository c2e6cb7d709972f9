// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package models

import (
	"fmt"
	"time"
)

// Evaluation is a user's current verdict on a game.
type Evaluation string

const (
	// EvaluationPositive marks a thumbs-up.
	EvaluationPositive Evaluation = "positive"
	// EvaluationNegative marks a thumbs-down.
	EvaluationNegative Evaluation = "negative"
)

// Valid reports whether the evaluation is one of the two known literals.
func (e Evaluation) Valid() bool {
	return e == EvaluationPositive || e == EvaluationNegative
}

// Opposite returns the flipped evaluation.
func (e Evaluation) Opposite() Evaluation {
	if e == EvaluationPositive {
		return EvaluationNegative
	}
	return EvaluationPositive
}

// ParseEvaluation converts a raw string to an Evaluation or fails.
func ParseEvaluation(s string) (Evaluation, error) {
	e := Evaluation(s)
	if !e.Valid() {
		return "", fmt.Errorf("invalid evaluation %q (want %q or %q)",
			s, EvaluationPositive, EvaluationNegative)
	}
	return e, nil
}

// GameRating is the ledger record holding a user's current evaluation of a
// game. At most one record exists per (user, game) pair; contradicting
// feedback flips the evaluation in place, it never creates a second record.
type GameRating struct {
	UserID     int        `json:"user_id"`
	GameID     int        `json:"game_id"`
	Evaluation Evaluation `json:"evaluation"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
