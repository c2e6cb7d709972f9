// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package models defines the core domain types shared across Ludex:
// catalog games, rating ledger records, and their validated construction
// helpers. Types here carry no behavior beyond validation and derivation
// so they can be used by the database, similarity, and API layers without
// import cycles.
package models

import (
	"database/sql"
	"errors"
	"fmt"
)

// Game represents a catalog item as stored in the games table.
//
// Positive and Negative are the aggregate feedback counters maintained by
// the rating ledger. Score and TotalEvaluations are derived on read from
// the counters and are never stored; they are zero until decorated.
type Game struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	ReleaseDate     string  `json:"release_date"`
	RequiredAge     int     `json:"required_age"`
	Price           float64 `json:"price"`
	HeaderImage     string  `json:"header_image"`
	Positive        int     `json:"positive"`
	Negative        int     `json:"negative"`
	Recommendations int     `json:"recommendations"`
	Genres          string  `json:"genres"`
	Categories      string  `json:"categories"`
	Description     string  `json:"description"`

	// Derived from the counters on read.
	Score            float64 `json:"score"`
	TotalEvaluations int     `json:"total_evaluations"`
}

// ErrNegativeValue is returned when a numeric field that must be
// non-negative carries a negative value.
var ErrNegativeValue = errors.New("value must be non-negative")

// NonNegativeInt converts a nullable integer column to a non-negative int.
// NULL maps to zero because the domain defines "no evaluations yet" as zero;
// a negative stored value is a data error and is reported, not silently
// clamped.
func NonNegativeInt(v sql.NullInt64) (int, error) {
	if !v.Valid {
		return 0, nil
	}
	if v.Int64 < 0 {
		return 0, fmt.Errorf("%w: got %d", ErrNegativeValue, v.Int64)
	}
	return int(v.Int64), nil
}

// NonNegativeFloat converts a nullable float column to a non-negative
// float64, with NULL mapping to zero.
func NonNegativeFloat(v sql.NullFloat64) (float64, error) {
	if !v.Valid {
		return 0, nil
	}
	if v.Float64 < 0 {
		return 0, fmt.Errorf("%w: got %g", ErrNegativeValue, v.Float64)
	}
	return v.Float64, nil
}

// NullString converts a nullable text column to a string, with NULL
// mapping to the empty string.
func NullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
