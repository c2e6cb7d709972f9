// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package models

import "time"

// APIResponse is the envelope every HTTP endpoint returns.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error payload.
//
// Codes in use: VALIDATION_ERROR, NOT_FOUND, DATABASE_ERROR,
// PUBLISH_ERROR, RATE_LIMIT_EXCEEDED, SERVICE_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PaginatedGames is the list payload for catalog pages.
type PaginatedGames struct {
	Games  []Game `json:"games"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Recommendation pairs a recommended game with its similarity to the
// query game.
type Recommendation struct {
	Game       Game    `json:"game"`
	Similarity float64 `json:"similarity"`
}

// EvaluationReceipt acknowledges an accepted feedback submission. The
// event id lets a client retry idempotently and correlate with support.
type EvaluationReceipt struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}
