// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvidigal/ludex/internal/logging"
	"github.com/mvidigal/ludex/internal/metrics"
	"github.com/mvidigal/ludex/internal/models"
)

// ApplyResult names the outcome of a ledger transition.
type ApplyResult string

const (
	// ApplyInserted means a new rating record was created.
	ApplyInserted ApplyResult = "inserted"
	// ApplyUpdated means an existing record flipped evaluation.
	ApplyUpdated ApplyResult = "updated"
	// ApplyUnchanged means the event was a no-op replay.
	ApplyUnchanged ApplyResult = "unchanged"
)

// ErrGameNotFound is returned when the referenced game does not exist.
var ErrGameNotFound = errors.New("game not found")

// ApplyEvaluation runs the rating ledger state machine for one
// (user, game) key inside a single transaction:
//
//	absent   + eval     -> insert record, eval counter += 1   (inserted)
//	same     + eval     -> no mutation                        (unchanged)
//	opposite + eval     -> flip record, old counter -= 1
//	                       (floored at 0), new counter += 1   (updated)
//
// The read-check-write sequence is serialized against concurrent calls
// for the same key by an in-process per-key mutex; unrelated keys run in
// parallel. Replaying an already-applied event returns ApplyUnchanged
// and performs no store mutation, which is what makes at-least-once
// delivery safe upstream.
func (db *DB) ApplyEvaluation(ctx context.Context, userID, gameID int, eval models.Evaluation) (ApplyResult, error) {
	if !eval.Valid() {
		return "", fmt.Errorf("invalid evaluation %q", eval)
	}

	unlock := db.lockKey(userID, gameID)
	defer unlock()

	result, err := db.applyEvaluationTx(ctx, userID, gameID, eval)
	if err != nil {
		metrics.LedgerErrors.Inc()
		return "", err
	}

	metrics.RecordLedgerTransition(string(result))
	return result, nil
}

func (db *DB) applyEvaluationTx(ctx context.Context, userID, gameID int, eval models.Evaluation) (result ApplyResult, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("ledger transaction rollback failed")
			}
		}
	}()

	// The game must exist; feedback for an unknown game is permanent,
	// not transient, so the caller can drop instead of retrying.
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, gameID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: id %d", ErrGameNotFound, gameID)
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("check game %d: %w", gameID, err)
	}

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT evaluation FROM game_ratings WHERE user_id = ? AND game_id = ?`,
		userID, gameID).Scan(&current)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// absent -> insert record and bump the matching counter.
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO game_ratings (user_id, game_id, evaluation, updated_at)
			 VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
			userID, gameID, string(eval)); err != nil {
			return "", fmt.Errorf("insert rating: %w", err)
		}
		if err = db.bumpCounter(ctx, tx, gameID, eval, +1); err != nil {
			return "", err
		}
		result = ApplyInserted

	case err != nil:
		return "", fmt.Errorf("read rating: %w", err)

	case current == string(eval):
		// Idempotent replay: no store mutation.
		result = ApplyUnchanged

	default:
		// Flip: decrement the old counter (floored at zero) and
		// increment the new one in the same transaction.
		if _, err = tx.ExecContext(ctx,
			`UPDATE game_ratings SET evaluation = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE user_id = ? AND game_id = ?`,
			string(eval), userID, gameID); err != nil {
			return "", fmt.Errorf("flip rating: %w", err)
		}
		if err = db.bumpCounter(ctx, tx, gameID, eval.Opposite(), -1); err != nil {
			return "", err
		}
		if err = db.bumpCounter(ctx, tx, gameID, eval, +1); err != nil {
			return "", err
		}
		result = ApplyUpdated
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit ledger transaction: %w", err)
	}
	return result, nil
}

// bumpCounter adjusts one aggregate counter by delta, flooring at zero so
// a pre-existing inconsistency can never drive a counter negative.
func (db *DB) bumpCounter(ctx context.Context, tx *sql.Tx, gameID int, eval models.Evaluation, delta int) error {
	column := "positive"
	if eval == models.EvaluationNegative {
		column = "negative"
	}

	//nolint:gosec // column is one of two compile-time constants
	query := fmt.Sprintf(
		`UPDATE games SET %s = GREATEST(COALESCE(%s, 0) + ?, 0) WHERE id = ?`,
		column, column)

	if _, err := tx.ExecContext(ctx, query, delta, gameID); err != nil {
		return fmt.Errorf("adjust %s counter: %w", column, err)
	}
	return nil
}

// GetRating returns a user's current evaluation of a game, or
// sql.ErrNoRows wrapped when absent.
func (db *DB) GetRating(ctx context.Context, userID, gameID int) (*models.GameRating, error) {
	r := &models.GameRating{UserID: userID, GameID: gameID}
	var eval string
	err := db.conn.QueryRowContext(ctx,
		`SELECT evaluation, updated_at FROM game_ratings WHERE user_id = ? AND game_id = ?`,
		userID, gameID).Scan(&eval, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("read rating (%d, %d): %w", userID, gameID, err)
	}
	r.Evaluation = models.Evaluation(eval)
	return r, nil
}

// CountRatings returns the number of ledger records for a game.
func (db *DB) CountRatings(ctx context.Context, gameID int) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_ratings WHERE game_id = ?`, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ratings for game %d: %w", gameID, err)
	}
	return n, nil
}
