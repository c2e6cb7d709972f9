// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package score derives the bounded reputation score from the aggregate
// feedback counters. The score is a pure function of the counters and is
// computed on every read; it is never persisted as an independent source
// of truth.
package score

import (
	"math"

	"github.com/mvidigal/ludex/internal/models"
)

// Neutral is the score assigned to a game with no evaluations.
const Neutral = 3.0

// Score maps positive/negative counters to the 1-5 reputation scale.
// 1.0 means all feedback was negative, 5.0 all positive, rounded to two
// decimal places. Zero evaluations yield the neutral 3.0.
func Score(positive, negative int) float64 {
	total := positive + negative
	if total == 0 {
		return Neutral
	}
	s := 1.0 + 4.0*float64(positive)/float64(total)
	return math.Round(s*100) / 100
}

// TotalEvaluations returns the evaluation volume for a game.
func TotalEvaluations(positive, negative int) int {
	return positive + negative
}

// Decorate fills the derived Score and TotalEvaluations fields of a game
// from its stored counters. Returns the same pointer for chaining.
func Decorate(g *models.Game) *models.Game {
	g.Score = Score(g.Positive, g.Negative)
	g.TotalEvaluations = TotalEvaluations(g.Positive, g.Negative)
	return g
}

// DecorateAll decorates every game in the slice in place and returns it.
func DecorateAll(games []models.Game) []models.Game {
	for i := range games {
		Decorate(&games[i])
	}
	return games
}
