// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package similarity builds and queries the content-similarity index over
// the game catalog. Each game's category and genre text is vectorized as
// character-bigram frequencies, L2-normalized, and compared pairwise by
// cosine similarity. The resulting Index is immutable: it is built
// wholesale from a catalog snapshot and swapped in atomically by the
// refresher, so readers never need locks and never observe a partially
// built state.
package similarity

import (
	"math"
	"strings"
)

// vector is a sparse L2-normalized character-bigram frequency vector.
type vector map[string]float64

// vectorize converts a document to a normalized bigram vector.
// Text is lowercased first; bigrams run over the full rune sequence
// including spaces and punctuation, which keeps short category strings
// comparable. Texts shorter than two runes produce an empty vector.
func vectorize(text string) vector {
	runes := []rune(strings.ToLower(text))
	if len(runes) < 2 {
		return vector{}
	}

	v := make(vector, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		v[string(runes[i:i+2])]++
	}

	var norm float64
	for _, count := range v {
		norm += count * count
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vector{}
	}
	for bigram := range v {
		v[bigram] /= norm
	}
	return v
}

// cosine computes the cosine similarity of two normalized vectors.
// Iterates the smaller vector for fewer map lookups.
func cosine(a, b vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for bigram, av := range a {
		if bv, ok := b[bigram]; ok {
			dot += av * bv
		}
	}
	// Normalized inputs keep the product in [0, 1] up to float error.
	if dot > 1.0 {
		dot = 1.0
	}
	return dot
}
