// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package similarity

import (
	"context"
	"sort"
	"time"
)

// Document is one game's textual descriptors, flattened to a single
// string (categories plus genres) before vectorization.
type Document struct {
	GameID int
	Text   string
}

// Neighbor pairs a game with its similarity to the query game.
type Neighbor struct {
	GameID     int     `json:"game_id"`
	Similarity float64 `json:"similarity"`
}

// Index is an immutable similarity snapshot over one catalog version.
// It holds, for every game, the full list of other games ordered by
// descending similarity with ties broken by original catalog order.
// An Index is never mutated after Build returns; concurrent reads are
// safe without synchronization.
type Index struct {
	neighbors map[int][]Neighbor
	size      int
	builtAt   time.Time
}

// Build computes the all-pairs similarity index from a catalog snapshot.
// Cost is quadratic in catalog size, acceptable only because the catalog
// is bounded. The context is checked per row so a superseded rebuild can
// be abandoned without side effects.
func Build(ctx context.Context, docs []Document) (*Index, error) {
	vectors := make([]vector, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = vectorize(doc.Text)
	}

	// Symmetric all-pairs similarity, computed once per pair.
	sims := make([][]float64, len(docs))
	for i := range sims {
		sims[i] = make([]float64, len(docs))
	}
	for i := 0; i < len(docs); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(docs); j++ {
			s := cosine(vectors[i], vectors[j])
			sims[i][j] = s
			sims[j][i] = s
		}
	}

	neighbors := make(map[int][]Neighbor, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list := make([]Neighbor, 0, len(docs)-1)
		for j, other := range docs {
			if j == i {
				continue
			}
			list = append(list, Neighbor{GameID: other.GameID, Similarity: sims[i][j]})
		}
		// Stable sort preserves catalog order among equal similarities.
		sort.SliceStable(list, func(a, b int) bool {
			return list[a].Similarity > list[b].Similarity
		})
		neighbors[doc.GameID] = list
	}

	return &Index{
		neighbors: neighbors,
		size:      len(docs),
		builtAt:   time.Now().UTC(),
	}, nil
}

// Neighbors returns the k most similar games to gameID, excluding gameID
// itself, ordered by descending similarity. An unknown gameID yields an
// empty slice, not an error. When the catalog holds fewer than k+1 games
// all available neighbors are returned.
func (idx *Index) Neighbors(gameID, k int) []Neighbor {
	list, ok := idx.neighbors[gameID]
	if !ok || k <= 0 {
		return []Neighbor{}
	}
	if k > len(list) {
		k = len(list)
	}
	out := make([]Neighbor, k)
	copy(out, list[:k])
	return out
}

// Contains reports whether the game was part of the indexed catalog.
func (idx *Index) Contains(gameID int) bool {
	_, ok := idx.neighbors[gameID]
	return ok
}

// Size returns the number of games in the indexed catalog.
func (idx *Index) Size() int {
	return idx.size
}

// BuiltAt returns when the snapshot was built.
func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}
