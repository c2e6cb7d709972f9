// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/mvidigal/ludex/internal/models"
)

func seedCatalog(t *testing.T, db *DB) {
	t.Helper()
	games := []models.Game{
		{ID: 1, Name: "Starfall Tactics", Categories: "Single-player,Strategy", Genres: "Strategy", Positive: 9, Negative: 1},
		{ID: 2, Name: "Dungeon Depths", Categories: "Single-player,RPG", Genres: "RPG", Positive: 5, Negative: 5},
		{ID: 3, Name: "Skyline Racers", Categories: "Multi-player,Racing", Genres: "Racing", Positive: 1, Negative: 9},
		{ID: 4, Name: "Mystic Gardens", Categories: "Single-player,Casual", Genres: "Puzzle"},
	}
	for i := range games {
		insertTestGame(t, db, games[i])
	}
}

func TestListGamesPagination(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	page, err := db.ListGames(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListGames() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != 1 || page[1].ID != 2 {
		t.Errorf("first page ids = %v, want [1 2]", gameIDs(page))
	}

	page, err = db.ListGames(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListGames() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != 3 || page[1].ID != 4 {
		t.Errorf("second page ids = %v, want [3 4]", gameIDs(page))
	}

	page, err = db.ListGames(ctx, 10, 100)
	if err != nil {
		t.Fatalf("ListGames() error = %v", err)
	}
	if len(page) != 0 {
		t.Errorf("past-end page has %d games, want 0", len(page))
	}

	total, err := db.CountGames(ctx)
	if err != nil {
		t.Fatalf("CountGames() error = %v", err)
	}
	if total != 4 {
		t.Errorf("CountGames() = %d, want 4", total)
	}
}

func TestGetGame(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)

	g, err := db.GetGame(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetGame() error = %v", err)
	}
	if g.Name != "Dungeon Depths" {
		t.Errorf("Name = %q, want Dungeon Depths", g.Name)
	}
	if g.Positive != 5 || g.Negative != 5 {
		t.Errorf("counters = (%d, %d), want (5, 5)", g.Positive, g.Negative)
	}

	if _, err := db.GetGame(context.Background(), 999); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("GetGame(999) error = %v, want ErrGameNotFound", err)
	}
}

func TestGetGamesPreservesOrder(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)

	games, err := db.GetGames(context.Background(), []int{3, 1, 999, 2})
	if err != nil {
		t.Fatalf("GetGames() error = %v", err)
	}
	want := []int{3, 1, 2}
	got := gameIDs(games)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids = %v, want %v", got, want)
			break
		}
	}
}

func TestSearchGamesByName(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		wantIDs []int
	}{
		{name: "case insensitive", query: "dungeon", wantIDs: []int{2}},
		{name: "partial match", query: "ar", wantIDs: []int{1, 4}},
		{name: "no match", query: "zelda", wantIDs: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			games, err := db.SearchGamesByName(ctx, tt.query, 10)
			if err != nil {
				t.Fatalf("SearchGamesByName() error = %v", err)
			}
			got := gameIDs(games)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", got, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestGamesByCategories(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	// Single-player games ordered by score: 1 (4.6), 4 (3.0 neutral), 2 (3.0).
	games, err := db.GamesByCategories(ctx, []string{"Single-player"}, 10)
	if err != nil {
		t.Fatalf("GamesByCategories() error = %v", err)
	}
	got := gameIDs(games)
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("ids = %v, want game 1 first of 3", got)
	}

	// All fragments must match.
	games, err = db.GamesByCategories(ctx, []string{"Single-player", "RPG"}, 10)
	if err != nil {
		t.Fatalf("GamesByCategories() error = %v", err)
	}
	if got := gameIDs(games); len(got) != 1 || got[0] != 2 {
		t.Errorf("ids = %v, want [2]", got)
	}

	// Blank-only input matches nothing rather than everything.
	games, err = db.GamesByCategories(ctx, []string{"  ", ""}, 10)
	if err != nil {
		t.Fatalf("GamesByCategories() error = %v", err)
	}
	if len(games) != 0 {
		t.Errorf("blank categories returned %d games, want 0", len(games))
	}
}

func TestRandomGame(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.RandomGame(context.Background()); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("empty catalog error = %v, want ErrGameNotFound", err)
	}

	seedCatalog(t, db)
	g, err := db.RandomGame(context.Background())
	if err != nil {
		t.Fatalf("RandomGame() error = %v", err)
	}
	if g.ID < 1 || g.ID > 4 {
		t.Errorf("RandomGame().ID = %d, want a seeded id", g.ID)
	}
}

func TestRankPopular(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)

	games, err := db.RankPopular(context.Background(), 3)
	if err != nil {
		t.Fatalf("RankPopular() error = %v", err)
	}
	// Games 1, 2, 3 all have 10 evaluations; the id tie-break keeps the
	// order deterministic. Game 4 (0 evaluations) falls off the top 3.
	want := []int{1, 2, 3}
	got := gameIDs(games)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids = %v, want %v", got, want)
			break
		}
	}
}

func TestRankTopRated(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	// min_evaluations = 1 excludes the unevaluated game 4.
	games, err := db.RankTopRated(ctx, 10, 1)
	if err != nil {
		t.Fatalf("RankTopRated() error = %v", err)
	}
	want := []int{1, 2, 3} // scores 4.6, 3.0, 1.4
	got := gameIDs(games)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids = %v, want %v", got, want)
			break
		}
	}

	// min_evaluations = 0 admits game 4 with the neutral score.
	games, err = db.RankTopRated(ctx, 10, 0)
	if err != nil {
		t.Fatalf("RankTopRated() error = %v", err)
	}
	if len(games) != 4 {
		t.Errorf("len = %d, want 4", len(games))
	}
}

func TestCatalogDocuments(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)

	docs, err := db.CatalogDocuments(context.Background())
	if err != nil {
		t.Fatalf("CatalogDocuments() error = %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("len = %d, want 4", len(docs))
	}
	if docs[0].GameID != 1 || docs[0].Text != "Single-player,Strategy Strategy" {
		t.Errorf("doc[0] = %+v, want game 1 with flattened categories and genres", docs[0])
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].GameID <= docs[i-1].GameID {
			t.Errorf("documents not in id order at %d: %v", i, docs[i])
		}
	}
}

func gameIDs(games []models.Game) []int {
	ids := make([]int, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids
}
