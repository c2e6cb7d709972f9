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
	"strings"

	"github.com/mvidigal/ludex/internal/models"
	"github.com/mvidigal/ludex/internal/similarity"
)

// gameColumns is the canonical column list scanned by scanGame.
const gameColumns = `id, name, release_date, required_age, price, header_image,
	positive, negative, recommendations, genres, categories, description`

// derivedScoreSQL computes the reputation score inside queries that order
// by it. Mirrors score.Score: neutral 3.0 with no evaluations, else
// 1 + 4*positive/total.
const derivedScoreSQL = `CASE WHEN COALESCE(positive, 0) + COALESCE(negative, 0) = 0
	THEN 3.0
	ELSE 1.0 + 4.0 * COALESCE(positive, 0) / (COALESCE(positive, 0) + COALESCE(negative, 0))
	END`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanGame maps one games row to a model, applying the explicit
// non-negative conversion contract to nullable numeric columns.
func scanGame(row rowScanner) (models.Game, error) {
	var (
		g                                        models.Game
		releaseDate, headerImage                 sql.NullString
		genres, categories, description          sql.NullString
		requiredAge, positive, negative, recomms sql.NullInt64
		price                                    sql.NullFloat64
	)

	if err := row.Scan(&g.ID, &g.Name, &releaseDate, &requiredAge, &price,
		&headerImage, &positive, &negative, &recomms,
		&genres, &categories, &description); err != nil {
		return g, err
	}

	var err error
	if g.RequiredAge, err = models.NonNegativeInt(requiredAge); err != nil {
		return g, fmt.Errorf("game %d required_age: %w", g.ID, err)
	}
	if g.Positive, err = models.NonNegativeInt(positive); err != nil {
		return g, fmt.Errorf("game %d positive: %w", g.ID, err)
	}
	if g.Negative, err = models.NonNegativeInt(negative); err != nil {
		return g, fmt.Errorf("game %d negative: %w", g.ID, err)
	}
	if g.Recommendations, err = models.NonNegativeInt(recomms); err != nil {
		return g, fmt.Errorf("game %d recommendations: %w", g.ID, err)
	}
	if g.Price, err = models.NonNegativeFloat(price); err != nil {
		return g, fmt.Errorf("game %d price: %w", g.ID, err)
	}

	g.ReleaseDate = models.NullString(releaseDate)
	g.HeaderImage = models.NullString(headerImage)
	g.Genres = models.NullString(genres)
	g.Categories = models.NullString(categories)
	g.Description = models.NullString(description)
	return g, nil
}

func (db *DB) queryGames(ctx context.Context, query string, args ...any) ([]models.Game, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer func() { _ = rows.Close() }()

	games := make([]models.Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

// ListGames returns one page of the catalog in stable id order.
func (db *DB) ListGames(ctx context.Context, limit, offset int) ([]models.Game, error) {
	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
}

// CountGames returns the catalog size.
func (db *DB) CountGames(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

// GetGame returns a single game or ErrGameNotFound.
func (db *DB) GetGame(ctx context.Context, id int) (*models.Game, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrGameNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get game %d: %w", id, err)
	}
	return &g, nil
}

// GetGames returns the games with the given ids, preserving input order.
// Unknown ids are skipped.
func (db *DB) GetGames(ctx context.Context, ids []int) ([]models.Game, error) {
	if len(ids) == 0 {
		return []models.Game{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	games, err := db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]models.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	ordered := make([]models.Game, 0, len(games))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			ordered = append(ordered, g)
		}
	}
	return ordered, nil
}

// SearchGamesByName returns games whose name contains the fragment,
// case-insensitively, in stable id order.
func (db *DB) SearchGamesByName(ctx context.Context, name string, limit int) ([]models.Game, error) {
	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE name ILIKE '%' || ? || '%'
		 ORDER BY id LIMIT ?`,
		name, limit)
}

// GamesByCategories returns games whose category text contains ALL of the
// given fragments, best scored first.
func (db *DB) GamesByCategories(ctx context.Context, categories []string, limit int) ([]models.Game, error) {
	clauses := make([]string, 0, len(categories))
	args := make([]any, 0, len(categories)+1)
	for _, cat := range categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		clauses = append(clauses, `categories ILIKE '%' || ? || '%'`)
		args = append(args, cat)
	}
	if len(clauses) == 0 {
		return []models.Game{}, nil
	}
	args = append(args, limit)

	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE `+strings.Join(clauses, " AND ")+`
		 ORDER BY `+derivedScoreSQL+` DESC, id
		 LIMIT ?`, args...)
}

// RandomGame returns one uniformly random game, or ErrGameNotFound on an
// empty catalog.
func (db *DB) RandomGame(ctx context.Context) (*models.Game, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY random() LIMIT 1`)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("random game: %w", err)
	}
	return &g, nil
}

// RankPopular returns the most evaluated games first.
func (db *DB) RankPopular(ctx context.Context, limit int) ([]models.Game, error) {
	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 ORDER BY COALESCE(positive, 0) + COALESCE(negative, 0) DESC, id
		 LIMIT ?`, limit)
}

// RankTopRated returns the best scored games with at least minEvaluations
// total evaluations.
func (db *DB) RankTopRated(ctx context.Context, limit, minEvaluations int) ([]models.Game, error) {
	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE COALESCE(positive, 0) + COALESCE(negative, 0) >= ?
		 ORDER BY `+derivedScoreSQL+` DESC, id
		 LIMIT ?`, minEvaluations, limit)
}

// CatalogDocuments returns one similarity document per game in stable
// catalog (id) order: categories and genres flattened to a single text.
func (db *DB) CatalogDocuments(ctx context.Context) ([]similarity.Document, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, COALESCE(categories, ''), COALESCE(genres, '') FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]similarity.Document, 0)
	for rows.Next() {
		var (
			id                 int
			categories, genres string
		)
		if err := rows.Scan(&id, &categories, &genres); err != nil {
			return nil, fmt.Errorf("scan catalog document: %w", err)
		}
		docs = append(docs, similarity.Document{
			GameID: id,
			Text:   strings.TrimSpace(categories + " " + genres),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog documents: %w", err)
	}
	return docs, nil
}

// InsertGame adds a catalog item. Counters start at the given values so
// imported catalogs keep their historical feedback.
func (db *DB) InsertGame(ctx context.Context, g *models.Game) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO games (id, name, release_date, required_age, price, header_image,
			positive, negative, recommendations, genres, categories, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.ReleaseDate, g.RequiredAge, g.Price, g.HeaderImage,
		g.Positive, g.Negative, g.Recommendations, g.Genres, g.Categories, g.Description)
	if err != nil {
		return fmt.Errorf("insert game %d: %w", g.ID, err)
	}
	return nil
}

// seedMockData loads a tiny demo catalog for local development.
func (db *DB) seedMockData(ctx context.Context) error {
	n, err := db.CountGames(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	demo := []models.Game{
		{ID: 1, Name: "Starfall Tactics", Categories: "Single-player,Strategy", Genres: "Strategy,Sci-Fi", Price: 29.99},
		{ID: 2, Name: "Dungeon Depths", Categories: "Single-player,RPG", Genres: "RPG,Roguelike", Price: 19.99},
		{ID: 3, Name: "Skyline Racers", Categories: "Multi-player,Racing", Genres: "Racing,Arcade", Price: 24.99},
		{ID: 4, Name: "Mystic Gardens", Categories: "Single-player,Casual", Genres: "Puzzle,Casual", Price: 9.99},
		{ID: 5, Name: "Iron Vanguard", Categories: "Multi-player,Action", Genres: "Action,Shooter", Price: 39.99},
	}
	for i := range demo {
		if err := db.InsertGame(ctx, &demo[i]); err != nil {
			return err
		}
	}
	return nil
}
