// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/database"
	"github.com/mvidigal/ludex/internal/eventprocessor"
	"github.com/mvidigal/ludex/internal/models"
	"github.com/mvidigal/ludex/internal/similarity"
)

type fakeCatalog struct {
	games []models.Game
}

func (f *fakeCatalog) byID(id int) *models.Game {
	for i := range f.games {
		if f.games[i].ID == id {
			g := f.games[i]
			return &g
		}
	}
	return nil
}

func (f *fakeCatalog) ListGames(ctx context.Context, limit, offset int) ([]models.Game, error) {
	if offset >= len(f.games) {
		return []models.Game{}, nil
	}
	end := offset + limit
	if end > len(f.games) {
		end = len(f.games)
	}
	return append([]models.Game{}, f.games[offset:end]...), nil
}

func (f *fakeCatalog) CountGames(ctx context.Context) (int64, error) {
	return int64(len(f.games)), nil
}

func (f *fakeCatalog) GetGame(ctx context.Context, id int) (*models.Game, error) {
	if g := f.byID(id); g != nil {
		return g, nil
	}
	return nil, database.ErrGameNotFound
}

func (f *fakeCatalog) GetGames(ctx context.Context, ids []int) ([]models.Game, error) {
	out := make([]models.Game, 0, len(ids))
	for _, id := range ids {
		if g := f.byID(id); g != nil {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchGamesByName(ctx context.Context, name string, limit int) ([]models.Game, error) {
	out := make([]models.Game, 0)
	for _, g := range f.games {
		if strings.Contains(strings.ToLower(g.Name), strings.ToLower(name)) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GamesByCategories(ctx context.Context, categories []string, limit int) ([]models.Game, error) {
	out := make([]models.Game, 0)
	for _, g := range f.games {
		match := true
		for _, cat := range categories {
			if !strings.Contains(g.Categories, cat) {
				match = false
				break
			}
		}
		if match {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RandomGame(ctx context.Context) (*models.Game, error) {
	if len(f.games) == 0 {
		return nil, database.ErrGameNotFound
	}
	g := f.games[0]
	return &g, nil
}

func (f *fakeCatalog) RankPopular(ctx context.Context, limit int) ([]models.Game, error) {
	return f.ListGames(ctx, limit, 0)
}

func (f *fakeCatalog) RankTopRated(ctx context.Context, limit, minEvaluations int) ([]models.Game, error) {
	out := make([]models.Game, 0)
	for _, g := range f.games {
		if g.Positive+g.Negative >= minEvaluations {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Ping(ctx context.Context) error { return nil }

type fakeSnapshots struct {
	index *similarity.Index
}

func (f *fakeSnapshots) Index() *similarity.Index { return f.index }

type fakePublisher struct {
	published []*eventprocessor.EvaluationEvent
	err       error
}

func (f *fakePublisher) PublishEvaluation(ctx context.Context, event *eventprocessor.EvaluationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func testServer(t *testing.T, catalog *fakeCatalog, publisher EvaluationPublisher) *httptest.Server {
	t.Helper()

	docs := make([]similarity.Document, 0, len(catalog.games))
	for _, g := range catalog.games {
		docs = append(docs, similarity.Document{GameID: g.ID, Text: g.Categories + " " + g.Genres})
	}
	index, err := similarity.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	h := NewHandler(catalog, &fakeSnapshots{index: index}, publisher)
	srv := httptest.NewServer(NewRouter(h, &config.ServerConfig{
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{games: []models.Game{
		{ID: 1, Name: "Starfall Tactics", Categories: "Single-player,Strategy", Genres: "Strategy", Positive: 9, Negative: 1},
		{ID: 2, Name: "Dungeon Depths", Categories: "Single-player,RPG", Genres: "RPG", Positive: 5, Negative: 5},
		{ID: 3, Name: "Star Command", Categories: "Single-player,Strategy", Genres: "Strategy", Positive: 1, Negative: 0},
	}}
}

func getEnvelope(t *testing.T, url string, wantStatus int) *models.APIResponse {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return &envelope
}

func decodeData(t *testing.T, envelope *models.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestGamesPagination(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games?limit=2&offset=0", http.StatusOK)
	var page models.PaginatedGames
	decodeData(t, envelope, &page)

	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(page.Games) != 2 {
		t.Errorf("len(Games) = %d, want 2", len(page.Games))
	}
	if page.Games[0].Score != 4.6 {
		t.Errorf("Games[0].Score = %v, want 4.6", page.Games[0].Score)
	}
	if page.Games[0].TotalEvaluations != 10 {
		t.Errorf("Games[0].TotalEvaluations = %d, want 10", page.Games[0].TotalEvaluations)
	}
}

func TestGameByID(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/2", http.StatusOK)
	var game models.Game
	decodeData(t, envelope, &game)

	if game.Name != "Dungeon Depths" {
		t.Errorf("Name = %q, want Dungeon Depths", game.Name)
	}
	if game.Score != 3.0 {
		t.Errorf("Score = %v, want 3.0", game.Score)
	}
}

func TestGameNotFound(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/999", http.StatusNotFound)
	if envelope.Error == nil || envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", envelope.Error)
	}
}

func TestGameInvalidID(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/abc", http.StatusBadRequest)
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
	}
}

func TestSearchRequiresName(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	getEnvelope(t, srv.URL+"/api/v1/games/search", http.StatusBadRequest)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/search?name=star", http.StatusOK)
	var games []models.Game
	decodeData(t, envelope, &games)
	if len(games) != 2 {
		t.Errorf("search returned %d games, want 2", len(games))
	}
}

func TestCategoriesValidation(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	getEnvelope(t, srv.URL+"/api/v1/games/categories", http.StatusBadRequest)
	getEnvelope(t, srv.URL+"/api/v1/games/categories?cat=a&cat=b&cat=c&cat=d&cat=e", http.StatusBadRequest)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/categories?cat=Strategy", http.StatusOK)
	var games []models.Game
	decodeData(t, envelope, &games)
	if len(games) != 2 {
		t.Errorf("category query returned %d games, want 2", len(games))
	}
}

func TestRandomGameEmptyCatalog(t *testing.T) {
	srv := testServer(t, &fakeCatalog{}, nil)
	getEnvelope(t, srv.URL+"/api/v1/games/random", http.StatusNotFound)
}

func TestRecommendations(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/1/recommendations", http.StatusOK)
	var recs []models.Recommendation
	decodeData(t, envelope, &recs)

	if len(recs) == 0 {
		t.Fatal("no recommendations returned")
	}
	// Game 3 shares categories and genres with game 1; it must rank first.
	if recs[0].Game.ID != 3 {
		t.Errorf("top recommendation = game %d, want 3", recs[0].Game.ID)
	}
	if recs[0].Similarity <= 0 || recs[0].Similarity > 1 {
		t.Errorf("similarity = %v, want (0, 1]", recs[0].Similarity)
	}
	for _, rec := range recs {
		if rec.Game.ID == 1 {
			t.Error("recommendations include the query game itself")
		}
	}
}

func TestGameScoreEndpoint(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/games/1/score", http.StatusOK)
	var data map[string]interface{}
	decodeData(t, envelope, &data)

	if data["score"] != 4.6 {
		t.Errorf("score = %v, want 4.6", data["score"])
	}
	if data["total_evaluations"] != float64(10) {
		t.Errorf("total_evaluations = %v, want 10", data["total_evaluations"])
	}
}

func TestRankTopHonorsMinEvaluations(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/rankings/top?min_evaluations=5", http.StatusOK)
	var games []models.Game
	decodeData(t, envelope, &games)

	// Game 3 has a single evaluation and must be excluded.
	for _, g := range games {
		if g.ID == 3 {
			t.Error("rankings include game below the evaluation floor")
		}
	}
	if len(games) != 2 {
		t.Errorf("rankings returned %d games, want 2", len(games))
	}
}

func TestSubmitEvaluation(t *testing.T) {
	publisher := &fakePublisher{}
	srv := testServer(t, defaultCatalog(), publisher)

	resp, err := http.Post(srv.URL+"/api/v1/evaluations", "application/json",
		strings.NewReader(`{"user_id": 7, "item_id": 1, "evaluation": "positive"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var receipt models.EvaluationReceipt
	decodeData(t, &envelope, &receipt)

	if receipt.EventID == "" || receipt.Status != "accepted" {
		t.Errorf("receipt = %+v, want event id and accepted status", receipt)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.published))
	}
	if publisher.published[0].EventID != receipt.EventID {
		t.Error("receipt event id does not match published event")
	}
}

func TestSubmitEvaluationValidation(t *testing.T) {
	publisher := &fakePublisher{}
	srv := testServer(t, defaultCatalog(), publisher)

	bodies := []string{
		`{not json`,
		`{"user_id": 7, "item_id": 1, "evaluation": "meh"}`,
		`{"user_id": 0, "item_id": 1, "evaluation": "positive"}`,
		`{"user_id": 7, "item_id": -2, "evaluation": "positive"}`,
	}

	for _, body := range bodies {
		resp, err := http.Post(srv.URL+"/api/v1/evaluations", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q status = %d, want 400", body, resp.StatusCode)
		}
	}
	if len(publisher.published) != 0 {
		t.Errorf("published %d events for invalid bodies, want 0", len(publisher.published))
	}
}

func TestSubmitEvaluationPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	srv := testServer(t, defaultCatalog(), publisher)

	resp, err := http.Post(srv.URL+"/api/v1/evaluations", "application/json",
		strings.NewReader(`{"user_id": 7, "item_id": 1, "evaluation": "positive"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t, defaultCatalog(), nil)

	envelope := getEnvelope(t, srv.URL+"/api/v1/health", http.StatusOK)
	var data map[string]interface{}
	decodeData(t, envelope, &data)
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}

	getEnvelope(t, srv.URL+"/api/v1/health/live", http.StatusOK)
}
