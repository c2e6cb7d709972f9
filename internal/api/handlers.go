// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/mvidigal/ludex/internal/database"
	"github.com/mvidigal/ludex/internal/eventprocessor"
	"github.com/mvidigal/ludex/internal/models"
	"github.com/mvidigal/ludex/internal/score"
	"github.com/mvidigal/ludex/internal/similarity"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Catalog is the read side of the durable store the handlers need.
type Catalog interface {
	ListGames(ctx context.Context, limit, offset int) ([]models.Game, error)
	CountGames(ctx context.Context) (int64, error)
	GetGame(ctx context.Context, id int) (*models.Game, error)
	GetGames(ctx context.Context, ids []int) ([]models.Game, error)
	SearchGamesByName(ctx context.Context, name string, limit int) ([]models.Game, error)
	GamesByCategories(ctx context.Context, categories []string, limit int) ([]models.Game, error)
	RandomGame(ctx context.Context) (*models.Game, error)
	RankPopular(ctx context.Context, limit int) ([]models.Game, error)
	RankTopRated(ctx context.Context, limit, minEvaluations int) ([]models.Game, error)
	Ping(ctx context.Context) error
}

// SnapshotProvider yields the current similarity snapshot.
type SnapshotProvider interface {
	Index() *similarity.Index
}

// EvaluationPublisher puts accepted feedback onto the queue.
type EvaluationPublisher interface {
	PublishEvaluation(ctx context.Context, event *eventprocessor.EvaluationEvent) error
}

// Handler serves all Ludex endpoints.
type Handler struct {
	catalog   Catalog
	snapshots SnapshotProvider
	publisher EvaluationPublisher
}

// NewHandler wires the handler. publisher may be nil, in which case
// feedback submission responds 503.
func NewHandler(catalog Catalog, snapshots SnapshotProvider, publisher EvaluationPublisher) *Handler {
	return &Handler{
		catalog:   catalog,
		snapshots: snapshots,
		publisher: publisher,
	}
}

// Games returns one catalog page with the total count.
//
// GET /api/v1/games?limit=20&offset=0
func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := clampLimit(getIntParam(r, "limit", defaultPageLimit), defaultPageLimit, maxPageLimit)
	offset := getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	games, err := h.catalog.ListGames(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list games", err)
		return
	}
	total, err := h.catalog.CountGames(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count games", err)
		return
	}

	respondData(w, http.StatusOK, &models.PaginatedGames{
		Games:  score.DecorateAll(games),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, start)
}

// Game returns a single catalog item.
//
// GET /api/v1/games/{id}
func (h *Handler) Game(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := h.gameID(w, r)
	if !ok {
		return
	}

	game, err := h.fetchGame(w, r.Context(), id)
	if game == nil || err != nil {
		return
	}

	respondData(w, http.StatusOK, game, start)
}

// SearchGames finds games by partial, case-insensitive name.
//
// GET /api/v1/games/search?name=dungeon
func (h *Handler) SearchGames(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Query parameter 'name' is required", nil)
		return
	}
	limit := clampLimit(getIntParam(r, "limit", defaultPageLimit), defaultPageLimit, maxPageLimit)

	games, err := h.catalog.SearchGamesByName(r.Context(), name, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Search failed", err)
		return
	}

	respondData(w, http.StatusOK, score.DecorateAll(games), start)
}

// GamesByCategories returns games matching every given category
// fragment, best scored first.
//
// GET /api/v1/games/categories?cat=Single-player&cat=RPG
func (h *Handler) GamesByCategories(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	categories := r.URL.Query()["cat"]
	if len(categories) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "At least one 'cat' parameter is required", nil)
		return
	}
	if len(categories) > 4 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "At most 4 categories may be combined", nil)
		return
	}
	limit := clampLimit(getIntParam(r, "limit", defaultPageLimit), defaultPageLimit, maxPageLimit)

	games, err := h.catalog.GamesByCategories(r.Context(), categories, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Category query failed", err)
		return
	}

	respondData(w, http.StatusOK, score.DecorateAll(games), start)
}

// RandomGame returns one uniformly random catalog item.
//
// GET /api/v1/games/random
func (h *Handler) RandomGame(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	game, err := h.catalog.RandomGame(r.Context())
	if errors.Is(err, database.ErrGameNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Catalog is empty", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Random pick failed", err)
		return
	}

	respondData(w, http.StatusOK, score.Decorate(game), start)
}

// Recommendations returns content-similar games from the current
// snapshot, decorated with catalog data and similarity.
//
// GET /api/v1/games/{id}/recommendations?limit=10
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	if game, err := h.fetchGame(w, r.Context(), id); game == nil || err != nil {
		return
	}
	limit := clampLimit(getIntParam(r, "limit", 10), 10, 50)

	neighbors := h.snapshots.Index().Neighbors(id, limit)
	ids := make([]int, len(neighbors))
	simByID := make(map[int]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.GameID
		simByID[n.GameID] = n.Similarity
	}

	games, err := h.catalog.GetGames(r.Context(), ids)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load recommendations", err)
		return
	}

	recs := make([]models.Recommendation, 0, len(games))
	for _, g := range games {
		recs = append(recs, models.Recommendation{
			Game:       *score.Decorate(&g),
			Similarity: simByID[g.ID],
		})
	}

	respondData(w, http.StatusOK, recs, start)
}

// GameScore returns the reputation summary of a game.
//
// GET /api/v1/games/{id}/score
func (h *Handler) GameScore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := h.gameID(w, r)
	if !ok {
		return
	}
	game, err := h.fetchGame(w, r.Context(), id)
	if game == nil || err != nil {
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"game_id":           game.ID,
		"score":             game.Score,
		"positive":          game.Positive,
		"negative":          game.Negative,
		"total_evaluations": game.TotalEvaluations,
	}, start)
}

// RankPopular returns the most evaluated games.
//
// GET /api/v1/rankings/popular?limit=10
func (h *Handler) RankPopular(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := clampLimit(getIntParam(r, "limit", 10), 10, maxPageLimit)

	games, err := h.catalog.RankPopular(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Ranking query failed", err)
		return
	}

	respondData(w, http.StatusOK, score.DecorateAll(games), start)
}

// RankTop returns the best scored games above an evaluation floor. The
// floor keeps single-vote games from outranking well-established ones.
//
// GET /api/v1/rankings/top?limit=10&min_evaluations=10
func (h *Handler) RankTop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := clampLimit(getIntParam(r, "limit", 10), 10, maxPageLimit)
	minEvaluations := getIntParam(r, "min_evaluations", 10)
	if minEvaluations < 0 {
		minEvaluations = 0
	}

	games, err := h.catalog.RankTopRated(r.Context(), limit, minEvaluations)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Ranking query failed", err)
		return
	}

	respondData(w, http.StatusOK, score.DecorateAll(games), start)
}

// evaluationRequest is the ingestion payload.
type evaluationRequest struct {
	UserID     int    `json:"user_id"`
	ItemID     int    `json:"item_id"`
	Evaluation string `json:"evaluation"`
}

// SubmitEvaluation accepts one feedback submission and queues it.
// Responds 202: the ledger applies the event asynchronously, and the
// receipt's event id is the client's idempotency handle.
//
// POST /api/v1/evaluations
func (h *Handler) SubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Feedback ingestion unavailable", nil)
		return
	}
	start := time.Now()

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON body", err)
		return
	}

	eval, err := models.ParseEvaluation(req.Evaluation)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "evaluation must be 'positive' or 'negative'", nil)
		return
	}

	event := eventprocessor.NewEvaluationEvent(req.UserID, req.ItemID, eval)
	if err := event.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := h.publisher.PublishEvaluation(r.Context(), event); err != nil {
		respondError(w, http.StatusServiceUnavailable, "PUBLISH_ERROR", "Failed to queue evaluation", err)
		return
	}

	respondData(w, http.StatusAccepted, &models.EvaluationReceipt{
		EventID: event.EventID,
		Status:  "accepted",
	}, start)
}

// Health reports liveness plus store reachability.
//
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := "ok"
	httpStatus := http.StatusOK
	if err := h.catalog.Ping(r.Context()); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	respondData(w, httpStatus, map[string]interface{}{
		"status":      status,
		"index_games": h.snapshots.Index().Size(),
		"index_built": h.snapshots.Index().BuiltAt(),
	}, start)
}

// HealthLive is a bare liveness probe.
//
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"}, time.Now())
}

// gameID parses the {id} path parameter, responding 400 on garbage.
func (h *Handler) gameID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Game id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

// fetchGame loads and decorates one game, responding 404/500 itself on
// failure. Returns nil when a response was already written.
func (h *Handler) fetchGame(w http.ResponseWriter, ctx context.Context, id int) (*models.Game, error) {
	game, err := h.catalog.GetGame(ctx, id)
	if errors.Is(err, database.ErrGameNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Game not found", nil)
		return nil, err
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load game", err)
		return nil, err
	}
	return score.Decorate(game), nil
}
