// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/mvidigal/ludex/internal/metrics"
)

// MetricsMiddleware records request latency per method, route pattern,
// and status. The chi route pattern is used instead of the raw path so
// per-id paths don't explode metric label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.RecordHTTPRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}

// RateLimitMiddleware applies a global token bucket to the wrapped
// routes. Used on the ingestion endpoint to protect the queue from
// misbehaving clients.
func RateLimitMiddleware(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"Too many requests, slow down", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
