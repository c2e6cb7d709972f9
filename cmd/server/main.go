// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Command server runs the Ludex service: feedback ingestion over NATS
// JetStream, the DuckDB rating ledger, the similarity index, and the
// HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvidigal/ludex/internal/api"
	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/database"
	"github.com/mvidigal/ludex/internal/eventprocessor"
	"github.com/mvidigal/ludex/internal/logging"
	"github.com/mvidigal/ludex/internal/refresher"
	"github.com/mvidigal/ludex/internal/supervisor"
	"github.com/mvidigal/ludex/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Path).
		Msg("starting ludex")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable store.
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Queue: embedded broker for single-node deployments, external
	// otherwise.
	if cfg.NATS.EmbeddedServer {
		es, err := eventprocessor.NewEmbeddedServer(cfg.NATS.StoreDir)
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.NATS.CloseTimeout)
			defer cancel()
			_ = es.Shutdown(shutdownCtx)
		}()
		cfg.NATS.URL = es.ClientURL()
		logging.Info().Str("url", cfg.NATS.URL).Msg("embedded NATS server ready")
	}

	// The stream must exist before either side of the queue connects.
	streamInit, nc, err := eventprocessor.ConnectStreamInitializer(&cfg.NATS)
	if err != nil {
		return fmt.Errorf("connect stream initializer: %w", err)
	}
	defer nc.Close()

	provisionCtx, cancelProvision := context.WithTimeout(ctx, 30*time.Second)
	defer cancelProvision()
	stream, err := streamInit.EnsureStream(provisionCtx)
	if err != nil {
		return fmt.Errorf("provision stream: %w", err)
	}

	wmLogger := eventprocessor.NewWatermillLogger()

	publisher, err := eventprocessor.NewPublisher(&cfg.NATS, wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	subscriber, err := eventprocessor.NewSubscriber(&cfg.NATS, wmLogger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer func() { _ = subscriber.Close() }()

	dlq, err := eventprocessor.NewDLQStore(&cfg.DLQ)
	if err != nil {
		return fmt.Errorf("open dead-letter store: %w", err)
	}
	defer func() { _ = dlq.Close() }()

	// Similarity index: build the first snapshot before serving so
	// recommendations never start from an empty index on a warm catalog.
	ref := refresher.New(db, &cfg.Refresher)
	if err := ref.Rebuild(ctx); err != nil {
		logging.Warn().Err(err).Msg("initial index build failed, serving empty snapshot")
	}

	consumer := eventprocessor.NewConsumer(
		subscriber, db, dlq, &cfg.Consumer, cfg.NATS.Subject, ref.Trigger)

	// Transient failures that exhaust their redelivery budget land in
	// the dead-letter store via the max-deliveries advisory.
	watcher := eventprocessor.NewMaxDeliveriesWatcher(nc, stream, dlq, &cfg.NATS)

	handler := api.NewHandler(db, ref, publisher)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, &cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree.
	tree := supervisor.NewTree(slog.Default(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewRunnerService("evaluation-consumer", consumer.Run))
	tree.AddMessagingService(services.NewRunnerService("max-deliveries-watcher", watcher.Run))
	tree.AddMessagingService(services.NewRunnerService("dlq-janitor", dlq.RunJanitor))
	tree.AddIndexingService(services.NewRunnerService("index-refresher", ref.Run))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", httpServer.Addr).Msg("ludex serving")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	logging.Info().Msg("ludex stopped")
	return nil
}
