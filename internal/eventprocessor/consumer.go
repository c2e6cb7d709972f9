// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/database"
	"github.com/mvidigal/ludex/internal/logging"
	"github.com/mvidigal/ludex/internal/metrics"
	"github.com/mvidigal/ludex/internal/models"
)

// Ledger is the slice of the durable store the consumer needs.
type Ledger interface {
	ApplyEvaluation(ctx context.Context, userID, gameID int, eval models.Evaluation) (database.ApplyResult, error)
}

// MessageSource abstracts the queue subscription for testing.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Consumer pulls evaluation events off the queue and applies them to
// the rating ledger.
//
// Outcome contract per message:
//
//	applied (any result) -> ack
//	permanent failure    -> dead-letter + ack (drop)
//	transient failure    -> nack, JetStream redelivers up to MaxDeliver;
//	                        exhausted events are dead-lettered by
//	                        MaxDeliveriesWatcher
type Consumer struct {
	source     MessageSource
	ledger     Ledger
	dlq        *DLQStore
	serializer *Serializer
	breaker    *gobreaker.CircuitBreaker[database.ApplyResult]
	cfg        *config.ConsumerConfig
	topic      string

	// onApplied fires after each mutating ledger transition, used to
	// debounce similarity index rebuilds.
	onApplied func()
}

// NewConsumer wires the consumer. dlq may be nil to disable dead
// lettering; onApplied may be nil.
func NewConsumer(source MessageSource, ledger Ledger, dlq *DLQStore, cfg *config.ConsumerConfig, topic string, onApplied func()) *Consumer {
	breaker := gobreaker.NewCircuitBreaker[database.ApplyResult](gobreaker.Settings{
		Name: "ledger-store",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		Timeout: cfg.BreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Consumer{
		source:     source,
		ledger:     ledger,
		dlq:        dlq,
		serializer: NewSerializer(),
		breaker:    breaker,
		cfg:        cfg,
		topic:      topic,
		onApplied:  onApplied,
	}
}

// Run consumes until the context is cancelled or the subscription
// channel closes. Messages fan out over a bounded worker pool; ledger
// applies for distinct (user, game) keys run in parallel while the
// store serializes same-key applies itself.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.source.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	logging.Info().
		Str("topic", c.topic).
		Int("workers", workers).
		Msg("evaluation consumer started")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-messages:
					if !ok {
						return
					}
					c.processMessage(ctx, msg)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Consumer) processMessage(ctx context.Context, msg *message.Message) {
	start := time.Now()

	err := c.handle(ctx, msg)
	metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		msg.Ack()
		metrics.RecordEventOutcome("acked")

	case IsPermanent(err):
		// Redelivery can never fix this event: record it and drop it so
		// it stops occupying the ack window.
		c.deadLetter(ctx, msg, err)
		msg.Ack()
		metrics.RecordEventOutcome("dropped")
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("evaluation event dropped")

	default:
		msg.Nack()
		metrics.RecordEventOutcome("nacked")
		logging.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("evaluation event nacked for redelivery")
	}
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) error {
	event, err := c.serializer.Unmarshal(msg.Payload)
	if err != nil {
		return err
	}
	// External publishers may omit event_id; the delivery UUID stands in
	// for logging and dead-letter keys.
	if event.EventID == "" {
		event.EventID = msg.UUID
	}
	if err := event.Validate(); err != nil {
		return NewPermanentError("invalid evaluation event", err)
	}

	eval, err := models.ParseEvaluation(event.Evaluation)
	if err != nil {
		return NewPermanentError("invalid evaluation literal", err)
	}

	result, err := c.breaker.Execute(func() (database.ApplyResult, error) {
		applyCtx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
		defer cancel()
		return c.ledger.ApplyEvaluation(applyCtx, event.UserID, event.ItemID, eval)
	})
	if err != nil {
		return c.classifyApplyError(event, err)
	}

	logging.Debug().
		Str("event_id", event.EventID).
		Int("user_id", event.UserID).
		Int("item_id", event.ItemID).
		Str("result", string(result)).
		Msg("evaluation applied")

	if result != database.ApplyUnchanged && c.onApplied != nil {
		c.onApplied()
	}
	return nil
}

// classifyApplyError decides whether a store failure is worth retrying.
func (c *Consumer) classifyApplyError(event *EvaluationEvent, err error) error {
	switch {
	case errors.Is(err, database.ErrGameNotFound):
		return NewPermanentError(fmt.Sprintf("event %s references unknown game", event.EventID), err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return NewRetryableError("ledger store circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewRetryableError("ledger store timeout", err)
	default:
		return NewRetryableError("ledger store failure", err)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg *message.Message, cause error) {
	if c.dlq == nil {
		return
	}

	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)

	entry := &DLQEntry{
		EventID: msg.UUID,
		Payload: payload,
		Reason:  cause.Error(),
	}
	if err := c.dlq.Add(ctx, entry); err != nil {
		logging.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("failed to record dead-letter entry")
	}
}
