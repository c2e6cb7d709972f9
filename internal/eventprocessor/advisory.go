// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mvidigal/ludex/internal/config"
	"github.com/mvidigal/ludex/internal/logging"
	"github.com/mvidigal/ludex/internal/metrics"
)

// maxDeliveriesAdvisory is the body of the JetStream advisory emitted
// when a consumer stops redelivering a message.
type maxDeliveriesAdvisory struct {
	Stream     string `json:"stream"`
	Consumer   string `json:"consumer"`
	StreamSeq  uint64 `json:"stream_seq"`
	Deliveries int64  `json:"deliveries"`
}

// StreamMessageGetter fetches a raw stream message by sequence.
// jetstream.Stream satisfies it.
type StreamMessageGetter interface {
	GetMsg(ctx context.Context, seq uint64, opts ...jetstream.GetMsgOpt) (*jetstream.RawStreamMsg, error)
}

// MaxDeliveriesWatcher completes the retry contract for transient
// failures: once JetStream exhausts a message's redelivery budget it
// emits a MAX_DELIVERIES advisory and stops delivering, so without the
// watcher the event would vanish. The watcher fetches the original
// payload by stream sequence and records it in the dead-letter store.
type MaxDeliveriesWatcher struct {
	nc     *natsgo.Conn
	stream StreamMessageGetter
	dlq    *DLQStore
	cfg    *config.NATSConfig
}

// NewMaxDeliveriesWatcher wires the watcher over a live connection.
func NewMaxDeliveriesWatcher(nc *natsgo.Conn, stream StreamMessageGetter, dlq *DLQStore, cfg *config.NATSConfig) *MaxDeliveriesWatcher {
	return &MaxDeliveriesWatcher{nc: nc, stream: stream, dlq: dlq, cfg: cfg}
}

// advisorySubject matches any consumer of the evaluations stream; the
// durable name Watermill derives stays out of the contract.
func (w *MaxDeliveriesWatcher) advisorySubject() string {
	return fmt.Sprintf("$JS.EVENT.ADVISORY.CONSUMER.MAX_DELIVERIES.%s.*", w.cfg.StreamName)
}

// Run listens for advisories until the context is cancelled.
func (w *MaxDeliveriesWatcher) Run(ctx context.Context) error {
	ch := make(chan *natsgo.Msg, 64)
	sub, err := w.nc.ChanSubscribe(w.advisorySubject(), ch)
	if err != nil {
		return fmt.Errorf("subscribe to max-deliveries advisories: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	logging.Info().
		Str("subject", w.advisorySubject()).
		Msg("max-deliveries watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := w.handleAdvisory(ctx, msg.Data); err != nil {
				logging.Error().Err(err).Msg("max-deliveries advisory handling failed")
			}
		}
	}
}

func (w *MaxDeliveriesWatcher) handleAdvisory(ctx context.Context, data []byte) error {
	var adv maxDeliveriesAdvisory
	if err := json.Unmarshal(data, &adv); err != nil {
		return fmt.Errorf("decode max-deliveries advisory: %w", err)
	}

	raw, err := w.stream.GetMsg(ctx, adv.StreamSeq)
	if err != nil {
		return fmt.Errorf("fetch stream message %d: %w", adv.StreamSeq, err)
	}

	eventID := raw.Header.Get(natsgo.MsgIdHdr)
	if eventID == "" {
		eventID = fmt.Sprintf("seq-%d", adv.StreamSeq)
	}

	payload := make([]byte, len(raw.Data))
	copy(payload, raw.Data)

	entry := &DLQEntry{
		EventID: eventID,
		Payload: payload,
		Reason:  fmt.Sprintf("redelivery budget exhausted after %d deliveries", adv.Deliveries),
	}
	if err := w.dlq.Add(ctx, entry); err != nil {
		return fmt.Errorf("dead-letter exhausted event %s: %w", eventID, err)
	}

	metrics.RecordEventOutcome("exhausted")
	logging.Warn().
		Str("event_id", eventID).
		Uint64("stream_seq", adv.StreamSeq).
		Int64("deliveries", adv.Deliveries).
		Msg("exhausted event routed to dead-letter store")
	return nil
}
