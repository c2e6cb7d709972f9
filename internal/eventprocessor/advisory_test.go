// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mvidigal/ludex/internal/config"
)

type fakeStreamGetter struct {
	msgs map[uint64]*jetstream.RawStreamMsg
	err  error
}

func (f *fakeStreamGetter) GetMsg(ctx context.Context, seq uint64, opts ...jetstream.GetMsgOpt) (*jetstream.RawStreamMsg, error) {
	if f.err != nil {
		return nil, f.err
	}
	msg, ok := f.msgs[seq]
	if !ok {
		return nil, jetstream.ErrMsgNotFound
	}
	return msg, nil
}

func advisoryJSON(t *testing.T, seq uint64, deliveries int64) []byte {
	t.Helper()
	return []byte(fmt.Sprintf(
		`{"stream":"EVALUATIONS","consumer":"ledger-consumer","stream_seq":%d,"deliveries":%d}`,
		seq, deliveries))
}

func newTestWatcher(stream StreamMessageGetter, dlq *DLQStore) *MaxDeliveriesWatcher {
	cfg := &config.NATSConfig{StreamName: "EVALUATIONS", DurableName: "ledger-consumer"}
	return NewMaxDeliveriesWatcher(nil, stream, dlq, cfg)
}

func TestWatcherDeadLettersExhaustedEvent(t *testing.T) {
	header := natsgo.Header{}
	header.Set(natsgo.MsgIdHdr, "e-exhausted")

	stream := &fakeStreamGetter{msgs: map[uint64]*jetstream.RawStreamMsg{
		42: {
			Subject:  "evaluations.game",
			Sequence: 42,
			Header:   header,
			Data:     []byte(`{"user_id":1,"item_id":2,"evaluation":"positive"}`),
			Time:     time.Now(),
		},
	}}
	dlq := newTestDLQ(t, time.Hour)
	watcher := newTestWatcher(stream, dlq)

	if err := watcher.handleAdvisory(context.Background(), advisoryJSON(t, 42, 5)); err != nil {
		t.Fatalf("handleAdvisory() error = %v", err)
	}

	entry, err := dlq.Get(context.Background(), "e-exhausted")
	if err != nil {
		t.Fatalf("dead-letter entry missing: %v", err)
	}
	if !strings.Contains(entry.Reason, "5 deliveries") {
		t.Errorf("Reason = %q, want delivery count mentioned", entry.Reason)
	}
	if string(entry.Payload) != `{"user_id":1,"item_id":2,"evaluation":"positive"}` {
		t.Errorf("Payload = %s, want original event bytes", entry.Payload)
	}
}

func TestWatcherFallsBackToSequenceKey(t *testing.T) {
	stream := &fakeStreamGetter{msgs: map[uint64]*jetstream.RawStreamMsg{
		7: {Subject: "evaluations.game", Sequence: 7, Data: []byte(`{}`)},
	}}
	dlq := newTestDLQ(t, time.Hour)
	watcher := newTestWatcher(stream, dlq)

	if err := watcher.handleAdvisory(context.Background(), advisoryJSON(t, 7, 3)); err != nil {
		t.Fatalf("handleAdvisory() error = %v", err)
	}
	if _, err := dlq.Get(context.Background(), "seq-7"); err != nil {
		t.Errorf("dead-letter entry under sequence key missing: %v", err)
	}
}

func TestWatcherPropagatesFetchFailure(t *testing.T) {
	stream := &fakeStreamGetter{err: errors.New("stream offline")}
	dlq := newTestDLQ(t, time.Hour)
	watcher := newTestWatcher(stream, dlq)

	if err := watcher.handleAdvisory(context.Background(), advisoryJSON(t, 1, 5)); err == nil {
		t.Error("handleAdvisory() = nil, want fetch error")
	}

	n, err := dlq.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("dead-letter count = %d, want 0 after failed fetch", n)
	}
}

func TestWatcherRejectsMalformedAdvisory(t *testing.T) {
	watcher := newTestWatcher(&fakeStreamGetter{}, newTestDLQ(t, time.Hour))

	if err := watcher.handleAdvisory(context.Background(), []byte("{not json")); err == nil {
		t.Error("handleAdvisory() = nil, want decode error")
	}
}

func TestWatcherAdvisorySubjectCoversAllConsumers(t *testing.T) {
	watcher := newTestWatcher(&fakeStreamGetter{}, nil)

	want := "$JS.EVENT.ADVISORY.CONSUMER.MAX_DELIVERIES.EVALUATIONS.*"
	if got := watcher.advisorySubject(); got != want {
		t.Errorf("advisorySubject() = %q, want %q", got, want)
	}
}
