// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeServer struct {
	listenErr   error
	shutdownErr error
	shutdowns   chan struct{}
	block       chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		shutdowns: make(chan struct{}, 1),
		block:     make(chan struct{}),
	}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.block
	return nil
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.shutdowns <- struct{}{}
	close(f.block)
	return f.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := newFakeServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil on graceful shutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	select {
	case <-server.shutdowns:
	default:
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServiceListenFailure(t *testing.T) {
	server := newFakeServer()
	server.listenErr = errors.New("port in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
}

func TestRunnerServicePropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := NewRunnerService("crashy", func(ctx context.Context) error { return boom })

	if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve() = %v, want boom", err)
	}
	if svc.String() != "crashy" {
		t.Errorf("String() = %q, want crashy", svc.String())
	}
}

func TestRunnerServiceCleanStopOnCancel(t *testing.T) {
	svc := NewRunnerService("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			t.Errorf("Serve() leaked context.Canceled: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
