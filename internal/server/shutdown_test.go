package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"sales-dashboard/internal/config"
)

func testGracefulServer(t *testing.T) (*GracefulServer, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})}
	cfg := &config.Config{Server: config.ServerConfig{ShutdownTimeout: 5 * time.Second}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGracefulServer(srv, logger, cfg), ln
}

func serveInBackground(gs *GracefulServer, ln net.Listener) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()
	return cancel, done
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestGracefulServer_HooksRunAfterServerStops(t *testing.T) {
	gs, ln := testGracefulServer(t)
	addr := ln.Addr().String()

	var (
		mu      sync.Mutex
		dialErr error
		ran     bool
	)
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if conn != nil {
			conn.Close()
		}
		mu.Lock()
		dialErr, ran = err, true
		mu.Unlock()
		return nil
	})

	cancel, done := serveInBackground(gs, ln)

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("server should be serving: %v", err)
	}
	resp.Body.Close()

	cancel()
	if err := waitServe(t, done); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !ran {
		t.Fatal("shutdown hook did not run")
	}
	if dialErr == nil {
		t.Error("hook ran while the listener was still accepting connections")
	}
}

func TestGracefulServer_HookError(t *testing.T) {
	gs, ln := testGracefulServer(t)
	errFlush := errors.New("flush failed")
	gs.RegisterShutdownHook(func(context.Context) error { return errFlush })
	gs.RegisterShutdownHook(func(context.Context) error { return nil })

	cancel, done := serveInBackground(gs, ln)
	cancel()

	if err := waitServe(t, done); !errors.Is(err, errFlush) {
		t.Errorf("Serve() error = %v, want the hook error", err)
	}
}

func TestGracefulServer_ListenerFailure(t *testing.T) {
	gs, ln := testGracefulServer(t)
	ln.Close()

	hookRan := make(chan struct{}, 1)
	gs.RegisterShutdownHook(func(context.Context) error {
		hookRan <- struct{}{}
		return nil
	})

	cancel, done := serveInBackground(gs, ln)
	defer cancel()

	if err := waitServe(t, done); err == nil {
		t.Error("Serve() on a closed listener should fail")
	}
	select {
	case <-hookRan:
	default:
		t.Error("hooks should still run when the listener fails")
	}
}
