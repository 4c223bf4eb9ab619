// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package ctlsock

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/haiyewei/tgForwardbot/lib/codec"
	"github.com/haiyewei/tgForwardbot/lib/testutil"
)

// startServer runs a server on a temp socket and returns the socket
// path. The server is shut down when the test ends.
func startServer(t *testing.T, register func(*Server)) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "ctl.sock")
	server := NewServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "server did not shut down")
	})

	// Wait for the socket to appear.
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return socketPath
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never started listening: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerDispatch(t *testing.T) {
	type echoRequest struct {
		Action string `cbor:"action"`
		Text   string `cbor:"text"`
	}

	socketPath := startServer(t, func(s *Server) {
		s.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
			var req echoRequest
			if err := codec.Unmarshal(raw, &req); err != nil {
				return nil, err
			}
			return map[string]string{"text": req.Text}, nil
		})
		s.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
			return nil, fmt.Errorf("deliberate failure")
		})
		s.Handle("empty", func(ctx context.Context, raw []byte) (any, error) {
			return nil, nil
		})
	})

	ctx := context.Background()

	t.Run("success with data", func(t *testing.T) {
		var result struct {
			Text string `cbor:"text"`
		}
		err := Call(ctx, socketPath, echoRequest{Action: "echo", Text: "hello"}, &result)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if result.Text != "hello" {
			t.Errorf("Text = %q, want %q", result.Text, "hello")
		}
	})

	t.Run("handler error", func(t *testing.T) {
		err := Call(ctx, socketPath, map[string]string{"action": "fail"}, nil)
		if err == nil {
			t.Fatal("expected error from failing handler")
		}
	})

	t.Run("success without data", func(t *testing.T) {
		if err := Call(ctx, socketPath, map[string]string{"action": "empty"}, nil); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		err := Call(ctx, socketPath, map[string]string{"action": "nonexistent"}, nil)
		if err == nil {
			t.Fatal("expected error for unknown action")
		}
	})

	t.Run("missing action", func(t *testing.T) {
		err := Call(ctx, socketPath, map[string]string{"other": "field"}, nil)
		if err == nil {
			t.Fatal("expected error for missing action field")
		}
	})
}

func TestServerReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ctl.sock")

	// Leave a stale socket file behind, as after a crash.
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("creating stale socket: %v", err)
	}
	listener.Close()

	server := NewServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		err := Call(ctx, socketPath, map[string]string{"action": "ping"}, nil)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became reachable: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "server did not shut down")
}
