package shell

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/autoforge-project/autoforge/internal/env"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	return New(e)
}

func TestRunCapturesStdout(t *testing.T) {
	x := newTestExecutor(t)
	var out bytes.Buffer
	res, err := x.Run(context.Background(), Request{
		Args: []string{"/bin/echo", "hello"},
		Out:  &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ReturnCode != 0 {
		t.Errorf("ReturnCode = %d, want 0", res.ReturnCode)
	}
	if res.StdoutCaptured != "hello\n" {
		t.Errorf("StdoutCaptured = %q, want %q", res.StdoutCaptured, "hello\n")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	x := newTestExecutor(t)
	res, err := x.Run(context.Background(), Request{
		Args: []string{"/bin/sh", "-c", "exit 7"},
		Out:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ReturnCode != 7 {
		t.Errorf("ReturnCode = %d, want 7", res.ReturnCode)
	}
}

func TestRunTimeout(t *testing.T) {
	x := newTestExecutor(t)
	_, err := x.Run(context.Background(), Request{
		Args:    []string{"/bin/sh", "-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
		Out:     &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected TimedOut error")
	}
}

func TestRunCancellation(t *testing.T) {
	x := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := x.Run(ctx, Request{
		Args: []string{"/bin/sh", "-c", "sleep 5"},
		Out:  &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected Cancelled error")
	}
}

func TestRunMissingCommandAndArgs(t *testing.T) {
	x := newTestExecutor(t)
	_, err := x.Run(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestRunShellStringCommand(t *testing.T) {
	x := newTestExecutor(t)
	var out bytes.Buffer
	res, err := x.Run(context.Background(), Request{
		Command: "echo from-shell",
		Out:     &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StdoutCaptured != "from-shell\n" {
		t.Errorf("StdoutCaptured = %q", res.StdoutCaptured)
	}
}
