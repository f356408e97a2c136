package watchdog

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autoforge-project/autoforge/internal/env"
)

func newTestWatchdog(t *testing.T) (*Watchdog, *int32) {
	t.Helper()
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	w := New(e)
	var exited int32
	w.exit = func(code int) { atomic.StoreInt32(&exited, 1) }
	w.kill = func(pid int) {}
	return w, &exited
}

func TestWatchdogFiresAfterTimeout(t *testing.T) {
	w, exited := newTestWatchdog(t)
	w.Start(20 * time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(exited) != 1 {
		t.Fatal("expected watchdog to fire after timeout elapsed")
	}
}

func TestWatchdogRefreshPreventsFiring(t *testing.T) {
	w, exited := newTestWatchdog(t)
	w.Start(60 * time.Millisecond)
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		w.Refresh()
	}
	if atomic.LoadInt32(exited) != 0 {
		t.Fatal("expected refresh to keep the watchdog from firing")
	}
}

func TestWatchdogStopPreventsFiring(t *testing.T) {
	w, exited := newTestWatchdog(t)
	w.Start(20 * time.Millisecond)
	w.Stop()
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(exited) != 0 {
		t.Fatal("expected stop to prevent firing")
	}
}

func TestWatchdogRefreshBeforeStartIsNoop(t *testing.T) {
	w, exited := newTestWatchdog(t)
	w.Refresh()
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(exited) != 0 {
		t.Fatal("refresh before start should not activate the watchdog")
	}
}
