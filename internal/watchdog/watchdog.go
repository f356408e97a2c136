// Package watchdog implements the Watchdog (C10): a single liveness monitor
// that forcibly terminates the process if it is not refreshed within its
// timeout, grounded on the distilled tool's CoreWatchdog background-thread
// design (here, a goroutine driven by a timer instead of a polling loop).
package watchdog

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/autoforge-project/autoforge/internal/env"
)

const defaultTimeout = 10 * time.Second

// exitFunc and killFunc are swappable so tests can observe termination
// without actually killing the test process.
type exitFunc func(code int)
type killFunc func(pid int)

// Watchdog is a single-instance liveness monitor. Construct exactly one per
// process via New; a second instantiation is a programming error, matching
// spec.md §5's "double initialization is a programming error" policy for
// process-wide singletons — enforced here by the caller (cmd/autoforge)
// holding the only reference, not by an internal guard.
type Watchdog struct {
	env     *env.Env
	mu      sync.Mutex
	timeout time.Duration
	active  bool
	timer   *time.Timer
	stopCh  chan struct{}

	exit exitFunc
	kill killFunc
}

// New constructs a Watchdog bound to e, inactive until Start is called.
func New(e *env.Env) *Watchdog {
	return &Watchdog{
		env:     e,
		timeout: defaultTimeout,
		stopCh:  make(chan struct{}),
		exit:    os.Exit,
		kill:    func(pid int) { _ = syscall.Kill(pid, syscall.SIGKILL) },
	}
}

// Start activates the watchdog with the given timeout (or the default, or
// the previously configured timeout if timeout <= 0). Calling Start again
// while active updates the timeout and restarts the countdown.
func (w *Watchdog) Start(timeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timeout > 0 {
		w.timeout = timeout
	}
	w.active = true
	w.resetTimerLocked()
}

// Refresh resets the countdown. It is a no-op if the watchdog is inactive
// and is idempotent — calling it repeatedly before the timeout elapses
// simply keeps pushing the deadline out.
func (w *Watchdog) Refresh() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	w.resetTimerLocked()
}

// Stop deactivates the watchdog; no further termination will occur until
// Start is called again.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = false
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watchdog) resetTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, w.fire)
}

func (w *Watchdog) fire() {
	w.mu.Lock()
	active := w.active
	timeout := w.timeout
	w.mu.Unlock()
	if !active {
		return
	}

	fmt.Fprintf(os.Stderr, "\n\nCritical: AutoForge became unresponsive after %s and will be terminated.\n", timeout)
	w.env.Logger.Error("watchdog triggered forced termination", "timeout", timeout)

	pid := os.Getpid()
	done := make(chan struct{})
	go func() {
		w.exit(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		fmt.Fprintln(os.Stderr, "Error: Graceful termination failed, forcing SIGKILL.")
		w.kill(pid)
	}
}
