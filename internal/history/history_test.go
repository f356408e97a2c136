package history

import (
	"path/filepath"
	"testing"

	"github.com/autoforge-project/autoforge/internal/builder"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestStartAndFinishRun(t *testing.T) {
	l := newTestLedger(t)

	id, err := l.StartRun("demo", "fw", "release", "brave-falcon")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if err := l.FinishRun(id, builder.Result{FinalState: builder.StateDoneBuild, ReturnCode: 0}, nil, 1234); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := l.Show(id)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if run.FinalState != string(builder.StateDoneBuild) {
		t.Errorf("FinalState = %q, want DONE_BUILD", run.FinalState)
	}
	if run.DurationMs == nil || *run.DurationMs != 1234 {
		t.Errorf("DurationMs = %v, want 1234", run.DurationMs)
	}
}

func TestRecordStepAndList(t *testing.T) {
	l := newTestLedger(t)
	id, err := l.StartRun("demo", "fw", "debug", "quiet-otter")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := l.RecordStep(id, "CONFIGURE", builder.StateConfigure, 0, 42); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}

	runs, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("List() len = %d, want 1", len(runs))
	}
	if runs[0].ID != id {
		t.Errorf("ID = %q, want %q", runs[0].ID, id)
	}
}

func TestShowUnknownRun(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Show("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}
