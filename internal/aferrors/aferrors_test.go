package aferrors

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"lowercase no period", errors.New("tool missing"), "Tool missing."},
		{"already punctuated", errors.New("already done!"), "Already done!"},
		{"wrapped", Wrap(KindStepFailed, "configure step failed", errors.New("exit status 1")), "Configure step failed: exit status 1."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.err); got != tc.want {
				t.Errorf("Normalize(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorIsKind(t *testing.T) {
	err := Wrap(KindToolMissing, "gcc not found", errors.New("exec: not found"))
	if !errors.Is(err, New(KindToolMissing, "")) {
		t.Fatalf("expected errors.Is to match on Kind")
	}
	if errors.Is(err, New(KindUnknown, "")) {
		t.Fatalf("expected errors.Is to not match differing Kind")
	}
}

func TestAsExitEarly(t *testing.T) {
	var err error = &ExitEarly{ExitCode: 0, Reason: "clean requested"}
	ee, ok := AsExitEarly(err)
	if !ok || ee.ExitCode != 0 {
		t.Fatalf("expected ExitEarly to be extracted, got %v ok=%v", ee, ok)
	}
	if _, ok := AsExitEarly(errors.New("plain")); ok {
		t.Fatalf("expected plain error to not be ExitEarly")
	}
}
