package variables

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autoforge-project/autoforge/internal/env"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	e := env.New(slog.New(slog.DiscardHandler), t.TempDir())
	return New(e)
}

func TestAddAndGet(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add("BOARD", "esp32", AddOptions{Description: "target board"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := s.Get("BOARD")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "esp32" {
		t.Errorf("Get = %q, want esp32", got)
	}
}

func TestAddDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add("BOARD", "esp32", AddOptions{}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := s.Add("BOARD", "rp2040", AddOptions{})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestReferenceExpansionFixedPoint(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add("ROOT", "/srv/proj", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("BUILD_DIR", "<$ref_ROOT>/build", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("ARTIFACT_DIR", "<$ref_BUILD_DIR>/out", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("ARTIFACT_DIR")
	if err != nil {
		t.Fatal(err)
	}
	want := "/srv/proj/build/out"
	if got != want {
		t.Errorf("ARTIFACT_DIR = %q, want %q", got, want)
	}
}

func TestReferenceUnresolved(t *testing.T) {
	s := newTestStore(t)
	err := s.Add("X", "<$ref_MISSING>/y", AddOptions{})
	if err == nil {
		t.Fatal("expected unresolved reference error")
	}
	if !strings.Contains(err.Error(), "MISSING") {
		t.Errorf("error = %v, want mention of MISSING", err)
	}
}

func TestEnvVarExpansion(t *testing.T) {
	s := newTestStore(t)
	os.Setenv("AF_TEST_HOME", "/opt/af")
	defer os.Unsetenv("AF_TEST_HOME")
	if err := s.Add("HOME_DIR", "$AF_TEST_HOME/bin", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("HOME_DIR")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/opt/af/bin" {
		t.Errorf("HOME_DIR = %q, want /opt/af/bin", got)
	}
}

func TestUnresolvedEnvVarRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Add("BAD", "$AF_TOTALLY_UNDEFINED_VAR/bin", AddOptions{})
	if err == nil {
		t.Fatal("expected unresolved env var error")
	}
}

func TestExpandTextRejectsUnsetEnvTokenForms(t *testing.T) {
	s := newTestStore(t)
	os.Unsetenv("AF_TOTALLY_UNDEFINED_VAR")
	cases := []string{
		"$AF_TOTALLY_UNDEFINED_VAR/bin",
		"${AF_TOTALLY_UNDEFINED_VAR}/bin",
		"prefix-$AF_TOTALLY_UNDEFINED_VAR",
	}
	for _, in := range cases {
		if _, err := s.ExpandText(in); err == nil {
			t.Errorf("ExpandText(%q): expected unresolved env var error, got nil (os.ExpandEnv must not silently swallow it)", in)
		}
	}
}

func TestPathMustExist(t *testing.T) {
	s := newTestStore(t)
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	mustExist := true
	err := s.Add("PATHVAR", missing, AddOptions{PathMustExist: &mustExist})
	if err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestCreatePathIfNotExist(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(t.TempDir(), "new", "nested")
	create := true
	if err := s.Add("PATHVAR", dir, AddOptions{CreatePathIfNotExist: &create}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected path %q to be created", dir)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add("TMP", "/tmp", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("TMP"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get("TMP"); err == nil {
		t.Fatal("expected variable to be gone")
	}
}

func TestExportRedactsSecrets(t *testing.T) {
	s := newTestStore(t)
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	s.WithSecretKey(key)
	if err := s.Add("API_TOKEN", "sekrit", AddOptions{IsSecret: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("BOARD", "esp32", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	snaps := s.Export()
	var tokenSnap, boardSnap *Snapshot
	for i := range snaps {
		switch snaps[i].Name {
		case "API_TOKEN":
			tokenSnap = &snaps[i]
		case "BOARD":
			boardSnap = &snaps[i]
		}
	}
	if tokenSnap == nil || boardSnap == nil {
		t.Fatal("expected both variables in export")
	}
	if tokenSnap.Value == "sekrit" {
		t.Error("expected secret value to not be exported in plaintext")
	}
	if boardSnap.Value != "esp32" {
		t.Errorf("expected non-secret value untouched, got %q", boardSnap.Value)
	}

	plain, err := s.Unseal(tokenSnap.Value)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if plain != "sekrit" {
		t.Errorf("round-tripped secret = %q, want sekrit", plain)
	}
}

func TestConstructNamePrefixAndCase(t *testing.T) {
	s := newTestStore(t)
	s.Configure(true, "widget", true, Defaults{})
	if err := s.Add("board", "esp32", AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("WIDGET_BOARD"); err != nil {
		t.Errorf("expected prefixed+uppercased name WIDGET_BOARD, got error: %v", err)
	}
}
