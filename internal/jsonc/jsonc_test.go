package jsonc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStripComments(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "line comment",
			in:   "{\n  \"a\": 1 // trailing\n}",
			want: "{\n  \"a\": 1 \n}",
		},
		{
			name: "block comment",
			in:   "{ /* note */ \"a\": 1 }",
			want: "{  \"a\": 1 }",
		},
		{
			name: "string with slashes preserved",
			in:   `{"path": "http://example.com"}`,
			want: `{"path": "http://example.com"}`,
		},
		{
			name: "trailing comma before brace",
			in:   "{\n  \"a\": 1,\n}",
			want: "{\n  \"a\": 1\n}",
		},
		{
			name: "trailing comma before bracket",
			in:   "[1, 2,]",
			want: "[1, 2]",
		},
		{
			name: "multiline string normalized to escaped newline",
			in:   "{\n  \"a\": \"line one\nline two\"\n}",
			want: "{\n  \"a\": \"line one\\nline two\"\n}",
		},
		{
			name: "triple double-quoted span treated as comment",
			in:   "{ \"\"\"this is a block note\nspanning lines\"\"\" \"a\": 1 }",
			want: "{  \"a\": 1 }",
		},
		{
			name: "triple single-quoted span treated as comment",
			in:   "{ '''note''' \"a\": 1 }",
			want: "{  \"a\": 1 }",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripComments(tc.in); got != tc.want {
				t.Errorf("stripComments(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPreprocessJSONCExtensionFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solution.jsonc")
	content := `{
  // a comment
  "name": "demo",
  "count": 3,
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New()
	data, err := p.Preprocess(filepath.Join(dir, "solution.json"))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if data["name"] != "demo" {
		t.Errorf("name = %v, want demo", data["name"])
	}
	if data["count"].(float64) != 3 {
		t.Errorf("count = %v, want 3", data["count"])
	}
}

func TestPreprocessMultilineStringValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solution.json")
	content := "{\n  \"description\": \"first line\nsecond line\"\n}"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New()
	data, err := p.Preprocess(path)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	want := "first line\nsecond line"
	if data["description"] != want {
		t.Errorf("description = %q, want %q", data["description"], want)
	}
}

func TestPreprocessMissingFile(t *testing.T) {
	p := New()
	if _, err := p.Preprocess(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPreprocessSyntaxErrorContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	content := "{\n  \"a\": 1\n  \"b\": 2\n}"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	p := New()
	if _, err := p.Preprocess(path); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestRemoveFormatterHints(t *testing.T) {
	in := map[string]any{
		"keep":   "value",
		"hinted": "# @formatter:off",
	}
	out := removeFormatterHints(in).(map[string]any)
	if _, ok := out["hinted"]; ok {
		t.Errorf("expected hinted key to be removed, got %v", out)
	}
	if out["keep"] != "value" {
		t.Errorf("expected keep to survive, got %v", out)
	}
}
