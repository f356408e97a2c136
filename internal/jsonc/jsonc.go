// Package jsonc preprocesses JSON-with-comments configuration files: it
// strips // and /* */ comments and trailing commas while leaving quoted
// strings untouched, then hands the cleaned text to encoding/json.
package jsonc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// commentOrString matches a quoted string, a line comment, or a block
// comment. Quoted strings are passed through verbatim by the replacer;
// everything else found by this pattern is comment text and is dropped.
var commentOrString = regexp.MustCompile(`(?s)"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'|//[^\n]*|/\*.*?\*/`)

// tripleQuoted matches '''...'''/"""...""" spans, treated as comments outside
// JSON values (matching the distilled tool's triple-quote comment
// convention), and is stripped before commentOrString runs so its own
// single/double-quote alternatives don't misparse the triple-quote markers.
var tripleQuoted = regexp.MustCompile(`(?s)'''.*?'''|""".*?"""`)

// trailingComma matches a quoted string or a comma followed only by
// whitespace and a closing bracket/brace. Strings are passed through
// verbatim; for the comma match only the comma itself is dropped.
var trailingComma = regexp.MustCompile(`"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'|,\s*[\]}]`)

var blankRuns = regexp.MustCompile(`\n\s*\n`)

// multilineNewlines normalizes the raw line breaks that can appear inside a
// multi-line double-quoted string literal into the two-character `\n` escape
// encoding/json requires, the same normalization the distilled tool applies
// before parsing.
var multilineNewlines = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

// Processor preprocesses JSONC files into generic maps. It holds no state
// and is safe for concurrent use.
type Processor struct{}

// New constructs a Processor.
func New() *Processor { return &Processor{} }

// stripComments removes comments (including triple-quoted spans) while
// preserving quoted-string contents, normalizing any raw newlines found
// inside a multi-line double-quoted string so the result stays valid JSON.
func stripComments(text string) string {
	text = tripleQuoted.ReplaceAllString(text, "")
	cleaned := commentOrString.ReplaceAllStringFunc(text, func(m string) string {
		switch {
		case len(m) > 0 && m[0] == '"':
			return normalizeMultilineString(m)
		case len(m) > 0 && m[0] == '\'':
			return m
		default:
			return ""
		}
	})
	cleaned = trailingComma.ReplaceAllStringFunc(cleaned, func(m string) string {
		if m[0] == ',' {
			return m[1:]
		}
		return m
	})
	cleaned = blankRuns.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}

// normalizeMultilineString escapes raw newlines inside a double-quoted
// string span so a value that spans physical lines in the source file still
// decodes as a single JSON string instead of failing encoding/json.Unmarshal
// on an unescaped control character.
func normalizeMultilineString(m string) string {
	if !strings.ContainsAny(m, "\n\r") {
		return m
	}
	return multilineNewlines.Replace(m)
}

// resolvePath finds the actual file backing name: if name itself (with any
// extension) doesn't exist, it tries the .json and .jsonc siblings in that
// order, matching the distilled tool's json<->jsonc fallback behavior.
func resolvePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for _, candidate := range []string{name, base + ".json", base + ".jsonc"} {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", aferrors.New(aferrors.KindParseError, fmt.Sprintf("neither .json nor .jsonc file could be found for %q", name))
}

// removeFormatterHints strips PyCharm "@formatter:off/on" string values the
// distilled tool also filtered out, so formatter directives left in a JSONC
// file by an editor don't leak into the parsed document.
func removeFormatterHints(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && strings.Contains(s, "@formatter:") {
				continue
			}
			out[k] = removeFormatterHints(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = removeFormatterHints(val)
		}
		return out
	default:
		return v
	}
}

// Preprocess reads fileName (trying .json then .jsonc), strips comments and
// trailing commas, and unmarshals the result into a generic map. On a JSON
// syntax error it wraps a ParseError annotated with surrounding line context.
func (p *Processor) Preprocess(fileName string) (map[string]any, error) {
	resolved, err := resolvePath(fileName)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, aferrors.Wrap(aferrors.KindParseError, fmt.Sprintf("reading %q", resolved), err)
	}

	cleaned := stripComments(string(raw))

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, aferrors.Wrap(aferrors.KindParseError, describeSyntaxError(resolved, cleaned, err), err)
	}

	return removeFormatterHints(data).(map[string]any), nil
}

// describeSyntaxError renders a context window of up to five lines on either
// side of the error line,
// matching the distilled tool's debug rendering (minus terminal coloring,
// which is out of scope for this repository).
func describeSyntaxError(fileName, cleaned string, parseErr error) string {
	lineNo := lineNumberForOffset(cleaned, syntaxErrorOffset(parseErr))
	if lineNo <= 0 {
		return fmt.Sprintf("syntax error in %q", filepath.Base(fileName))
	}
	lines := strings.Split(cleaned, "\n")
	start := lineNo - 5
	if start < 1 {
		start = 1
	}
	end := lineNo + 5
	if end > len(lines) {
		end = len(lines)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "syntax error in %q at line %d", filepath.Base(fileName), lineNo)
	for i := start; i <= end; i++ {
		if i-1 < 0 || i-1 >= len(lines) {
			continue
		}
		marker := "   "
		if i == lineNo {
			marker = ">> "
		}
		fmt.Fprintf(&b, "\n%s%3d: %s", marker, i, lines[i-1])
	}
	return b.String()
}

// syntaxErrorOffset extracts the byte offset from the two encoding/json
// error types that carry one; Go reports errors by byte offset rather than
// line number, unlike the distilled tool's json.JSONDecodeError.
func syntaxErrorOffset(err error) int64 {
	switch e := err.(type) {
	case *json.SyntaxError:
		return e.Offset
	case *json.UnmarshalTypeError:
		return e.Offset
	default:
		return -1
	}
}

func lineNumberForOffset(text string, offset int64) int {
	if offset < 0 {
		return 0
	}
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	return strings.Count(text[:offset], "\n") + 1
}
