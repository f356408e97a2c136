// Package toolchain implements the Toolchain Resolver (C6): it resolves
// required-tool paths (bare executable, SSH-hosted, or OCI image
// reference) and validates their versions against declared constraints.
package toolchain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// AcceptedOperators lists the version-constraint operators recognized by
// ParseConstraint, ordered so longer operators are matched before their
// prefixes (">=" before ">", "<=" before "<").
var AcceptedOperators = []string{">=", ">", "==", "<=", "<"}

// Constraint is a parsed version expression: an operator and the version it
// compares against.
type Constraint struct {
	Operator string
	Version  string
}

var leadingDigit = regexp.MustCompile(`^\d`)
var nonDigit = regexp.MustCompile(`[^0-9]`)

// ParseConstraint parses an expression like ">=3.20", "==1.2.3", or a bare
// "3.20" (which defaults to "=="), matching the distilled tool's
// _parse_version_info semantics.
func ParseConstraint(expr string) (Constraint, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Constraint{}, aferrors.New(aferrors.KindVersionUnparseable, "empty version constraint")
	}
	if leadingDigit.MatchString(expr) {
		expr = "==" + expr
	}

	var op, rest string
	for _, candidate := range AcceptedOperators {
		if strings.HasPrefix(expr, candidate) {
			op = candidate
			rest = strings.TrimSpace(expr[len(candidate):])
			break
		}
	}
	if op == "" {
		return Constraint{}, aferrors.New(aferrors.KindVersionUnparseable, fmt.Sprintf("unsupported version comparison operator in %q", expr))
	}

	var cleanedParts []string
	for _, part := range strings.Split(rest, ".") {
		cleaned := nonDigit.ReplaceAllString(part, "")
		if cleaned != "" {
			cleanedParts = append(cleanedParts, cleaned)
		}
	}
	if len(cleanedParts) == 0 {
		return Constraint{}, aferrors.New(aferrors.KindVersionUnparseable, fmt.Sprintf("version could not be parsed from %q", expr))
	}
	return Constraint{Operator: op, Version: strings.Join(cleanedParts, ".")}, nil
}

// versionPatterns are tried in order, from most specific to most general,
// to pull a best-effort version number out of arbitrary command output.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+\.\d+\.\d+[\w.-]*)`),
	regexp.MustCompile(`(?:[Vv]ersion[:\s]?|v)(\d+\.\d+\.\d+[\w.-]*)`),
	regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?:[Vv]ersion[:\s]?|v)(\d+\.\d+[\w.-]*)`),
	regexp.MustCompile(`(\d+\.\d+)`),
	regexp.MustCompile(`(?:[Vv]ersion[:\s]?|v)(\d+[\w.-]*)`),
	regexp.MustCompile(`(?:[Vv]ersion\s*|release\s*|[Rr]evision\s*|[Bb]uild\s*|[(\s,])(\d+)(?:[)\s,]|$)`),
}

// ExtractVersion pulls the first plausible version number out of text,
// trying progressively looser patterns, mirroring the distilled tool's
// tiered best-effort extractor.
func ExtractVersion(text string) (string, bool) {
	for _, pattern := range versionPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := m[0]
		if len(m) > 1 && m[1] != "" {
			v = m[1]
		}
		return strings.Trim(v, ".-"), true
	}
	return "", false
}

func toTuple(version string, maxParts int) ([]int, error) {
	digits := regexp.MustCompile(`\d+`).FindAllString(version, -1)
	if len(digits) == 0 {
		return nil, aferrors.New(aferrors.KindVersionUnparseable, fmt.Sprintf("no numeric components in version %q", version))
	}
	if len(digits) > maxParts {
		digits = digits[:maxParts]
	}
	out := make([]int, len(digits))
	for i, d := range digits {
		n, err := strconv.Atoi(d)
		if err != nil {
			return nil, aferrors.Wrap(aferrors.KindVersionUnparseable, fmt.Sprintf("parsing version component %q", d), err)
		}
		out[i] = n
	}
	return out, nil
}

func compareTuples(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Compare checks whether detected (raw command output) satisfies the
// expected constraint expression, returning (satisfied, extractedDetected).
func Compare(detected, expected string) (bool, string, error) {
	extractedDetected, ok := ExtractVersion(detected)
	if !ok {
		return false, "", aferrors.New(aferrors.KindVersionUnparseable, fmt.Sprintf("could not extract a version from %q", detected))
	}
	detectedTuple, err := toTuple(extractedDetected, 3)
	if err != nil {
		return false, "", err
	}

	constraint, err := ParseConstraint(expected)
	if err != nil {
		return false, "", err
	}
	expectedTuple, err := toTuple(constraint.Version, 3)
	if err != nil {
		return false, "", err
	}

	cmp := compareTuples(detectedTuple, expectedTuple)
	var satisfied bool
	switch constraint.Operator {
	case ">=":
		satisfied = cmp >= 0
	case ">":
		satisfied = cmp > 0
	case "==":
		satisfied = cmp == 0
	case "<":
		satisfied = cmp < 0
	case "<=":
		satisfied = cmp <= 0
	default:
		return false, "", aferrors.New(aferrors.KindVersionUnparseable, fmt.Sprintf("unsupported operator %q", constraint.Operator))
	}

	parts := make([]string, len(detectedTuple))
	for i, n := range detectedTuple {
		parts[i] = strconv.Itoa(n)
	}
	return satisfied, strings.Join(parts, "."), nil
}
