// Package variables implements the Variable Store: a name-sorted collection
// of configuration variables supporting <$ref_NAME> substitution, recursive
// expansion to a fixed point, environment-variable/home-directory expansion,
// path validation, and at-rest secret encryption on the export() boundary.
package variables

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/env"
)

// Variable is a single named configuration value plus the metadata that
// governs how it is validated and rendered.
type Variable struct {
	Name                  string
	BaseName              string
	Description           string
	Value                 string
	PathMustExist         bool
	CreatePathIfNotExist  bool
	IsSecret              bool
	Extras                map[string]any
}

// Defaults captures store-wide fallbacks applied when an individual
// variable doesn't specify path_must_exist/create_path_if_not_exist.
type Defaults struct {
	PathMustExist        bool
	CreatePathIfNotExist bool
}

var refPattern = regexp.MustCompile(`<\$ref_([^>]*)>`)

// envToken matches a $NAME or ${NAME} environment-variable reference.
var envToken = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// Store holds a sorted, name-indexed set of Variables. All mutating
// operations are serialized by mu; Get/Expand take a read lock so concurrent
// readers don't block each other.
type Store struct {
	env *env.Env

	mu       sync.RWMutex
	vars     []*Variable
	byName   map[string]int // name -> index into vars, rebuilt on every mutation
	defaults Defaults

	// AutoPrefix/Prefix/ForceUpperCase mirror the distilled tool's naming
	// normalization knobs, set once from a loaded solution's "variables"
	// block header.
	autoPrefix      bool
	prefix          string
	forceUpperCase  bool
	capitalizeDescr bool

	secretKey *[32]byte // set via WithSecretKey to enable encrypted export
}

// New constructs an empty Store.
func New(e *env.Env) *Store {
	return &Store{
		env:             e,
		byName:          map[string]int{},
		capitalizeDescr: true,
	}
}

// Configure sets the naming normalization knobs read from a solution's
// variables header (auto_prefix, force_upper_case_names, defaults).
func (s *Store) Configure(autoPrefix bool, projectName string, forceUpperCase bool, defaults Defaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoPrefix = autoPrefix
	s.forceUpperCase = forceUpperCase
	s.defaults = defaults
	if autoPrefix && projectName != "" {
		s.prefix = strings.ToUpper(projectName) + "_"
	}
}

func (s *Store) constructName(name string) string {
	name = strings.TrimSpace(name)
	if s.prefix != "" && !strings.HasPrefix(name, s.prefix) {
		name = s.prefix + name
	}
	if s.forceUpperCase {
		name = strings.ToUpper(name)
	}
	return name
}

func (s *Store) reindex() {
	sort.Slice(s.vars, func(i, j int) bool { return s.vars[i].Name < s.vars[j].Name })
	s.byName = make(map[string]int, len(s.vars))
	for i, v := range s.vars {
		s.byName[v.Name] = i
	}
}

// indexLocked looks up name; caller must hold at least a read lock.
func (s *Store) indexLocked(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// AddOptions carries the optional fields accepted by Add, mirroring the
// distilled tool's keyword-argument surface.
type AddOptions struct {
	Description          string
	PathMustExist        *bool
	CreatePathIfNotExist *bool
	IsSecret             bool
	Extras               map[string]any
}

// Add inserts a new variable, expanding its value immediately (so later
// variables can reference it via <$ref_NAME>) and validating/creating its
// filesystem path per opts and the store's Defaults. Returns a Duplicate
// error if the constructed name already exists.
func (s *Store) Add(name, value string, opts AddOptions) error {
	if name == "" {
		return aferrors.New(aferrors.KindParseError, "variable name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fullName := s.constructName(name)
	if _, exists := s.indexLocked(fullName); exists {
		return aferrors.New(aferrors.KindDuplicate, fmt.Sprintf("variable %q already exists", fullName))
	}

	expanded, err := s.expandValueLocked(value)
	if err != nil {
		return err
	}

	description := opts.Description
	if description == "" {
		description = "Description not provided"
	}
	if s.capitalizeDescr && description != "" {
		description = strings.ToUpper(description[:1]) + description[1:]
	}

	v := &Variable{
		Name:        fullName,
		BaseName:    strings.TrimSpace(name),
		Description: description,
		Value:       expanded,
		IsSecret:    opts.IsSecret,
		Extras:      opts.Extras,
	}

	v.CreatePathIfNotExist = s.defaults.CreatePathIfNotExist
	if opts.CreatePathIfNotExist != nil {
		v.CreatePathIfNotExist = *opts.CreatePathIfNotExist
	}
	v.PathMustExist = s.defaults.PathMustExist
	if opts.PathMustExist != nil {
		v.PathMustExist = *opts.PathMustExist
	}

	if v.CreatePathIfNotExist {
		if err := os.MkdirAll(v.Value, 0o755); err != nil {
			return aferrors.Wrap(aferrors.KindMissingPath, fmt.Sprintf("creating path for %q", fullName), err)
		}
	}
	if v.PathMustExist {
		if _, err := os.Stat(v.Value); err != nil {
			if !v.CreatePathIfNotExist {
				return aferrors.New(aferrors.KindMissingPath, fmt.Sprintf("path %q for variable %q does not exist", v.Value, fullName))
			}
			s.env.Logger.Warn("variable path did not exist and was created", "variable", fullName, "path", v.Value)
		}
	}

	s.vars = append(s.vars, v)
	s.reindex()
	return nil
}

// Remove deletes the named variable.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexLocked(name)
	if !ok {
		return aferrors.New(aferrors.KindUnknown, fmt.Sprintf("variable %q not found", name))
	}
	s.vars = append(s.vars[:i], s.vars[i+1:]...)
	s.reindex()
	return nil
}

// SetValue updates an existing variable's value, re-expanding it.
func (s *Store) SetValue(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexLocked(name)
	if !ok {
		return aferrors.New(aferrors.KindUnknown, fmt.Sprintf("variable %q not found", name))
	}
	expanded, err := s.expandValueLocked(value)
	if err != nil {
		return err
	}
	s.vars[i].Value = expanded
	return nil
}

// Get returns a variable's raw (already-expanded-at-add-time) value.
func (s *Store) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.indexLocked(name)
	if !ok {
		return "", aferrors.New(aferrors.KindUnknown, fmt.Sprintf("variable %q not found", name))
	}
	return s.vars[i].Value, nil
}

// Expand resolves variableName to a string value: first as a stored
// variable, then — stripping a leading '$' — as an OS environment variable
// or home-directory token. It mirrors the distilled tool's expand() fallback
// chain so callers that don't know whether a token is a Store variable or a
// bare env var get one consistent entry point.
func (s *Store) Expand(variableName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i, ok := s.indexLocked(variableName); ok {
		return s.vars[i].Value, nil
	}

	name := variableName
	if strings.HasPrefix(name, "$") {
		name = name[1:]
		if i, ok := s.indexLocked(name); ok {
			return s.vars[i].Value, nil
		}
	}

	expanded := os.ExpandEnv(name)
	expanded = expandHome(expanded)
	if expanded == name {
		return "", aferrors.New(aferrors.KindUnresolved, fmt.Sprintf("variable %q not found", variableName))
	}
	return expanded, nil
}

// ExpandText substitutes every <$ref_NAME> token in text with that
// variable's current value (to a fixed point), then expands environment
// variables and home-directory tokens — the general-purpose text expansion
// the builder engine applies to compiler options and step commands, as
// distinct from Expand's single-name lookup.
func (s *Store) ExpandText(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expandValueLocked(text)
}

// expandValueLocked performs <$ref_NAME> substitution to a fixed point, then
// OS environment/home expansion, raising Unresolved if a $TOKEN remains.
// Caller must hold the write lock.
func (s *Store) expandValueLocked(value string) (string, error) {
	var refErr error
	prev := ""
	cur := value
	for prev != cur {
		prev = cur
		cur = refPattern.ReplaceAllStringFunc(cur, func(m string) string {
			sub := refPattern.FindStringSubmatch(m)
			refName := s.constructName(sub[1])
			i, ok := s.indexLocked(refName)
			if !ok {
				refErr = aferrors.New(aferrors.KindUnresolved, fmt.Sprintf("variable %q could not be found among defined variables", sub[1]))
				return m
			}
			return s.vars[i].Value
		})
		if refErr != nil {
			return "", refErr
		}
	}

	// os.ExpandEnv silently replaces an unset $NAME/${NAME} with an empty
	// string, which would make an unresolved environment token undetectable
	// once expansion has already run. Check for unset names first so the
	// "unresolved environment token" failure path stays reachable for the
	// common $VAR/${VAR} forms, not just malformed ones.
	if name, ok := firstUnsetEnvToken(cur); ok {
		return "", aferrors.New(aferrors.KindUnresolved, fmt.Sprintf("environment variable $%s could not be expanded", name))
	}

	expanded := os.ExpandEnv(cur)
	expanded = expandHome(expanded)
	if idx := strings.IndexByte(expanded, '$'); idx != -1 && idx+1 < len(expanded) {
		rest := expanded[idx+1:]
		end := strings.IndexAny(rest, "/\\")
		if end == -1 {
			end = len(rest)
		}
		token := rest[:end]
		if token != "" && isAlpha(token[0]) {
			return "", aferrors.New(aferrors.KindUnresolved, fmt.Sprintf("environment variable $%s could not be expanded", token))
		}
	}
	return expanded, nil
}

// firstUnsetEnvToken reports the first $NAME/${NAME} reference in s whose
// name has no value in the process environment.
func firstUnsetEnvToken(s string) (string, bool) {
	for _, m := range envToken.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if _, ok := os.LookupEnv(name); !ok {
			return name, true
		}
	}
	return "", false
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func expandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return p
}

// Snapshot is the exported shape of a variable. A secret's Value is never
// the plaintext: it is sealed with the key given to WithSecretKey, or
// "<redacted>" when the Store has no key.
type Snapshot struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       string `json:"value"`
	IsSecret    bool   `json:"is_secret"`
}

// Export returns every variable's exported shape. Secret variables have
// their Value replaced with an encrypted, base64-like opaque marker (or
// "<redacted>" when sealing fails, e.g. no secret key) — never the
// plaintext — so a caller that only wants the variable list shape (e.g.
// a solution-show command) cannot accidentally leak a credential.
func (s *Store) Export() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.vars))
	for _, v := range s.vars {
		value := v.Value
		if v.IsSecret {
			sealed, err := s.sealLocked(v.Value)
			if err == nil {
				value = sealed
			} else {
				value = "<redacted>"
			}
		}
		out = append(out, Snapshot{Name: v.Name, Description: v.Description, Value: value, IsSecret: v.IsSecret})
	}
	return out
}

// Len reports the number of stored variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}
