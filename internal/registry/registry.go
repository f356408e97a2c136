// Package registry implements the Module Registry: a process-wide catalog
// of named modules (core services, commands, builders) with metadata and
// instance retrieval, used by the Dynamic Loader to register discovered
// plugins and by the CLI to dispatch commands by name.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// Kind classifies a registered module.
type Kind string

const (
	KindCore    Kind = "core"
	KindCommand Kind = "command"
	KindBuilder Kind = "builder"
	KindCommon  Kind = "common"
	KindUnknown Kind = "unknown"
)

// Record describes one registered module. Extras carries any unrecognized
// metadata fields a registrant supplied, replacing the dynamic attribute
// bag (**kwargs) the distilled tool attaches to records.
type Record struct {
	Name          string
	Description   string
	ClassName     string
	Instance      any
	InterfaceName string
	Kind          Kind
	Version       string
	FileName      string
	Hidden        bool
	CommandType   string
	Extras        map[string]any
}

// Registry is the process-wide module catalog. All mutations are
// serialized; readers take a read lock so concurrent lookups never block
// each other and never observe a torn record.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record // keyed by lower-cased name for case-insensitive lookup
	order   []string           // insertion order of lower-cased keys
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{records: map[string]*Record{}}
}

// RegisterInput is the set of fields a caller supplies to Register; Name is
// mandatory (Register rejects an empty Name), the rest optional.
type RegisterInput struct {
	Name          string
	Description   string
	ClassName     string
	Instance      any
	InterfaceName string
	Kind          Kind
	Version       string
	FileName      string
	Hidden        bool
	CommandType   string
	Extras        map[string]any
}

// Register adds a new module record. Registration is idempotent per name in
// the sense that re-registering the same name is rejected outright — the
// caller must Update an existing record instead.
func (r *Registry) Register(in RegisterInput) (*Record, error) {
	if in.Name == "" {
		return nil, aferrors.New(aferrors.KindParseError, "module name must not be empty")
	}
	key := strings.ToLower(in.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[key]; exists {
		return nil, aferrors.New(aferrors.KindDuplicate, fmt.Sprintf("module %q already registered", in.Name))
	}

	rec := &Record{
		Name:          in.Name,
		Description:   in.Description,
		ClassName:     in.ClassName,
		Instance:      in.Instance,
		InterfaceName: in.InterfaceName,
		Kind:          in.Kind,
		Version:       in.Version,
		FileName:      in.FileName,
		Hidden:        in.Hidden,
		CommandType:   in.CommandType,
		Extras:        in.Extras,
	}
	r.records[key] = rec
	r.order = append(r.order, key)
	return rec, nil
}

// updatableFields lists the Record fields Update is permitted to touch, by
// the field name a caller passes in the update map. Passing a key outside
// this set is an error, matching the distilled tool's validate-before-apply
// policy.
var updatableFields = map[string]struct{}{
	"description":    {},
	"class_name":     {},
	"instance":       {},
	"interface_name": {},
	"version":        {},
	"file_name":      {},
	"hidden":         {},
	"command_type":   {},
}

// Update applies a partial update to an existing record by name. Every key
// in fields must be one of updatableFields; an unknown key fails the whole
// update rather than applying a partial write.
func (r *Registry) Update(name string, fields map[string]any) (*Record, error) {
	for k := range fields {
		if _, ok := updatableFields[k]; !ok {
			return nil, aferrors.New(aferrors.KindParseError, fmt.Sprintf("unknown record field %q", k))
		}
	}

	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("module %q not found", name))
	}

	for k, v := range fields {
		switch k {
		case "description":
			rec.Description, _ = v.(string)
		case "class_name":
			rec.ClassName, _ = v.(string)
		case "instance":
			rec.Instance = v
		case "interface_name":
			rec.InterfaceName, _ = v.(string)
		case "version":
			rec.Version, _ = v.(string)
		case "file_name":
			rec.FileName, _ = v.(string)
		case "hidden":
			rec.Hidden, _ = v.(bool)
		case "command_type":
			rec.CommandType, _ = v.(string)
		}
	}
	return rec, nil
}

// GetByName looks up a record, case-insensitively.
func (r *Registry) GetByName(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[strings.ToLower(name)]
	return rec, ok
}

// ListByKind returns every record of the given kind, in registration order.
func (r *Registry) ListByKind(kind Kind) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, key := range r.order {
		if rec := r.records[key]; rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// Names returns every registered module name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		names = append(names, rec.Name)
	}
	sort.Strings(names)
	return names
}

// FindCallable resolves a "ClassName.method" dotted string to a bound
// method value by scanning registered records for one whose ClassName
// matches case-insensitively, then resolving the method name on its
// Instance case-insensitively via reflection.
func (r *Registry) FindCallable(dotted string) (reflect.Value, error) {
	parts := strings.SplitN(dotted, ".", 2)
	if len(parts) != 2 {
		return reflect.Value{}, aferrors.New(aferrors.KindParseError, fmt.Sprintf("%q is not a ClassName.method reference", dotted))
	}
	className, methodName := parts[0], parts[1]

	r.mu.RLock()
	var rec *Record
	for _, key := range r.order {
		candidate := r.records[key]
		if strings.EqualFold(candidate.ClassName, className) {
			rec = candidate
			break
		}
	}
	r.mu.RUnlock()

	if rec == nil {
		return reflect.Value{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("no registered class named %q", className))
	}
	if rec.Instance == nil {
		return reflect.Value{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("class %q has no bound instance", className))
	}

	v := reflect.ValueOf(rec.Instance)
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if strings.EqualFold(t.Method(i).Name, methodName) {
			return v.Method(i), nil
		}
	}
	return reflect.Value{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("class %q has no method named %q", className, methodName))
}
