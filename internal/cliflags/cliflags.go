// Package cliflags converts a tagged struct into a flat argv slice via
// reflection, so typed option structs (e.g. a builder's extra invocation
// knobs) can be composed into a subprocess command line without each
// builder hand-rolling its own flag-joining logic.
package cliflags

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ToArgs walks s's exported fields and emits one or more argv tokens per
// field tagged `flag:"--name"`. Embedded structs are flattened. Zero-valued
// fields are skipped unless the tag carries ",keepzero". Map fields are
// sorted by key and rendered as single comma-joined key=value tokens;
// slice fields repeat the flag once per element.
func ToArgs[T any](s *T) []string {
	if s == nil {
		s = new(T)
	}
	var ret []string
	st := reflect.TypeOf(*s)
	sv := reflect.ValueOf(*s)
	if st.Kind() == reflect.Pointer {
		sv = reflect.Indirect(sv)
		st = sv.Type()
	}
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		fv := sv.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			fvi := fv.Interface()
			ret = append(ret, ToArgs(&fvi)...)
			continue
		}
		flagTag, ok := field.Tag.Lookup("flag")
		if !ok {
			continue
		}
		flagParts := strings.Split(flagTag, ",")
		flagName := flagParts[0]
		keepZero := len(flagParts) > 1 && strings.EqualFold(flagParts[1], "keepzero")

		if !keepZero && fv.IsZero() {
			continue
		}

		switch field.Type.Kind() {
		case reflect.Slice, reflect.Array:
			for j := 0; j < fv.Len(); j++ {
				ret = append(ret, flagName, fmt.Sprintf("%v", fv.Index(j)))
			}
			continue
		case reflect.Map:
			m, ok := fv.Interface().(map[string]string)
			if !ok {
				continue
			}
			keys := slices.Sorted(maps.Keys(m))
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%v=%v", k, m[k]))
			}
			ret = append(ret, flagName, strings.Join(parts, ","))
			continue
		}

		ret = append(ret, flagName)
		if field.Type.Kind() != reflect.Bool {
			ret = append(ret, fmt.Sprintf("%v", fv.Interface()))
		}
	}
	return ret
}
