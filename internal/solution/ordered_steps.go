package solution

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Step is one named entry of a pre/post-build steps map.
type Step struct {
	Name    string
	Command string
}

// OrderedSteps preserves the declaration order of a JSON object's keys,
// since Go's map has no stable iteration order but the build spec requires
// pre/post-build steps to run in the order they appear in the source file.
type OrderedSteps struct {
	Steps []Step
}

// UnmarshalJSON decodes a JSON object into Steps, preserving key order by
// walking the token stream directly instead of unmarshaling into a map.
func (o *OrderedSteps) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("expected JSON object for ordered steps, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key in ordered steps, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding value for step %q: %w", key, err)
		}
		o.Steps = append(o.Steps, Step{Name: key, Command: value})
	}
	// Consume closing '}'.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON renders Steps back as a JSON object, preserving order isn't
// possible in standard JSON on re-encode (object key order isn't part of
// the JSON data model), but encoding/json still emits keys in the slice's
// order here since we build the object manually.
func (o OrderedSteps) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range o.Steps {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		valBytes, err := json.Marshal(s.Command)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
