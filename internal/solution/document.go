package solution

import (
	"encoding/json"
	"fmt"

	"github.com/autoforge-project/autoforge/internal/aferrors"
)

// VariableSpec mirrors one entry of a solution document's top-level
// "variables" array.
type VariableSpec struct {
	Name                 string `json:"name"`
	Value                string `json:"value"`
	Description          string `json:"description,omitempty"`
	IsPath               bool   `json:"is_path,omitempty"`
	IsSecret             bool   `json:"is_secret,omitempty"`
	PathMustExist        *bool  `json:"path_must_exist,omitempty"`
	CreatePathIfNotExist *bool  `json:"create_path_if_not_exist,omitempty"`
}

// DefaultsSpec mirrors the document's top-level "defaults" object.
type DefaultsSpec struct {
	PathMustExist        bool `json:"path_must_exist,omitempty"`
	CreatePathIfNotExist bool `json:"create_path_if_not_exist,omitempty"`
}

// Document is the full shape of a preprocessed solution file: one or more
// named solutions plus the variable declarations and naming knobs that
// apply across all of them.
type Document struct {
	Solutions           []Solution     `json:"solutions"`
	Variables           []VariableSpec `json:"variables,omitempty"`
	Defaults            DefaultsSpec   `json:"defaults,omitempty"`
	AutoPrefix          bool           `json:"auto_prefix,omitempty"`
	ForceUpperCaseNames bool           `json:"force_upper_case_names,omitempty"`
}

// LoadDocument decodes a preprocessed JSONC map (as produced by
// jsonc.Processor.Preprocess) into a Document by round-tripping it through
// encoding/json, and rejects a document that declares no solutions. Building
// a Model from one of its solutions is left to FindSolution and Load.
func LoadDocument(raw map[string]any) (*Document, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, aferrors.Wrap(aferrors.KindParseError, "re-encoding preprocessed solution document", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, aferrors.Wrap(aferrors.KindParseError, "decoding solution document", err)
	}
	if len(doc.Solutions) == 0 {
		return nil, aferrors.New(aferrors.KindParseError, "solution document declares no solutions")
	}
	return &doc, nil
}

// FindSolution returns the named solution from the document, or the first
// one if name is empty.
func (d *Document) FindSolution(name string) (Solution, error) {
	if name == "" {
		return d.Solutions[0], nil
	}
	for _, s := range d.Solutions {
		if s.Name == name {
			return s, nil
		}
	}
	return Solution{}, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("unknown solution %q", name))
}
