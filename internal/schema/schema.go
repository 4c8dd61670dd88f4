// Package schema holds the JSON schemas used to constrain model output and
// validates raw model responses against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
)

// Schema is a named JSON schema document together with its compiled
// validator.
type Schema struct {
	Name     string
	Document map[string]any

	compiled *jsonschema.Schema
}

// New compiles document for validation.
func New(name string, document map[string]any) (*Schema, error) {
	raw, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &Schema{Name: name, Document: document, compiled: compiled}, nil
}

// MustNew is New for package-level schemas known to be valid.
func MustNew(name string, document map[string]any) *Schema {
	s, err := New(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// AnswersSchema is the compiled schema of the rental-contract answer set.
var AnswersSchema = MustNew(AnswersName, Answers())

// Validate checks raw JSON structurally (types and optionality only).
func (s *Schema) Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperr.Validation("response is not valid JSON", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return apperr.Validation(fmt.Sprintf("response does not match schema %s", s.Name), err)
	}
	return nil
}

// JSON returns the schema document as indented JSON.
func (s *Schema) JSON() ([]byte, error) {
	return json.MarshalIndent(s.Document, "", "  ")
}
