// Package workflow holds the data model shared by every evaluation layer: the
// workflow specifications loaded from a dataset, the graphs produced by a
// generator, and typed input binding.
package workflow

import (
	"fmt"
)

// FieldKind is the declared type of a workflow input or output.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
	KindArray   FieldKind = "array"
	KindObject  FieldKind = "object"
)

func (k FieldKind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean, KindArray, KindObject:
		return true
	default:
		return false
	}
}

// FieldDecl declares one named, typed input or output of a workflow.
type FieldDecl struct {
	Name        string    `json:"name"`
	Type        FieldKind `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    *bool     `json:"required,omitempty"`
}

// IsRequired reports whether the field must be bound. Fields are required unless
// explicitly marked otherwise.
func (f FieldDecl) IsRequired() bool {
	return f.Required == nil || *f.Required
}

// Spec is one entry of the evaluation dataset. Field names follow the dataset file
// format.
type Spec struct {
	ID          string           `json:"workflow_id"`
	Name        string           `json:"workflow_name"`
	Requirement string           `json:"workflow_requirement"`
	Inputs      []FieldDecl      `json:"workflow_inputs"`
	Outputs     []FieldDecl      `json:"workflow_outputs"`
	TestInputs  []map[string]any `json:"test_inputs,omitempty"`
	SourceFile  string           `json:"source_file,omitempty"`
}

// Validate checks that the spec is usable by the pipeline.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("workflow spec has no id")
	}
	if s.Requirement == "" {
		return fmt.Errorf("workflow spec '%s' has an empty requirement", s.ID)
	}
	if err := validateDecls("input", s.Inputs); err != nil {
		return fmt.Errorf("workflow spec '%s': %w", s.ID, err)
	}
	if err := validateDecls("output", s.Outputs); err != nil {
		return fmt.Errorf("workflow spec '%s': %w", s.ID, err)
	}

	return nil
}

func validateDecls(what string, decls []FieldDecl) error {
	seen := make(map[string]struct{}, len(decls))
	for i, d := range decls {
		if d.Name == "" {
			return fmt.Errorf("%s declaration at index %d has no name", what, i)
		}
		if !d.Type.Valid() {
			return fmt.Errorf("%s '%s' has unknown type '%s'", what, d.Name, d.Type)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("duplicate %s '%s'", what, d.Name)
		}
		seen[d.Name] = struct{}{}
	}

	return nil
}
