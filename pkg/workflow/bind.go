package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// BindingError reports a value that does not match its declaration.
type BindingError struct {
	Field  string
	Reason string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("invalid binding for '%s': %s", e.Field, e.Reason)
}

// Bind type-checks values against decls and returns the bound input set. Every
// required field must be present, every present value must match its declared
// kind, and undeclared keys are rejected.
func Bind(decls []FieldDecl, values map[string]any) (map[string]any, error) {
	bound := make(map[string]any, len(decls))
	declared := make(map[string]struct{}, len(decls))

	var errs []error
	for _, d := range decls {
		declared[d.Name] = struct{}{}

		v, ok := values[d.Name]
		if !ok || v == nil {
			if d.IsRequired() {
				errs = append(errs, &BindingError{Field: d.Name, Reason: "required value is missing"})
			}
			continue
		}

		if !matchesKind(d.Type, v) {
			errs = append(errs, &BindingError{
				Field:  d.Name,
				Reason: fmt.Sprintf("expected %s, got %T", d.Type, v),
			})
			continue
		}

		bound[d.Name] = v
	}

	extra := make([]string, 0)
	for k := range values {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		errs = append(errs, &BindingError{Field: k, Reason: "field is not declared by the workflow"})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return bound, nil
}

func matchesKind(kind FieldKind, v any) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
			return true
		}
		return false
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindArray:
		_, ok := v.([]any)
		return ok
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// SampleInputs generates n deterministic input sets that satisfy decls. It is used
// when the dataset entry carries no test values of its own.
func SampleInputs(decls []FieldDecl, n int) []map[string]any {
	sets := make([]map[string]any, 0, n)
	for i := range n {
		set := make(map[string]any, len(decls))
		for _, d := range decls {
			set[d.Name] = sampleValue(d, i)
		}
		sets = append(sets, set)
	}

	return sets
}

func sampleValue(d FieldDecl, i int) any {
	switch d.Type {
	case KindNumber:
		return float64(42 + i)
	case KindBoolean:
		return i%2 == 0
	case KindArray:
		return []any{fmt.Sprintf("item1_%s", d.Name), fmt.Sprintf("item2_%s", d.Name)}
	case KindObject:
		return map[string]any{"name": fmt.Sprintf("sample_%s", d.Name), "index": float64(i)}
	default:
		return fmt.Sprintf("sample_%s_value_%d", d.Name, i+1)
	}
}
