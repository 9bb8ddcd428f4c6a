package llmjudge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mcpchecker/wfeval/pkg/failure"
)

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// ErrMalformedResponse is returned when a judge response cannot be turned into a
// score.
var ErrMalformedResponse = errors.New("malformed judge response")

func malformed(format string, args ...any) error {
	return failure.Unknown(failure.CategoryMalformedResponse,
		fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...)))
}

// ParseStructureScore normalizes a raw structure assessment. The three criteria
// are required; the overall score defaults to their mean.
func ParseStructureScore(raw []byte) (*StructureScore, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	s := &StructureScore{}
	if s.Integrity, err = requireScore(m, "structuralIntegrity", "structural_integrity"); err != nil {
		return nil, err
	}
	if s.IOMatching, err = requireScore(m, "inputOutputMatching", "input_output_matching"); err != nil {
		return nil, err
	}
	if s.Decomposition, err = requireScore(m, "taskDecomposition", "task_decomposition", "task_decomposition_logic"); err != nil {
		return nil, err
	}

	overall, ok, err := lookupScore(m, "score", "overallScore", "overall_score")
	if err != nil {
		return nil, err
	}
	if !ok {
		overall = (s.Integrity + s.IOMatching + s.Decomposition) / 3
	}
	s.Score = overall

	if s.Issues, err = stringList(m, "issues"); err != nil {
		return nil, err
	}
	s.Reasoning = stringField(m, "reasoning", "explanation")

	return s, nil
}

// ParseOutputScore normalizes a raw output assessment.
func ParseOutputScore(raw []byte) (*OutputScore, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	o := &OutputScore{}
	if o.Coherence, err = requireScore(m, "coherence", "content_consistency"); err != nil {
		return nil, err
	}
	if o.Diversity, err = requireScore(m, "diversity"); err != nil {
		return nil, err
	}
	if o.Usefulness, err = requireScore(m, "usefulness"); err != nil {
		return nil, err
	}

	rawCompleteness, ok := m["completeness"]
	if !ok {
		return nil, malformed("missing completeness")
	}
	cm, ok := rawCompleteness.(map[string]any)
	if !ok {
		return nil, malformed("completeness must be an object, got %T", rawCompleteness)
	}
	if o.Completeness.Score, err = requireScore(cm, "score"); err != nil {
		return nil, err
	}
	if o.Completeness.MissingGoals, err = stringList(cm, "missingGoals", "missing_goals"); err != nil {
		return nil, err
	}
	switch v := cm["complete"].(type) {
	case bool:
		o.Completeness.Complete = v
	case nil:
		o.Completeness.Complete = len(o.Completeness.MissingGoals) == 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, malformed("completeness.complete is not a boolean: %q", v)
		}
		o.Completeness.Complete = b
	default:
		return nil, malformed("completeness.complete is not a boolean: %T", v)
	}
	o.Reasoning = stringField(m, "reasoning", "explanation")

	return o, nil
}

// decodeObject extracts the JSON object from a judge response, tolerating
// surrounding prose and markdown code fences.
func decodeObject(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, malformed("empty response")
	}

	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return nil, malformed("no JSON object in response")
	}

	var m map[string]any
	if err := json.Unmarshal(trimmed[start:end+1], &m); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}

	return m, nil
}

func requireScore(m map[string]any, keys ...string) (float64, error) {
	v, ok, err := lookupScore(m, keys...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, malformed("missing %s", keys[0])
	}
	return v, nil
}

// lookupScore reads the first present key. Values may be numbers, numeric strings
// or objects with a "score" field.
func lookupScore(m map[string]any, keys ...string) (float64, bool, error) {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok || raw == nil {
			continue
		}

		if nested, ok := raw.(map[string]any); ok {
			raw, ok = nested["score"]
			if !ok {
				return 0, false, malformed("%s has no score", k)
			}
		}

		var v float64
		switch n := raw.(type) {
		case float64:
			v = n
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return 0, false, malformed("%s is not numeric: %q", k, n)
			}
			v = parsed
		default:
			return 0, false, malformed("%s has unexpected type %T", k, raw)
		}

		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false, malformed("%s is not a finite number: %v", k, v)
		}
		if v < MinScore || v > MaxScore {
			return 0, false, malformed("%s out of range: %v", k, v)
		}
		return v, true, nil
	}

	return 0, false, nil
}

func stringList(m map[string]any, keys ...string) ([]string, error) {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if v == "" {
				return nil, nil
			}
			return []string{v}, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, malformed("%s contains a non-string entry", k)
				}
				out = append(out, s)
			}
			return out, nil
		default:
			return nil, malformed("%s must be a list of strings", k)
		}
	}
	return nil, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}
