package llmjudge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpchecker/wfeval/pkg/failure"
)

func TestParseStructureScore(t *testing.T) {
	tt := map[string]struct {
		raw         string
		expectErr   bool
		errContains string
		want        *StructureScore
	}{
		"tool arguments": {
			raw: `{"structuralIntegrity":8,"inputOutputMatching":9,"taskDecomposition":7,"score":8,"issues":["node b unused"],"reasoning":"ok"}`,
			want: &StructureScore{Score: 8, Integrity: 8, IOMatching: 9, Decomposition: 7, Issues: []string{"node b unused"}, Reasoning: "ok"},
		},
		"snake case with nested scores and numeric strings": {
			raw:  `{"structural_integrity":{"score":"8.5","explanation":"x"},"input_output_matching":{"score":9},"task_decomposition_logic":{"score":7.5}}`,
			want: &StructureScore{Score: (8.5 + 9 + 7.5) / 3, Integrity: 8.5, IOMatching: 9, Decomposition: 7.5},
		},
		"fenced json with prose": {
			raw:  "Here is my assessment:\n```json\n{\"structuralIntegrity\":6,\"inputOutputMatching\":6,\"taskDecomposition\":6}\n```",
			want: &StructureScore{Score: 6, Integrity: 6, IOMatching: 6, Decomposition: 6},
		},
		"single issue string": {
			raw:  `{"structuralIntegrity":5,"inputOutputMatching":5,"taskDecomposition":5,"issues":"missing output"}`,
			want: &StructureScore{Score: 5, Integrity: 5, IOMatching: 5, Decomposition: 5, Issues: []string{"missing output"}},
		},
		"missing criterion": {
			raw:         `{"structuralIntegrity":8,"inputOutputMatching":9}`,
			expectErr:   true,
			errContains: "missing taskDecomposition",
		},
		"out of range": {
			raw:         `{"structuralIntegrity":11,"inputOutputMatching":9,"taskDecomposition":7}`,
			expectErr:   true,
			errContains: "out of range",
		},
		"nan string": {
			raw:         `{"structuralIntegrity":"NaN","inputOutputMatching":9,"taskDecomposition":7}`,
			expectErr:   true,
			errContains: "not a finite number",
		},
		"infinite string": {
			raw:         `{"structuralIntegrity":8,"inputOutputMatching":"+Inf","taskDecomposition":7}`,
			expectErr:   true,
			errContains: "not a finite number",
		},
		"not numeric": {
			raw:         `{"structuralIntegrity":"high","inputOutputMatching":9,"taskDecomposition":7}`,
			expectErr:   true,
			errContains: "not numeric",
		},
		"invalid json": {
			raw:         `{invalid json`,
			expectErr:   true,
			errContains: "invalid JSON",
		},
		"empty": {
			raw:         "  ",
			expectErr:   true,
			errContains: "empty response",
		},
		"prose only": {
			raw:         "The workflow looks great, 9/10.",
			expectErr:   true,
			errContains: "no JSON object",
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			got, err := ParseStructureScore([]byte(tc.raw))
			if tc.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				assert.Contains(t, err.Error(), tc.errContains)

				rec := failure.Classify("judge", err)
				assert.Equal(t, failure.KindUnknown, rec.Kind)
				assert.Equal(t, failure.CategoryMalformedResponse, rec.Category)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want.Score, got.Score, 1e-9)
			assert.Equal(t, tc.want.Integrity, got.Integrity)
			assert.Equal(t, tc.want.IOMatching, got.IOMatching)
			assert.Equal(t, tc.want.Decomposition, got.Decomposition)
			assert.Equal(t, tc.want.Issues, got.Issues)
			assert.Equal(t, tc.want.Reasoning, got.Reasoning)
		})
	}
}

func TestParseOutputScore(t *testing.T) {
	tt := map[string]struct {
		raw         string
		expectErr   bool
		errContains string
		validate    func(t *testing.T, o *OutputScore)
	}{
		"complete output": {
			raw: `{"coherence":8,"diversity":6,"usefulness":"7","completeness":{"complete":true,"score":9},"reasoning":"fine"}`,
			validate: func(t *testing.T, o *OutputScore) {
				assert.Equal(t, 8.0, o.Coherence)
				assert.Equal(t, 7.0, o.Usefulness)
				assert.True(t, o.Completeness.Complete)
				assert.Equal(t, 7.5, o.Overall())
				assert.Equal(t, 9.0, o.Dimensions()[DimensionCompleteness])
			},
		},
		"missing goals imply incomplete": {
			raw: `{"coherence":5,"diversity":5,"usefulness":5,"completeness":{"missing_goals":["budget"],"score":3}}`,
			validate: func(t *testing.T, o *OutputScore) {
				assert.False(t, o.Completeness.Complete)
				assert.Equal(t, []string{"budget"}, o.Completeness.MissingGoals)
			},
		},
		"complete as string": {
			raw: `{"coherence":5,"diversity":5,"usefulness":5,"completeness":{"complete":"false","score":3}}`,
			validate: func(t *testing.T, o *OutputScore) {
				assert.False(t, o.Completeness.Complete)
			},
		},
		"missing completeness": {
			raw:         `{"coherence":5,"diversity":5,"usefulness":5}`,
			expectErr:   true,
			errContains: "missing completeness",
		},
		"completeness not an object": {
			raw:         `{"coherence":5,"diversity":5,"usefulness":5,"completeness":7}`,
			expectErr:   true,
			errContains: "must be an object",
		},
		"negative score": {
			raw:         `{"coherence":-1,"diversity":5,"usefulness":5,"completeness":{"score":3}}`,
			expectErr:   true,
			errContains: "out of range",
		},
		"nan dimension": {
			raw:         `{"coherence":"nan","diversity":5,"usefulness":5,"completeness":{"score":3}}`,
			expectErr:   true,
			errContains: "not a finite number",
		},
		"infinite completeness": {
			raw:         `{"coherence":5,"diversity":5,"usefulness":5,"completeness":{"score":"Inf"}}`,
			expectErr:   true,
			errContains: "not a finite number",
		},
		"bad complete flag": {
			raw:         `{"coherence":1,"diversity":5,"usefulness":5,"completeness":{"score":3,"complete":"maybe"}}`,
			expectErr:   true,
			errContains: "not a boolean",
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			got, err := ParseOutputScore([]byte(tc.raw))
			if tc.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				assert.Contains(t, err.Error(), tc.errContains)
				return
			}
			require.NoError(t, err)
			tc.validate(t, got)
		})
	}
}
