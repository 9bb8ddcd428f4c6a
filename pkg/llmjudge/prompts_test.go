package llmjudge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompts(t *testing.T) {
	sys, user, err := BuildStructurePrompts("Plan a trip", `{"nodes":[]}`)
	require.NoError(t, err)
	assert.Contains(t, sys, "`submit_structure_assessment`")
	assert.Contains(t, sys, "taskDecomposition")
	assert.Contains(t, user, "<requirement>\nPlan a trip\n</requirement>")
	assert.Contains(t, user, `{"nodes":[]}`)

	sys, user, err = BuildOutputPrompts("Summarize", `{"summary":"s"}`)
	require.NoError(t, err)
	assert.Contains(t, sys, "`submit_output_assessment`")
	assert.Contains(t, sys, "missingGoals")
	assert.Contains(t, user, "<workflow_output>\n{\"summary\":\"s\"}\n</workflow_output>")
}
