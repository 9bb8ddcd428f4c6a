package llmjudge

import (
	"bytes"
	"text/template"
)

const (
	submitStructureTool = "submit_structure_assessment"
	submitOutputTool    = "submit_output_assessment"
)

var (
	structureSystemPromptTemplate = template.Must(template.New("structureSystemPrompt").Parse(
		`You are a specialized evaluator of generated workflows. A workflow is a task graph: an ordered list of nodes, each with named inputs and outputs, wired together to satisfy a requirement.

Score the [GENERATED_WORKFLOW] against the [REQUIREMENT] on three criteria, each from 0 to 10:

* **structuralIntegrity**: every node has a name, a description and well-formed inputs and outputs; nothing required by the requirement is absent.
* **inputOutputMatching**: every node input is provided by a workflow input or an earlier node output, and the workflow outputs are produced.
* **taskDecomposition**: the breakdown into nodes is logical, coherent and at a sensible granularity.

Also give an overall **score** (0-10), a list of concrete **issues** (empty when there are none) and a short **reasoning**.

You MUST respond by calling the ` + "`{{.Tool}}`" + ` tool. If tools are unavailable, respond with a single JSON object with the same fields and nothing else.
`))

	outputSystemPromptTemplate = template.Must(template.New("outputSystemPrompt").Parse(
		`You are a specialized evaluator of workflow outputs. Judge the [WORKFLOW_OUTPUT] produced for the [REQUIREMENT] on these dimensions, each from 0 to 10:

* **coherence**: the output is logically consistent and internally coherent.
* **diversity**: the content is specific and non-repetitive rather than generic filler.
* **usefulness**: the output is effective for the task the requirement describes.

Then check **completeness** against the goals the requirement states:
* complete: true only if every stated goal is addressed
* missingGoals: the goals that are not addressed
* score: 0 to 10

Add a short **reasoning**.

You MUST respond by calling the ` + "`{{.Tool}}`" + ` tool. If tools are unavailable, respond with a single JSON object with the same fields and nothing else.
`))

	structureUserPromptTemplate = template.Must(template.New("structureUserPrompt").Parse(
		`<requirement>
{{.Requirement}}
</requirement>

<generated_workflow>
{{.Payload}}
</generated_workflow>

Evaluate the workflow structure.
`))

	outputUserPromptTemplate = template.Must(template.New("outputUserPrompt").Parse(
		`<requirement>
{{.Requirement}}
</requirement>

<workflow_output>
{{.Payload}}
</workflow_output>

Evaluate the workflow output.
`))
)

type SystemPromptData struct {
	Tool string
}

type UserPromptData struct {
	Requirement string
	Payload     string
}

func BuildStructurePrompts(requirement, workflowJSON string) (string, string, error) {
	return build(structureSystemPromptTemplate, structureUserPromptTemplate, submitStructureTool, requirement, workflowJSON)
}

func BuildOutputPrompts(requirement, output string) (string, string, error) {
	return build(outputSystemPromptTemplate, outputUserPromptTemplate, submitOutputTool, requirement, output)
}

func build(system, user *template.Template, tool, requirement, payload string) (string, string, error) {
	var sys bytes.Buffer
	if err := system.Execute(&sys, SystemPromptData{Tool: tool}); err != nil {
		return "", "", err
	}

	var usr bytes.Buffer
	if err := user.Execute(&usr, UserPromptData{Requirement: requirement, Payload: payload}); err != nil {
		return "", "", err
	}

	return sys.String(), usr.String(), nil
}
