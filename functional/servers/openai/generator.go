package openai

import "fmt"

// WorkflowTool is the tool the generator asks the model to call.
const WorkflowTool = "submit_workflow"

// Field is a typed input or output of a generated workflow.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// WorkflowNode is one task of a generated workflow.
type WorkflowNode struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Inputs      []Field `json:"inputs"`
	Outputs     []Field `json:"outputs"`
}

// GeneratedWorkflow is the payload of a submit_workflow call.
type GeneratedWorkflow struct {
	Goal    string         `json:"goal"`
	Inputs  []Field        `json:"inputs,omitempty"`
	Outputs []Field        `json:"outputs,omitempty"`
	Nodes   []WorkflowNode `json:"nodes"`
}

// LinearWorkflow creates a submit_workflow call with one node per step. The last
// node produces every output; inputs and outputs are declared as strings.
func LinearWorkflow(goal string, inputs, outputs []string, steps ...string) *Response {
	wf := GeneratedWorkflow{Goal: goal}
	for _, in := range inputs {
		wf.Inputs = append(wf.Inputs, Field{Name: in, Type: "string"})
	}
	for _, out := range outputs {
		wf.Outputs = append(wf.Outputs, Field{Name: out, Type: "string"})
	}

	prev := wf.Inputs
	for i, step := range steps {
		node := WorkflowNode{
			Name:        step,
			Description: fmt.Sprintf("step %d of %s", i+1, goal),
			Inputs:      prev,
		}
		if i == len(steps)-1 {
			node.Outputs = wf.Outputs
		} else {
			node.Outputs = []Field{{Name: step + "_result", Type: "string"}}
		}
		wf.Nodes = append(wf.Nodes, node)
		prev = node.Outputs
	}

	return ToolCallResponse(WorkflowTool, wf)
}

// EmptyWorkflow creates a submit_workflow call without nodes, which fails graph
// validation.
func EmptyWorkflow(goal string) *Response {
	return ToolCallResponse(WorkflowTool, GeneratedWorkflow{Goal: goal, Nodes: []WorkflowNode{}})
}
