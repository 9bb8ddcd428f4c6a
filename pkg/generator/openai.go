package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/llmjudge"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

const submitWorkflowTool = "submit_workflow"

var (
	systemPrompt = `You are a workflow planner. Decompose the requirement into an ordered list of task nodes. Every node has a unique name, a description, typed inputs and typed outputs. Node inputs must come from the workflow inputs or from outputs of earlier nodes, and the workflow outputs must be produced by some node.

Allowed field types: string, number, boolean, array, object.

You MUST respond by calling the ` + "`" + submitWorkflowTool + "`" + ` tool. If tools are unavailable, respond with a single JSON object with the same fields and nothing else.
`

	userPromptTemplate = template.Must(template.New("generatorUserPrompt").Parse(
		`<requirement>
{{.Requirement}}
</requirement>

<workflow_inputs>
{{.Inputs}}
</workflow_inputs>

<workflow_outputs>
{{.Outputs}}
</workflow_outputs>
`))

	graphToolParams = sync.OnceValues(func() (map[string]any, error) {
		schema, err := jsonschema.For[workflow.Graph](nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build workflow schema: %w", err)
		}
		data, err := json.Marshal(schema)
		if err != nil {
			return nil, err
		}
		params := map[string]any{}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, err
		}
		return params, nil
	})
)

// OpenAIGenerator plans workflows with an OpenAI compatible model.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

var _ Generator = &OpenAIGenerator{}

// NewOpenAIGenerator builds a generator using the same provider settings as the
// judge.
func NewOpenAIGenerator(cfg llmjudge.Config) (*OpenAIGenerator, error) {
	cfg = cfg.WithDefaults()
	if cfg.Provider != llmjudge.ProviderOpenAI {
		return nil, fmt.Errorf("generator supports only the %s provider, got '%s'", llmjudge.ProviderOpenAI, cfg.Provider)
	}

	client, err := llmjudge.NewOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}

	return &OpenAIGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.GetTemperature(),
		timeout:     cfg.Timeout,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, requirement string, inputs, outputs []workflow.FieldDecl) (*workflow.Graph, error) {
	if strings.TrimSpace(requirement) == "" {
		return nil, failure.Expected(failure.CategoryInvalidInput, fmt.Errorf("%w: requirement is empty", ErrInvalidRequirement))
	}

	user, err := buildUserPrompt(requirement, inputs, outputs)
	if err != nil {
		return nil, err
	}

	params, err := graphToolParams()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	completion, err := g.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
		Tools: []openai.ChatCompletionToolUnionParam{
			openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
				Name:        submitWorkflowTool,
				Description: openai.String("Submit the planned workflow graph"),
				Parameters:  shared.FunctionParameters(params),
			}),
		},
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return nil, llmjudge.TransportError(ctx, err)
	}

	if len(completion.Choices) == 0 {
		return nil, failure.Unknown(failure.CategoryMalformedResponse, fmt.Errorf("generator returned no choices"))
	}

	message := completion.Choices[0].Message
	raw := message.Content
	for _, call := range message.ToolCalls {
		if call.Function.Name == submitWorkflowTool {
			raw = call.Function.Arguments
			break
		}
	}

	return decodeGraph(raw, inputs, outputs)
}

func decodeGraph(raw string, inputs, outputs []workflow.FieldDecl) (*workflow.Graph, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, failure.Unknown(failure.CategoryMalformedResponse, fmt.Errorf("generator returned no workflow JSON"))
	}

	graph, err := workflow.GraphFromJSON([]byte(raw[start : end+1]))
	if err != nil {
		return nil, failure.Unknown(failure.CategoryMalformedResponse, err)
	}

	// the declared interface is authoritative
	if len(graph.Inputs) == 0 {
		graph.Inputs = inputs
	}
	if len(graph.Outputs) == 0 {
		graph.Outputs = outputs
	}

	if err := graph.Validate(); err != nil {
		return nil, failure.Expected(failure.CategoryValidation, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err))
	}

	return graph, nil
}

func buildUserPrompt(requirement string, inputs, outputs []workflow.FieldDecl) (string, error) {
	in, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = userPromptTemplate.Execute(&buf, map[string]string{
		"Requirement": requirement,
		"Inputs":      string(in),
		"Outputs":     string(out),
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
