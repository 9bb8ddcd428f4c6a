package llmjudge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/mcpchecker/wfeval/pkg/failure"
)

type structureAssessment struct {
	StructuralIntegrity float64  `json:"structuralIntegrity" jsonschema:"structural integrity score from 0 to 10"`
	InputOutputMatching float64  `json:"inputOutputMatching" jsonschema:"input and output matching score from 0 to 10"`
	TaskDecomposition   float64  `json:"taskDecomposition" jsonschema:"task decomposition score from 0 to 10"`
	Score               float64  `json:"score" jsonschema:"overall structure score from 0 to 10"`
	Issues              []string `json:"issues" jsonschema:"concrete structural issues, empty when there are none"`
	Reasoning           string   `json:"reasoning" jsonschema:"short explanation of the scores"`
}

type completenessAssessment struct {
	Complete     bool     `json:"complete" jsonschema:"true only if every stated goal is addressed"`
	MissingGoals []string `json:"missingGoals" jsonschema:"goals of the requirement that the output does not address"`
	Score        float64  `json:"score" jsonschema:"completeness score from 0 to 10"`
}

type outputAssessment struct {
	Coherence    float64                `json:"coherence" jsonschema:"coherence score from 0 to 10"`
	Diversity    float64                `json:"diversity" jsonschema:"diversity score from 0 to 10"`
	Usefulness   float64                `json:"usefulness" jsonschema:"usefulness score from 0 to 10"`
	Completeness completenessAssessment `json:"completeness"`
	Reasoning    string                 `json:"reasoning" jsonschema:"short explanation of the scores"`
}

var (
	structureToolParams = sync.OnceValues(toolParameters[structureAssessment])
	outputToolParams    = sync.OnceValues(toolParameters[outputAssessment])
)

func toolParameters[T any]() (map[string]any, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool schema: %w", err)
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool schema: %w", err)
	}

	params := map[string]any{}
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to decode tool schema: %w", err)
	}

	return params, nil
}

// OpenAIJudge scores through an OpenAI compatible chat completions endpoint,
// asking the model to answer with a tool call.
type OpenAIJudge struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

var _ Judge = &OpenAIJudge{}

func NewOpenAIJudge(cfg Config) (*OpenAIJudge, error) {
	cfg = cfg.WithDefaults()
	client, err := NewOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}

	return &OpenAIJudge{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.GetTemperature(),
		timeout:     cfg.Timeout,
	}, nil
}

// NewOpenAIClient builds a client from cfg. Client-side retries are disabled; the
// caller's retry policy governs.
func NewOpenAIClient(cfg Config) (openai.Client, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return openai.Client{}, fmt.Errorf("no API key found: set the %s environment variable", cfg.APIKeyEnv)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := cfg.BaseUrl(); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return openai.NewClient(opts...), nil
}

func (j *OpenAIJudge) ModelName() string {
	return j.model
}

func (j *OpenAIJudge) ScoreStructure(ctx context.Context, workflowJSON json.RawMessage, requirement string) (*StructureScore, error) {
	system, user, err := BuildStructurePrompts(requirement, string(workflowJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to build structure prompts: %w", err)
	}

	params, err := structureToolParams()
	if err != nil {
		return nil, err
	}

	raw, err := j.complete(ctx, submitStructureTool, "Submit the structure assessment of the workflow", params, system, user)
	if err != nil {
		return nil, err
	}

	return ParseStructureScore(raw)
}

func (j *OpenAIJudge) ScoreOutput(ctx context.Context, output json.RawMessage, requirement string) (*OutputScore, error) {
	system, user, err := BuildOutputPrompts(requirement, string(output))
	if err != nil {
		return nil, fmt.Errorf("failed to build output prompts: %w", err)
	}

	params, err := outputToolParams()
	if err != nil {
		return nil, err
	}

	raw, err := j.complete(ctx, submitOutputTool, "Submit the quality assessment of the workflow output", params, system, user)
	if err != nil {
		return nil, err
	}

	return ParseOutputScore(raw)
}

// complete returns the arguments of the named tool call, or the message content
// when the model answered without calling a tool.
func (j *OpenAIJudge) complete(ctx context.Context, tool, description string, params map[string]any, system, user string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	completion, err := j.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(j.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Tools: []openai.ChatCompletionToolUnionParam{
			openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
				Name:        tool,
				Description: openai.String(description),
				Parameters:  shared.FunctionParameters(params),
			}),
		},
		Temperature: openai.Float(j.temperature),
	})
	if err != nil {
		return nil, TransportError(ctx, err)
	}

	if len(completion.Choices) == 0 {
		return nil, malformed("no completion choices returned")
	}

	message := completion.Choices[0].Message
	for _, call := range message.ToolCalls {
		if call.Function.Name == tool {
			return []byte(call.Function.Arguments), nil
		}
	}
	if len(message.ToolCalls) > 0 {
		return nil, malformed("judge called unexpected tool '%s'", message.ToolCalls[0].Function.Name)
	}
	if strings.TrimSpace(message.Content) == "" {
		return nil, malformed("judge returned neither a tool call nor content")
	}

	return []byte(message.Content), nil
}

// TransportError classifies a failed OpenAI call. Rate limiting, server errors,
// network errors and per-call timeouts are transient. Cancellation of parent is
// returned unchanged.
func TransportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return failure.Transient(failure.CategoryTimeout, fmt.Errorf("LLM call timed out: %w", err))
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return failure.Transient(failure.CategoryNetwork, fmt.Errorf("LLM API error: %w", err))
		}
		return fmt.Errorf("LLM API error: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failure.Transient(failure.CategoryNetwork, fmt.Errorf("LLM network error: %w", err))
	}

	return fmt.Errorf("failed to call LLM: %w", err)
}
