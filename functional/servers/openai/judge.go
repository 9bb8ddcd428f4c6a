package openai

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tool names the judge asks the model to call.
const (
	StructureTool = "submit_structure_assessment"
	OutputTool    = "submit_output_assessment"
)

// StructureResult is the payload of a submit_structure_assessment call.
type StructureResult struct {
	StructuralIntegrity any      `json:"structuralIntegrity"`
	InputOutputMatching any      `json:"inputOutputMatching"`
	TaskDecomposition   any      `json:"taskDecomposition"`
	Score               any      `json:"score,omitempty"`
	Issues              []string `json:"issues,omitempty"`
	Reasoning           string   `json:"reasoning,omitempty"`
}

// Completeness is the completeness check of an OutputResult.
type Completeness struct {
	Complete     bool     `json:"complete"`
	MissingGoals []string `json:"missingGoals,omitempty"`
	Score        any      `json:"score"`
}

// OutputResult is the payload of a submit_output_assessment call.
type OutputResult struct {
	Coherence    any          `json:"coherence"`
	Diversity    any          `json:"diversity"`
	Usefulness   any          `json:"usefulness"`
	Completeness Completeness `json:"completeness"`
	Reasoning    string       `json:"reasoning,omitempty"`
}

// ToolCallResponse creates a completion whose message calls tool with args.
func ToolCallResponse(tool string, args any) *Response {
	data, _ := json.Marshal(args)
	return ToolCallRaw(tool, string(data))
}

// ToolCallRaw creates a completion whose message calls tool with raw arguments.
func ToolCallRaw(tool, arguments string) *Response {
	return &Response{
		Body: &ChatCompletionResponse{
			ID:      "chatcmpl-mock-judge",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   "gpt-4o",
			Choices: []Choice{{
				Index: 0,
				Message: Message{
					Role: "assistant",
					ToolCalls: []ToolCall{{
						ID:   "call_mock_judge_001",
						Type: "function",
						Function: FunctionCall{
							Name:      tool,
							Arguments: arguments,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
			Usage: &Usage{
				PromptTokens:     100,
				CompletionTokens: 50,
				TotalTokens:      150,
			},
		},
	}
}

// ContentResponse creates a completion with a plain assistant message.
func ContentResponse(content string) *Response {
	return &Response{
		Body: &ChatCompletionResponse{
			ID:      "chatcmpl-mock-content",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   "gpt-4o",
			Choices: []Choice{{
				Index: 0,
				Message: Message{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			}},
		},
	}
}

// StructureScore creates a structure assessment with the same score for every
// criterion.
func StructureScore(score float64, issues ...string) *Response {
	return ToolCallResponse(StructureTool, StructureResult{
		StructuralIntegrity: score,
		InputOutputMatching: score,
		TaskDecomposition:   score,
		Score:               score,
		Issues:              issues,
		Reasoning:           fmt.Sprintf("scored %.1f", score),
	})
}

// OutputScore creates an output assessment.
func OutputScore(coherence, diversity, usefulness, completeness float64, missing ...string) *Response {
	return ToolCallResponse(OutputTool, OutputResult{
		Coherence:  coherence,
		Diversity:  diversity,
		Usefulness: usefulness,
		Completeness: Completeness{
			Complete:     len(missing) == 0,
			MissingGoals: missing,
			Score:        completeness,
		},
		Reasoning: "mock assessment",
	})
}

// InvalidArguments creates a tool call with arguments that are not JSON.
func InvalidArguments(tool string) *Response {
	return ToolCallRaw(tool, "{invalid json")
}

// ErrorResponse creates an API error response.
func ErrorResponse(statusCode int, message string) *Response {
	return &Response{
		StatusCode: statusCode,
		Error: &APIError{
			Error: APIErrorDetail{
				Message: message,
				Type:    "server_error",
				Code:    "internal_error",
			},
		},
	}
}

// RateLimited creates a 429 response.
func RateLimited() *Response {
	resp := ErrorResponse(429, "Rate limit exceeded. Please retry after some time.")
	resp.Error.Error.Type = "rate_limit_error"
	resp.Error.Error.Code = "rate_limit_exceeded"
	return resp
}

// ServiceUnavailable creates a 503 response.
func ServiceUnavailable() *Response {
	resp := ErrorResponse(503, "The server is currently unavailable. Please try again later.")
	resp.Error.Error.Code = "service_unavailable"
	return resp
}

// Delayed returns resp after delay, to exercise client timeouts.
func Delayed(resp *Response, delay time.Duration) *Response {
	resp.Delay = delay
	return resp
}

// EmptyChoices creates a response with no choices.
func EmptyChoices() *Response {
	return &Response{
		Body: &ChatCompletionResponse{
			ID:      "chatcmpl-mock-empty",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   "gpt-4o",
			Choices: []Choice{},
		},
	}
}
