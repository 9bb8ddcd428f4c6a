package llmjudge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/mcpchecker/wfeval/pkg/failure"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiJudge scores through the Gemini API in JSON response mode.
type GeminiJudge struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

var _ Judge = &GeminiJudge{}

func NewGeminiJudge(ctx context.Context, cfg Config) (*GeminiJudge, error) {
	cfg = cfg.WithDefaults()

	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found: set the %s environment variable", cfg.APIKeyEnv)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := cfg.BaseUrl(); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiJudge{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.GetTemperature()),
		timeout:     cfg.Timeout,
	}, nil
}

func (j *GeminiJudge) ModelName() string {
	return j.model
}

func (j *GeminiJudge) ScoreStructure(ctx context.Context, workflowJSON json.RawMessage, requirement string) (*StructureScore, error) {
	system, user, err := BuildStructurePrompts(requirement, string(workflowJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to build structure prompts: %w", err)
	}

	raw, err := j.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}

	return ParseStructureScore(raw)
}

func (j *GeminiJudge) ScoreOutput(ctx context.Context, output json.RawMessage, requirement string) (*OutputScore, error) {
	system, user, err := BuildOutputPrompts(requirement, string(output))
	if err != nil {
		return nil, fmt.Errorf("failed to build output prompts: %w", err)
	}

	raw, err := j.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}

	return ParseOutputScore(raw)
}

func (j *GeminiJudge) generate(ctx context.Context, system, user string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.client.Models.GenerateContent(callCtx, j.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(j.temperature),
	})
	if err != nil {
		return nil, geminiError(ctx, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, malformed("Gemini returned no text")
	}

	return []byte(text), nil
}

func geminiError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return failure.Transient(failure.CategoryTimeout, fmt.Errorf("Gemini call timed out: %w", err))
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return failure.Transient(failure.CategoryNetwork, fmt.Errorf("Gemini API error: %w", err))
		}
		return fmt.Errorf("Gemini API error: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failure.Transient(failure.CategoryNetwork, fmt.Errorf("Gemini network error: %w", err))
	}

	return fmt.Errorf("failed to call Gemini: %w", err)
}
