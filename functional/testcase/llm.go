package testcase

import (
	"github.com/mcpchecker/wfeval/functional/servers/openai"
)

// LLMBuilder provides a fluent API for configuring the mock model. The same
// server answers generator and judge requests; requests are told apart by the
// tool they offer.
type LLMBuilder struct {
	server   *openai.MockOpenAIServer
	defaults []func()
}

// NewLLMBuilder creates a new LLM builder
func NewLLMBuilder() *LLMBuilder {
	return &LLMBuilder{
		server: openai.NewMockOpenAIServer(),
	}
}

// ForRequirement scripts the responses for requests whose prompt contains the
// requirement text. These take precedence over the defaults.
func (b *LLMBuilder) ForRequirement(substring string) *RequirementBuilder {
	return &RequirementBuilder{llm: b, matcher: openai.UserMessageContains(substring)}
}

// Generates sets the default generator response
func (b *LLMBuilder) Generates(responses ...*openai.Response) *LLMBuilder {
	b.defaults = append(b.defaults, func() {
		b.server.On(openai.OffersTool(openai.WorkflowTool), responses...)
	})
	return b
}

// ScoresStructure sets the default structure assessment
func (b *LLMBuilder) ScoresStructure(responses ...*openai.Response) *LLMBuilder {
	b.defaults = append(b.defaults, func() {
		b.server.On(openai.OffersTool(openai.StructureTool), responses...)
	})
	return b
}

// ScoresOutput sets the default output assessment
func (b *LLMBuilder) ScoresOutput(responses ...*openai.Response) *LLMBuilder {
	b.defaults = append(b.defaults, func() {
		b.server.On(openai.OffersTool(openai.OutputTool), responses...)
	})
	return b
}

// Build returns the configured mock server, with the defaults registered after
// every requirement specific rule.
func (b *LLMBuilder) Build() *openai.MockOpenAIServer {
	for _, register := range b.defaults {
		register()
	}
	b.defaults = nil
	return b.server
}

// RequirementBuilder scripts the responses for one requirement
type RequirementBuilder struct {
	llm     *LLMBuilder
	matcher openai.Matcher
}

// Generates sets the generator response for the requirement
func (rb *RequirementBuilder) Generates(responses ...*openai.Response) *RequirementBuilder {
	rb.llm.server.On(openai.All(rb.matcher, openai.OffersTool(openai.WorkflowTool)), responses...)
	return rb
}

// ScoresStructure sets the structure assessment for the requirement
func (rb *RequirementBuilder) ScoresStructure(responses ...*openai.Response) *RequirementBuilder {
	rb.llm.server.On(openai.All(rb.matcher, openai.OffersTool(openai.StructureTool)), responses...)
	return rb
}

// ScoresOutput sets the output assessment for the requirement
func (rb *RequirementBuilder) ScoresOutput(responses ...*openai.Response) *RequirementBuilder {
	rb.llm.server.On(openai.All(rb.matcher, openai.OffersTool(openai.OutputTool)), responses...)
	return rb
}

// Done returns the LLMBuilder to continue configuration
func (rb *RequirementBuilder) Done() *LLMBuilder {
	return rb.llm
}
