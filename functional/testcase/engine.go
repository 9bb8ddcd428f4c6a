package testcase

import (
	"github.com/mcpchecker/wfeval/functional/servers/engine"
	evalengine "github.com/mcpchecker/wfeval/pkg/engine"
)

// EngineBuilder builds a mock execution engine
type EngineBuilder struct {
	name    string
	execute evalengine.ExecuteFunc
	rules   []engine.Rule
}

// NewEngineBuilder creates an engine that echoes the declared outputs
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{name: "mock-engine"}
}

// Execute replaces the default behavior for graphs no rule matches
func (b *EngineBuilder) Execute(fn evalengine.ExecuteFunc) *EngineBuilder {
	b.execute = fn
	return b
}

// RejectGoal reports a validation failure for graphs whose goal contains substring.
func (b *EngineBuilder) RejectGoal(substring, reason string) *EngineBuilder {
	b.rules = append(b.rules, engine.Rejects(engine.GoalContains(substring), reason))
	return b
}

// CrashOnGoal reports an undeclared failure for graphs whose goal contains substring.
func (b *EngineBuilder) CrashOnGoal(substring, reason string) *EngineBuilder {
	b.rules = append(b.rules, engine.Crashes(engine.GoalContains(substring), reason))
	return b
}

// Build creates the mock engine
func (b *EngineBuilder) Build() *engine.MockEngine {
	fn := b.execute
	if len(b.rules) > 0 {
		fn = engine.FailWith(fn, b.rules...)
	}
	return engine.NewMockEngine(b.name, fn)
}
