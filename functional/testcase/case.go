// Package testcase provides a fluent API for defining functional test cases
// that exercise the wfeval commands against mock servers.
package testcase

import (
	"testing"
)

// TestCase represents a complete functional test scenario
type TestCase struct {
	t    *testing.T
	name string

	// Mock servers
	llm    *LLMBuilder
	engine *EngineBuilder

	dataset *DatasetBuilder
	config  *ConfigBuilder
	args    []string

	// Assertions to run after the test
	assertions []Assertion
}

// New creates a new test case with the given name
func New(t *testing.T, name string) *TestCase {
	return &TestCase{
		t:          t,
		name:       name,
		dataset:    NewDatasetBuilder(),
		config:     NewConfigBuilder(),
		assertions: make([]Assertion, 0),
	}
}

// WithWorkflows adds workflow specs to the data directory
func (tc *TestCase) WithWorkflows(configure func(*DatasetBuilder)) *TestCase {
	configure(tc.dataset)
	return tc
}

// WithLLM configures the mock model serving both the generator and the judge.
func (tc *TestCase) WithLLM(configure func(*LLMBuilder)) *TestCase {
	tc.llm = NewLLMBuilder()
	configure(tc.llm)
	return tc
}

// WithEngine configures the mock execution engine
func (tc *TestCase) WithEngine(configure func(*EngineBuilder)) *TestCase {
	tc.engine = NewEngineBuilder()
	configure(tc.engine)
	return tc
}

// WithConfig adjusts the generated config file
func (tc *TestCase) WithConfig(configure func(*ConfigBuilder)) *TestCase {
	configure(tc.config)
	return tc
}

// WithArgs appends arguments to the run command line
func (tc *TestCase) WithArgs(args ...string) *TestCase {
	tc.args = append(tc.args, args...)
	return tc
}

// Expect adds an assertion to be checked after the test runs
func (tc *TestCase) Expect(a Assertion) *TestCase {
	tc.assertions = append(tc.assertions, a)
	return tc
}

// ExpectRunSucceeded asserts that the command returned no error
func (tc *TestCase) ExpectRunSucceeded() *TestCase {
	return tc.Expect(&RunSucceededAssertion{})
}

// ExpectRunFailedWithError asserts that the command failed with an error containing the substring
func (tc *TestCase) ExpectRunFailedWithError(contains string) *TestCase {
	return tc.Expect(&RunFailedWithErrorAssertion{Contains: contains})
}

// ExpectLayer asserts the succeeded and failed counts of a layer
func (tc *TestCase) ExpectLayer(layer, succeeded, failed int) *TestCase {
	return tc.Expect(&LayerCountsAssertion{Layer: layer, Succeeded: succeeded, Failed: failed})
}

// ExpectItemFailed asserts that an item of a layer failed with the given kind
func (tc *TestCase) ExpectItemFailed(layer int, id, kind string) *TestCase {
	return tc.Expect(&ItemFailedAssertion{Layer: layer, ItemID: id, Kind: kind})
}

// ExpectUnknownErrors asserts the number of unknown errors in the report
func (tc *TestCase) ExpectUnknownErrors(n int) *TestCase {
	return tc.Expect(&UnknownErrorsAssertion{Count: n})
}

// ExpectPipelineSuccessRate asserts the overall pipeline success rate
func (tc *TestCase) ExpectPipelineSuccessRate(rate float64) *TestCase {
	return tc.Expect(&PipelineSuccessRateAssertion{Rate: rate})
}

// ExpectEngineCalls asserts how many times the engine ran a graph
func (tc *TestCase) ExpectEngineCalls(n int) *TestCase {
	return tc.Expect(&EngineCallsAssertion{Times: n})
}

// ExpectLLMRequests asserts how many requests reached the mock model
func (tc *TestCase) ExpectLLMRequests(n int) *TestCase {
	return tc.Expect(&LLMRequestsAssertion{Times: n})
}

// ExpectOutputContains asserts that the command output contains a substring
func (tc *TestCase) ExpectOutputContains(substring string) *TestCase {
	return tc.Expect(&OutputContainsAssertion{Substring: substring})
}

// ExpectOutputMatches asserts that the command output matches a regex
func (tc *TestCase) ExpectOutputMatches(pattern string) *TestCase {
	return tc.Expect(&OutputMatchesAssertion{Pattern: pattern})
}

// Run executes the test case
func (tc *TestCase) Run() {
	tc.t.Helper()
	tc.t.Run(tc.name, func(t *testing.T) {
		runner := &Runner{tc: tc, t: t}
		runner.Run()
	})
}

// Name returns the test case name
func (tc *TestCase) Name() string {
	return tc.name
}
