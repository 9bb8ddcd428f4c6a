// Package engine provides a mock workflow execution engine served over the
// streamable MCP transport.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	evalengine "github.com/mcpchecker/wfeval/pkg/engine"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// MockEngine serves the execute_workflow tool and records every call.
type MockEngine struct {
	mu       sync.Mutex
	name     string
	execute  evalengine.ExecuteFunc
	calls    []CapturedExecution
	listener net.Listener
	httpSrv  *http.Server
	ready    chan struct{}
}

// CapturedExecution stores one execute_workflow invocation for assertions.
type CapturedExecution struct {
	Goal      string
	Inputs    map[string]any
	Output    json.RawMessage
	Error     error
	Timestamp time.Time
}

// NewMockEngine creates a mock engine that runs graphs with fn. A nil fn echoes
// a value for every declared output.
func NewMockEngine(name string, fn evalengine.ExecuteFunc) *MockEngine {
	if fn == nil {
		fn = EchoOutputs()
	}
	return &MockEngine{
		name:    name,
		execute: fn,
		calls:   make([]CapturedExecution, 0),
		ready:   make(chan struct{}),
	}
}

// Start starts the engine on a random available port and returns its URL.
func (s *MockEngine) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	server := evalengine.NewMCPServer(s.name, s.record)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to listen on random port: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/mcp", evalengine.Handler(server))

	s.httpSrv = &http.Server{
		Handler: mux,
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("mock engine %q error: %v\n", s.name, err)
		}
	}()

	close(s.ready)
	return s.url(), nil
}

func (s *MockEngine) record(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error) {
	out, err := s.execute(ctx, graph, inputs)

	s.mu.Lock()
	s.calls = append(s.calls, CapturedExecution{
		Goal:      graph.Goal,
		Inputs:    inputs,
		Output:    out,
		Error:     err,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	return out, err
}

// Stop stops the server
func (s *MockEngine) Stop() error {
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// URL returns the engine's MCP endpoint, e.g. "http://127.0.0.1:12345/mcp".
func (s *MockEngine) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url()
}

func (s *MockEngine) url() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s/mcp", s.listener.Addr().String())
}

func (s *MockEngine) Name() string {
	return s.name
}

// Calls returns all captured executions
func (s *MockEngine) Calls() []CapturedExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]CapturedExecution, len(s.calls))
	copy(result, s.calls)
	return result
}

func (s *MockEngine) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallsForGoal returns the executions of graphs with the given goal.
func (s *MockEngine) CallsForGoal(goal string) []CapturedExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]CapturedExecution, 0)
	for _, call := range s.calls {
		if call.Goal == goal {
			result = append(result, call)
		}
	}
	return result
}

// Reset clears all captured calls
func (s *MockEngine) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make([]CapturedExecution, 0)
}

// WaitReady blocks until the server is ready
func (s *MockEngine) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
