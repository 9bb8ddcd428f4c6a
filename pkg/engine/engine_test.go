package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

func testGraph() *workflow.Graph {
	return &workflow.Graph{
		Goal:    "summarize a document",
		Inputs:  []workflow.FieldDecl{{Name: "document", Type: workflow.KindString}},
		Outputs: []workflow.FieldDecl{{Name: "summary", Type: workflow.KindString}},
		Nodes: []workflow.Node{
			{
				Name:    "summarize",
				Inputs:  []workflow.FieldDecl{{Name: "document", Type: workflow.KindString}},
				Outputs: []workflow.FieldDecl{{Name: "summary", Type: workflow.KindString}},
			},
		},
	}
}

func connectInMemory(t *testing.T, fn ExecuteFunc) *MCPEngine {
	t.Helper()

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	server := NewMCPServer("test-engine", fn)
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	eng := NewMCPEngineFromTransport(clientTransport, nil)
	t.Cleanup(func() {
		_ = eng.Close()
		_ = serverSession.Close()
	})
	return eng
}

func TestMCPEngineExecute(t *testing.T) {
	tt := map[string]struct {
		fn             ExecuteFunc
		expectOutput   string
		expectKind     failure.Kind
		expectCategory failure.Category
		expectSentinel error
		retryable      bool
	}{
		"object output": {
			fn: func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
				return json.RawMessage(fmt.Sprintf(`{"summary":"%s"}`, in["document"])), nil
			},
			expectOutput: `{"summary":"hello"}`,
		},
		"non object output": {
			fn: func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
				return json.RawMessage(`["a","b"]`), nil
			},
			expectOutput: `["a","b"]`,
		},
		"invalid binding": {
			fn: func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
				return nil, fmt.Errorf("%w: document is missing", ErrInvalidBinding)
			},
			expectKind:     failure.KindExpected,
			expectCategory: failure.CategoryInvalidInput,
			expectSentinel: ErrInvalidBinding,
		},
		"validation": {
			fn: func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
				return nil, fmt.Errorf("%w: cycle detected", ErrValidation)
			},
			expectKind:     failure.KindExpected,
			expectCategory: failure.CategoryValidation,
			expectSentinel: ErrValidation,
		},
		"unavailable": {
			fn: func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
				return nil, ErrUnavailable
			},
			expectKind:     failure.KindExpected,
			expectCategory: failure.CategoryNetwork,
			expectSentinel: ErrUnavailable,
			retryable:      true,
		},
		"engine bug": {
			fn: func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
				return nil, errors.New("nil pointer in node summarize")
			},
			expectKind:     failure.KindUnknown,
			expectCategory: failure.CategoryInternal,
			expectSentinel: ErrExecutionFailed,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			eng := connectInMemory(t, tc.fn)

			out, err := eng.Execute(context.Background(), testGraph(), map[string]any{"document": "hello"})
			if tc.expectSentinel != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectSentinel)
				assert.True(t, IsEngineError(err))

				rec := failure.Classify("layer_2", err)
				assert.Equal(t, tc.expectKind, rec.Kind)
				assert.Equal(t, tc.expectCategory, rec.Category)
				assert.Equal(t, tc.retryable, failure.IsRetryable(err, false))
				return
			}

			require.NoError(t, err)
			assert.JSONEq(t, tc.expectOutput, string(out))
		})
	}
}

func TestMCPEngineSendsGraph(t *testing.T) {
	var received *workflow.Graph
	var inputs map[string]any
	eng := connectInMemory(t, func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
		received, inputs = g, in
		return json.RawMessage(`{}`), nil
	})

	_, err := eng.Execute(context.Background(), testGraph(), map[string]any{"document": "hello", "limit": 3})
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, testGraph(), received)
	assert.Equal(t, "hello", inputs["document"])
	assert.EqualValues(t, 3, inputs["limit"])
}

func TestMCPEngineReusesSession(t *testing.T) {
	calls := 0
	eng := connectInMemory(t, func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`{"ok":true}`), nil
	})

	for range 3 {
		_, err := eng.Execute(context.Background(), testGraph(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestMCPEngineTimeout(t *testing.T) {
	eng := connectInMemory(t, func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return json.RawMessage(`{}`), nil
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eng.Execute(ctx, testGraph(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	rec := failure.Classify("layer_2", err)
	assert.Equal(t, failure.KindExpected, rec.Kind)
	assert.Equal(t, failure.CategoryTimeout, rec.Category)
}

func TestMCPEngineHTTP(t *testing.T) {
	server := NewMCPServer("http-engine", func(ctx context.Context, g *workflow.Graph, in map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"nodes":` + fmt.Sprint(len(g.Nodes)) + `}`), nil
	})
	srv := httptest.NewServer(Handler(server))
	defer srv.Close()

	eng, err := NewMCPEngine(Config{URL: srv.URL}, nil)
	require.NoError(t, err)
	defer eng.Close()

	out, err := eng.Execute(context.Background(), testGraph(), map[string]any{"document": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":1}`, string(out))
}

func TestMCPEngineUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	eng, err := NewMCPEngine(Config{URL: url}, nil)
	require.NoError(t, err)

	_, err = eng.Execute(context.Background(), testGraph(), nil)
	require.Error(t, err)

	rec := failure.Classify("layer_2", err)
	assert.Equal(t, failure.KindExpected, rec.Kind)
	assert.Equal(t, failure.CategoryNetwork, rec.Category)
	assert.True(t, failure.IsRetryable(err, false))
}
