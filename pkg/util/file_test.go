package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.json")

	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestUnmarshalWithKind(t *testing.T) {
	tt := map[string]struct {
		data      string
		expectErr bool
	}{
		"matching kind": {
			data: `{"kind":"EvalConfig","name":"x"}`,
		},
		"wrong kind": {
			data:      `{"kind":"Task","name":"x"}`,
			expectErr: true,
		},
		"missing kind": {
			data:      `{"name":"x"}`,
			expectErr: true,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			target := struct {
				Name string `json:"name"`
			}{}
			err := UnmarshalWithKind([]byte(tc.data), &target, "EvalConfig")
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", target.Name)
		})
	}
}

func TestVerboseContext(t *testing.T) {
	ctx := WithVerbose(t.Context(), true)
	assert.True(t, IsVerbose(ctx))
	assert.False(t, IsVerbose(t.Context()))
}

func TestLoggerFromContext(t *testing.T) {
	assert.NotNil(t, LoggerFrom(t.Context()))

	logger := zap.NewExample()
	ctx := WithLogger(t.Context(), logger)
	assert.Same(t, logger, LoggerFrom(ctx))
}
