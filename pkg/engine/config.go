package engine

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	TransportTypeHttp  = "http"
	TransportTypeStdio = "stdio"
)

// Config locates the execution engine. HTTP engines are reached over the
// streamable MCP transport; stdio engines are started as a subprocess.
type Config struct {
	// Type is "http" or "stdio". Inferred from URL or Command when empty.
	Type string `json:"type,omitempty"`

	// URL is the MCP endpoint. May contain ${VAR} or ${VAR:-default} references.
	URL string `json:"url,omitempty"`

	// Headers are sent with every HTTP request. Values may contain env references.
	Headers map[string]string `json:"headers,omitempty"`

	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Tool overrides the tool name, default execute_workflow.
	Tool string `json:"tool,omitempty"`
}

// IsStdio returns true if this is a stdio-based (command) engine.
func (c *Config) IsStdio() bool {
	if c.Type == TransportTypeStdio {
		return true
	}
	if c.Type == TransportTypeHttp {
		return false
	}
	return c.Command != ""
}

// IsHttp returns true if this is an HTTP-based engine.
func (c *Config) IsHttp() bool {
	if c.Type == TransportTypeHttp {
		return true
	}
	if c.Type == TransportTypeStdio {
		return false
	}
	return c.URL != ""
}

// Configured reports whether any engine location is set.
func (c *Config) Configured() bool {
	return c.URL != "" || c.Command != ""
}

func (c *Config) Validate() error {
	switch {
	case c.IsHttp():
		if c.URL == "" {
			return fmt.Errorf("engine url is required for http engines")
		}
	case c.IsStdio():
		if c.Command == "" {
			return fmt.Errorf("engine command is required for stdio engines")
		}
	default:
		return fmt.Errorf("engine must specify either command or url")
	}
	return nil
}

func (c *Config) ToolName() string {
	if c.Tool != "" {
		return c.Tool
	}
	return ToolName
}

// Transport builds the MCP transport for the engine, expanding environment
// references in the URL and headers.
func (c *Config) Transport() (mcp.Transport, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.IsStdio() {
		cmd := exec.Command(c.Command, c.Args...)
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	}

	url, err := ExpandEnv(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to expand engine url: %w", err)
	}

	headers := make(map[string]string, len(c.Headers))
	var errs []error
	for k, v := range c.Headers {
		expanded, err := ExpandEnv(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("header %q: %w", k, err))
			continue
		}
		headers[k] = expanded
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &mcp.StreamableClientTransport{
		Endpoint:   url,
		HTTPClient: &http.Client{Transport: NewHeaderRoundTripper(headers, nil)},
	}, nil
}
