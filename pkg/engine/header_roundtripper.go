package engine

import (
	"net/http"
)

// HeaderRoundTripper wraps an http.RoundTripper and adds custom headers to every request.
type HeaderRoundTripper struct {
	Headers   map[string]string
	Transport http.RoundTripper
}

// NewHeaderRoundTripper creates a new HeaderRoundTripper with the given headers.
// If transport is nil, http.DefaultTransport is used.
func NewHeaderRoundTripper(headers map[string]string, transport http.RoundTripper) *HeaderRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HeaderRoundTripper{
		Headers:   headers,
		Transport: transport,
	}
}

func (h *HeaderRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}
	return h.Transport.RoundTrip(req)
}
