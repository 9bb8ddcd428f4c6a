package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Matcher selects the requests a scripted response applies to.
type Matcher func(req *ChatCompletionRequest) bool

func AnyRequest() Matcher {
	return func(*ChatCompletionRequest) bool { return true }
}

func UserMessageContains(substring string) Matcher {
	return func(req *ChatCompletionRequest) bool {
		return strings.Contains(req.UserPrompt(), substring)
	}
}

func SystemMessageContains(substring string) Matcher {
	return func(req *ChatCompletionRequest) bool {
		return strings.Contains(req.SystemPrompt(), substring)
	}
}

func MessageMatches(pattern string) Matcher {
	re := regexp.MustCompile(pattern)
	return func(req *ChatCompletionRequest) bool {
		for _, m := range req.Messages {
			if re.MatchString(m.Content) {
				return true
			}
		}
		return false
	}
}

// OffersTool matches requests that offer a tool named name.
func OffersTool(name string) Matcher {
	return func(req *ChatCompletionRequest) bool {
		for _, t := range req.ToolNames() {
			if t == name {
				return true
			}
		}
		return false
	}
}

// All matches requests that every matcher accepts.
func All(matchers ...Matcher) Matcher {
	return func(req *ChatCompletionRequest) bool {
		for _, m := range matchers {
			if !m(req) {
				return false
			}
		}
		return true
	}
}

type rule struct {
	matcher   Matcher
	responses []*Response
	served    int
}

// MockOpenAIServer is an httptest server speaking the chat completions API.
// Rules are evaluated in registration order; a rule with several responses serves
// them in sequence and then repeats the last one.
type MockOpenAIServer struct {
	mu       sync.Mutex
	rules    []*rule
	requests []ChatCompletionRequest
	server   *httptest.Server
}

func NewMockOpenAIServer() *MockOpenAIServer {
	return &MockOpenAIServer{}
}

// On registers responses for requests matching m.
func (s *MockOpenAIServer) On(m Matcher, responses ...*Response) *MockOpenAIServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{matcher: m, responses: responses})
	return s
}

// Start serves on a random local port and returns the base URL to configure the
// client with.
func (s *MockOpenAIServer) Start() string {
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s.URL()
}

func (s *MockOpenAIServer) URL() string {
	if s.server == nil {
		return ""
	}
	return s.server.URL + "/v1"
}

func (s *MockOpenAIServer) Close() {
	if s.server != nil {
		s.server.Close()
	}
}

// Requests returns a copy of every request received.
func (s *MockOpenAIServer) Requests() []ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatCompletionRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *MockOpenAIServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *MockOpenAIServer) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}

	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse(http.StatusBadRequest, err.Error()).Error)
		return
	}

	resp := s.next(req)
	if resp == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse(http.StatusNotImplemented, "no scripted response").Error)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if resp.Error != nil {
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp.Error)
		return
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}

func (s *MockOpenAIServer) next(req ChatCompletionRequest) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	for _, rl := range s.rules {
		if !rl.matcher(&req) || len(rl.responses) == 0 {
			continue
		}
		idx := min(rl.served, len(rl.responses)-1)
		rl.served++
		return rl.responses[idx]
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
