package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// Capture is one recorded request to the mock server.
type Capture struct {
	Method      string
	Path        string
	Query       url.Values
	Headers     http.Header
	Body        []byte
	ContentType string
	Timestamp   time.Time
}

// MockAPIServer provides a mock Bot API server for testing.
type MockAPIServer struct {
	*httptest.Server
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	captures []Capture
}

// NewMockServer creates a mock API server.
// The server is automatically closed when the test completes.
func NewMockServer(t *testing.T) *MockAPIServer {
	t.Helper()

	m := &MockAPIServer{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		captures: make([]Capture, 0),
	}

	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

// BaseURL returns the server's base URL for client configuration.
func (m *MockAPIServer) BaseURL() string {
	return m.Server.URL
}

func (m *MockAPIServer) handle(w http.ResponseWriter, r *http.Request) {
	// Read body once for capture
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()

	// Restore body for downstream handler
	r.Body = io.NopCloser(bytes.NewReader(body))

	m.mu.Lock()
	m.captures = append(m.captures, Capture{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Headers:     r.Header.Clone(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		Timestamp:   time.Now(),
	})

	// Find handler; path-only keys match any HTTP method
	handler, exists := m.handlers[r.Method+":"+r.URL.Path]
	if !exists {
		handler, exists = m.handlers[r.URL.Path]
	}
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}

	// Default success response
	ReplyOK(w, map[string]any{})
}

// OnMethod registers a handler for a specific HTTP method and path.
func (m *MockAPIServer) OnMethod(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+":"+path] = handler
}

// On registers a handler for a path regardless of HTTP method.
func (m *MockAPIServer) On(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// Captures returns all captured requests.
func (m *MockAPIServer) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Capture{}, m.captures...)
}

// LastCapture returns the most recent captured request.
func (m *MockAPIServer) LastCapture() *Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.captures) == 0 {
		return nil
	}
	return &m.captures[len(m.captures)-1]
}

// CaptureCount returns the total number of captured requests.
func (m *MockAPIServer) CaptureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}
