// Package testutil provides testing utilities for the frame service.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockDuneResponse defines the behavior for a mock Dune endpoint response.
type MockDuneResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDune is a configurable mock Dune API server for testing.
type MockDune struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount   int
	LastAPIKey     string
	RequestedPaths []string
}

// NewMockDune creates a new mock Dune server.
func NewMockDune() *MockDune {
	mock := &MockDune{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastAPIKey = r.Header.Get("X-Dune-API-Key")
		mock.RequestedPaths = append(mock.RequestedPaths, r.URL.Path)
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDune) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDune) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockDune) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastAPIKey = ""
	m.RequestedPaths = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockDune) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockDune) SetResponse(path string, resp MockDuneResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetQueryRows configures the precomputed-results endpoint for a query id
// with a JSON array of rows, e.g. `[{"fid": 880, "peanut_count": 12}]`.
func (m *MockDune) SetQueryRows(queryID, rowsJSON string) {
	m.SetResponse(fmt.Sprintf("/api/v1/query/%s/results", queryID), MockDuneResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"state": "QUERY_STATE_COMPLETED", "result": {"rows": %s}}`, rowsJSON),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// SetExecution configures the execute endpoint for a query id to return the
// given execution handle.
func (m *MockDune) SetExecution(queryID, executionID string) {
	m.SetResponse(fmt.Sprintf("/api/v1/query/%s/execute", queryID), MockDuneResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"execution_id": %q, "state": "QUERY_STATE_PENDING"}`, executionID),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// SetExecutionRows configures the execution-results endpoint for a handle.
func (m *MockDune) SetExecutionRows(executionID, rowsJSON string) {
	m.SetResponse(fmt.Sprintf("/api/v1/execution/%s/results", executionID), MockDuneResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"execution_id": %q, "state": "QUERY_STATE_COMPLETED", "result": {"rows": %s}}`, executionID, rowsJSON),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// SetExecutionPending configures the execution-results endpoint to report a
// still-running execution.
func (m *MockDune) SetExecutionPending(executionID string) {
	m.SetResponse(fmt.Sprintf("/api/v1/execution/%s/results", executionID), MockDuneResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"execution_id": %q, "state": "QUERY_STATE_EXECUTING"}`, executionID),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDune) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler answers any unconfigured path with an empty result set.
func (m *MockDune) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"state": "QUERY_STATE_COMPLETED", "result": {"rows": []}}`))
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockDuneResponse {
	return MockDuneResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockDuneResponse {
	return MockDuneResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
