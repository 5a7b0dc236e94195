package dune

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/basenuts/nut-state/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockDune) *Client {
	t.Helper()

	cfg := DefaultConfig("test-api-key")
	cfg.BaseURL = mock.URL()

	client, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"}, zerolog.Nop())
	if err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestRows(t *testing.T) {
	mock := testutil.NewMockDune()
	defer mock.Close()
	mock.SetQueryRows("4816299", `[{"fid": 880, "peanut_count": 12}, {"parent_fid": 123, "peanut_count": 7}]`)

	client := newTestClient(t, mock)

	rows, err := client.Rows(context.Background(), "4816299")
	if err != nil {
		t.Fatalf("Rows() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Rows() returned %d rows, want 2", len(rows))
	}
	if rows[0]["peanut_count"] != float64(12) {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if mock.LastAPIKey != "test-api-key" {
		t.Errorf("Expected API key header to be sent, got %q", mock.LastAPIKey)
	}
}

func TestRows_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		resp testutil.MockDuneResponse
	}{
		{name: "rate_limited", resp: testutil.NewRateLimitResponse()},
		{name: "server_error", resp: testutil.NewServerErrorResponse()},
		{name: "not_found", resp: testutil.MockDuneResponse{StatusCode: 404, Body: `{"error": "not found"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockDune()
			defer mock.Close()
			mock.SetResponse("/api/v1/query/4816299/results", tt.resp)

			client := newTestClient(t, mock)

			if _, err := client.Rows(context.Background(), "4816299"); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestRows_MalformedBody(t *testing.T) {
	mock := testutil.NewMockDune()
	defer mock.Close()
	mock.SetResponse("/api/v1/query/4816299/results", testutil.MockDuneResponse{
		StatusCode: 200,
		Body:       `{not json`,
	})

	client := newTestClient(t, mock)

	if _, err := client.Rows(context.Background(), "4816299"); err == nil {
		t.Error("Expected decode error, got nil")
	}
}

func TestRows_NetworkError(t *testing.T) {
	mock := testutil.NewMockDune()
	mock.Close() // server down

	client := newTestClient(t, mock)

	if _, err := client.Rows(context.Background(), "4816299"); err == nil {
		t.Error("Expected network error, got nil")
	}
}

func TestExecute(t *testing.T) {
	mock := testutil.NewMockDune()
	defer mock.Close()
	mock.SetExecution("4816299", "01JPQR-EXEC-1")

	client := newTestClient(t, mock)

	executionID, err := client.Execute(context.Background(), "4816299")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if executionID != "01JPQR-EXEC-1" {
		t.Errorf("Execute() = %q, want %q", executionID, "01JPQR-EXEC-1")
	}
}

func TestExecute_MissingExecutionID(t *testing.T) {
	mock := testutil.NewMockDune()
	defer mock.Close()
	mock.SetResponse("/api/v1/query/4816299/execute", testutil.MockDuneResponse{
		StatusCode: 200,
		Body:       `{"state": "QUERY_STATE_PENDING"}`,
	})

	client := newTestClient(t, mock)

	if _, err := client.Execute(context.Background(), "4816299"); err == nil {
		t.Error("Expected error for missing execution id")
	}
}

func TestExecutionRows(t *testing.T) {
	mock := testutil.NewMockDune()
	defer mock.Close()
	mock.SetExecutionRows("01JPQR-EXEC-1", `[{"fid": 880, "rank": 17}]`)

	client := newTestClient(t, mock)

	rows, err := client.ExecutionRows(context.Background(), "01JPQR-EXEC-1")
	if err != nil {
		t.Fatalf("ExecutionRows() error: %v", err)
	}
	if len(rows) != 1 || rows[0]["rank"] != float64(17) {
		t.Errorf("Unexpected rows: %+v", rows)
	}
}

func TestExecutionRows_StillRunning(t *testing.T) {
	mock := testutil.NewMockDune()
	defer mock.Close()
	mock.SetExecutionPending("01JPQR-EXEC-2")

	client := newTestClient(t, mock)

	_, err := client.ExecutionRows(context.Background(), "01JPQR-EXEC-2")
	if !errors.Is(err, ErrStillRunning) {
		t.Errorf("ExecutionRows() error = %v, want ErrStillRunning", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorClass
	}{
		{name: "too_many_requests", status: 429, want: ErrorClassRateLimit},
		{name: "bad_request", status: 400, want: ErrorClassClient},
		{name: "unauthorized", status: 401, want: ErrorClassClient},
		{name: "server_error", status: 500, want: ErrorClassServer},
		{name: "bad_gateway", status: 502, want: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
