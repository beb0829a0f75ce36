package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/scheduler"
)

var feb13 = civil.Date{Year: 2025, Month: time.February, Day: 13}

type fakeStatus struct{ status scheduler.Status }

func (f fakeStatus) Status() scheduler.Status { return f.status }

type fakeCheckpoints struct {
	days map[civil.Date][]edgar.FilingTransaction
	err  error
}

func (f fakeCheckpoints) Load(_ context.Context, day civil.Date) ([]edgar.FilingTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	txs, ok := f.days[day]
	if !ok {
		return nil, fmt.Errorf("checkpoint %s: %w", day, edgar.ErrNotFound)
	}
	return txs, nil
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(Options{}), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ok := NewServer(Options{Ready: map[string]Check{
		"postgres": func(context.Context) error { return nil },
	}})
	require.Equal(t, http.StatusOK, serve(t, ok, "/readyz").Code)

	failing := NewServer(Options{Ready: map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}})
	rec := serve(t, failing, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Failing map[string]string `json:"failing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"redis": "dial tcp: refused"}, body.Failing)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(Options{})
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"), "expected http metrics to be exported")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusServiceUnavailable, serve(t, NewServer(Options{}), "/v1/status").Code)

	s := NewServer(Options{Status: fakeStatus{status: scheduler.Status{
		RunID:    "run-1",
		Cursor:   feb13,
		Outcomes: map[scheduler.Outcome]int{scheduler.OutcomeCrawled: 2},
	}}})
	rec := serve(t, s, "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got scheduler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, feb13, got.Cursor)
	assert.Equal(t, 2, got.Outcomes[scheduler.OutcomeCrawled])
}

func TestCheckpoint(t *testing.T) {
	t.Parallel()

	s := NewServer(Options{Checkpoints: fakeCheckpoints{days: map[civil.Date][]edgar.FilingTransaction{
		feb13: {{AccessNo: "0000320193-25-000010", FormDate: feb13, TransDate: feb13}},
	}}})

	rec := serve(t, s, "/v1/checkpoints/2025-02-13")
	require.Equal(t, http.StatusOK, rec.Code)
	var body checkpointDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "0000320193-25-000010", body.Transactions[0].AccessNo)

	assert.Equal(t, http.StatusNotFound, serve(t, s, "/v1/checkpoints/2025-02-14").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/v1/checkpoints/20250213").Code)

	broken := NewServer(Options{Checkpoints: fakeCheckpoints{err: errors.New("disk")}})
	assert.Equal(t, http.StatusInternalServerError, serve(t, broken, "/v1/checkpoints/2025-02-13").Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(Options{}), "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	NewServer(Options{}).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(Options{Status: panicStatus{}})
	rec := serve(t, s, "/v1/status")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicStatus struct{}

func (panicStatus) Status() scheduler.Status { panic("boom") }

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
