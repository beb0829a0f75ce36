package index

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

func TestClientEntriesGzip(t *testing.T) {
	t.Parallel()

	text := preamble + "320193|Apple Inc.|4|20250213|edgar/data/320193/0000320193-25-000010.txt\n"
	compressed := gzipBytes(t, []byte(text))

	var gotPath, gotUA, gotEncoding, gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotEncoding = r.Header.Get("Accept-Encoding")
		gotHost = r.Host
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compressed)
	}))
	t.Cleanup(srv.Close)

	client := New(Config{BaseURL: srv.URL, Host: "www.sec.gov", UserAgent: "Test Agent test@example.com"}, nil)
	entries, err := client.Entries(context.Background(), civil.Date{Year: 2025, Month: 2, Day: 13})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "320193", entries[0].CIK)

	assert.Equal(t, "/Archives/edgar/daily-index/2025/QTR1/master.20250213.idx", gotPath)
	assert.Equal(t, "Test Agent test@example.com", gotUA)
	assert.Equal(t, "gzip", gotEncoding)
	assert.Equal(t, "www.sec.gov", gotHost)
}

func TestClientStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: edgar.ErrIndexNotFound},
		{name: "forbidden", status: http.StatusForbidden, want: edgar.ErrFetch},
		{name: "too many requests", status: http.StatusTooManyRequests, want: edgar.ErrFetch},
		{name: "server error", status: http.StatusServiceUnavailable, want: edgar.ErrFetch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			client := New(Config{BaseURL: srv.URL}, nil)
			_, err := client.Entries(context.Background(), civil.Date{Year: 2025, Month: 7, Day: 4})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClientCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{BaseURL: srv.URL}, nil).Entries(ctx, civil.Date{Year: 2025, Month: 1, Day: 2})
	require.ErrorIs(t, err, edgar.ErrFetch)
}
