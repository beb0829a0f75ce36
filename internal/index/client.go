// Package index fetches, decodes and parses the EDGAR daily master index.
package index

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/metrics"
)

// Config controls index requests.
type Config struct {
	BaseURL   string
	Host      string
	UserAgent string
	Timeout   time.Duration
}

// Client fetches daily indexes over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client. The transport is left to negotiate nothing on its own: the
// explicit Accept-Encoding header disables transparent decompression, so the declared
// Content-Encoding reaches Decode untouched.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = edgar.DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: newHTTPTransport(), Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Entries returns the parsed index for day.
func (c *Client) Entries(ctx context.Context, day civil.Date) ([]edgar.IndexEntry, error) {
	text, err := c.Fetch(ctx, day)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(string(text))
	if err != nil {
		return nil, err
	}
	metrics.ObserveIndexEntries(len(entries))
	return entries, nil
}

// Fetch downloads and decodes the raw index text for day.
func (c *Client) Fetch(ctx context.Context, day civil.Date) ([]byte, error) {
	url := edgar.IndexURL(c.cfg.BaseURL, day)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build index request: %w", edgar.ErrFetch, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	if c.cfg.Host != "" {
		req.Host = c.cfg.Host
	}

	c.logger.Debug("fetching daily index", zap.String("url", url))
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", edgar.ErrFetch, url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below

	switch {
	// EDGAR also answers 403 when throttling, so only 404 confirms a missing index.
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s returned %d", edgar.ErrIndexNotFound, url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s returned %d", edgar.ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read index body: %w", edgar.ErrFetch, err)
	}
	metrics.ObserveFetch("index", time.Since(start), len(body))

	return Decode(body, resp.Header.Get("Content-Encoding"))
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
