// Package worker fetches and extracts the filing documents of a sub-batch
// concurrently.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/metrics"
)

// Config controls Pool behavior.
type Config struct {
	// Concurrency bounds in-flight documents. It is the crawl batch size.
	Concurrency int
	BaseURL     string
}

// Report counts what happened to the entries of one Run.
type Report struct {
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	Empty        int `json:"empty"`
	Transactions int `json:"transactions"`
}

// Add accumulates other into r.
func (r *Report) Add(other Report) {
	r.Attempted += other.Attempted
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Empty += other.Empty
	r.Transactions += other.Transactions
}

// Pool runs the per-document pipeline with bounded concurrency.
type Pool struct {
	fetcher    edgar.Fetcher
	extractor  edgar.Extractor
	deadLetter edgar.DeadLetter
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pool.
func New(
	fetcher edgar.Fetcher,
	extractor edgar.Extractor,
	deadLetter edgar.DeadLetter,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = edgar.MaxRequestsPerSecond
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = edgar.DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pool{
		fetcher:    fetcher,
		extractor:  extractor,
		deadLetter: deadLetter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run attempts every entry exactly once and returns the extracted transactions in
// entry order. A failing entry is dead-lettered and does not affect the others.
func (p *Pool) Run(ctx context.Context, entries []edgar.IndexEntry) ([]edgar.FilingTransaction, Report) {
	results := make([][]edgar.FilingTransaction, len(entries))
	failed := make([]error, len(entries))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			results[i], failed[i] = p.process(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Attempted: len(entries)}
	var txs []edgar.FilingTransaction
	for i, entry := range entries {
		if err := failed[i]; err != nil {
			report.Failed++
			if errors.Is(err, edgar.ErrNoTransactions) {
				report.Empty++
			}
			metrics.ObserveDocument("failed")
			p.recordFailure(ctx, entry, err)
			continue
		}
		report.Succeeded++
		report.Transactions += len(results[i])
		metrics.ObserveDocument("ok")
		txs = append(txs, results[i]...)
	}
	metrics.ObserveTransactions(report.Transactions)
	return txs, report
}

func (p *Pool) process(ctx context.Context, entry edgar.IndexEntry) ([]edgar.FilingTransaction, error) {
	url := edgar.DocumentURL(p.cfg.BaseURL, entry.Path)
	resp, err := p.fetcher.Fetch(ctx, edgar.FetchRequest{URL: url})
	if err != nil {
		return nil, err
	}
	return p.extractor.Extract(url, resp.Body)
}

func (p *Pool) recordFailure(ctx context.Context, entry edgar.IndexEntry, cause error) {
	if ctx.Err() != nil {
		// Entries cut short by shutdown are retried with the whole day.
		p.logger.Debug("entry abandoned on shutdown", zap.String("path", entry.Path))
		return
	}
	if p.deadLetter == nil {
		p.logger.Warn("entry failed", zap.String("path", entry.Path), zap.Error(cause))
		return
	}
	if err := p.deadLetter.Record(ctx, entry.Path, cause); err != nil {
		p.logger.Error("dead-letter write failed",
			zap.String("path", entry.Path),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}
