// Package scheduler drives the crawl one EDGAR day at a time: resume from a
// checkpoint or fetch the daily index, pace document sub-batches, checkpoint the
// day and persist it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // reference timezone must resolve on minimal images

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/metrics"
	"github.com/JakeFAU/insider-filings-crawler/internal/persist"
	"github.com/JakeFAU/insider-filings-crawler/internal/worker"
)

// ReferenceTimezone is the timezone EDGAR publishes daily indexes in.
const ReferenceTimezone = "America/New_York"

// Defaults for Config.
const (
	DefaultCooldown         = 60 * time.Second
	DefaultRetryDelay       = 5 * time.Minute
	DefaultMaxIndexAttempts = 3
)

// Outcome classifies one Step.
type Outcome string

// Step outcomes.
const (
	// OutcomeWaiting: the day has not been published yet; the cursor did not move.
	OutcomeWaiting Outcome = "waiting"
	// OutcomeResumed: a checkpoint was persisted without network access.
	OutcomeResumed Outcome = "resumed"
	// OutcomeEmpty: the index confirmed no matching filings.
	OutcomeEmpty Outcome = "empty"
	// OutcomeCrawled: documents were fetched, checkpointed and persisted.
	OutcomeCrawled Outcome = "crawled"
	// OutcomeUnavailable: the index could not be fetched; the day will be retried.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeSkipped: the index stayed unavailable; the day was given up as a gap.
	OutcomeSkipped Outcome = "skipped"
)

// Advances reports whether the outcome moves the cursor to the next day.
func (o Outcome) Advances() bool {
	return o != OutcomeWaiting && o != OutcomeUnavailable
}

// Pacer spaces sub-batch starts.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DocumentPool fetches and extracts one sub-batch of index entries.
type DocumentPool interface {
	Run(ctx context.Context, entries []edgar.IndexEntry) ([]edgar.FilingTransaction, worker.Report)
}

// Persister writes a day's transactions to the store.
type Persister interface {
	Persist(ctx context.Context, txs []edgar.FilingTransaction) persist.Summary
}

// Config controls Scheduler behavior.
type Config struct {
	// BatchSize is both the sub-batch length and the fetch concurrency. It may not
	// exceed edgar.MaxRequestsPerSecond.
	BatchSize int
	// Cooldown is slept when the cursor is ahead of the last published day.
	Cooldown time.Duration
	// RetryDelay is slept after a failed index fetch.
	RetryDelay time.Duration
	// MaxIndexAttempts failed index fetches turn a day into a skipped gap.
	MaxIndexAttempts int
	// FormTypes restricts the entries crawled. Empty crawls every form type.
	FormTypes []string
	// Location defaults to ReferenceTimezone.
	Location *time.Location
	// Topic receives a DayReport per finished day when a Publisher is set.
	Topic string
}

// Deps are the collaborators of a Scheduler. Publisher and Sleep are optional.
type Deps struct {
	Index       edgar.IndexSource
	Pool        DocumentPool
	Checkpoints edgar.CheckpointStore
	Persister   Persister
	Pacer       Pacer
	Clock       edgar.Clock
	Publisher   edgar.Publisher
	Sleep       func(ctx context.Context, d time.Duration) error
}

// StepResult describes what one Step did.
type StepResult struct {
	Date       civil.Date      `json:"date"`
	Outcome    Outcome         `json:"outcome"`
	Entries    int             `json:"entries"`
	SubBatches int             `json:"sub_batches"`
	Documents  worker.Report   `json:"documents"`
	Persisted  persist.Summary `json:"persisted"`
	Checkpoint string          `json:"checkpoint,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DayReport is published for every day the cursor moves past.
type DayReport struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	StepResult
}

// Status is a point-in-time view of the crawl for the status endpoint.
type Status struct {
	RunID     string          `json:"run_id"`
	Cursor    civil.Date      `json:"cursor"`
	Outcomes  map[Outcome]int `json:"outcomes"`
	Last      *StepResult     `json:"last,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Scheduler runs the per-day crawl step.
type Scheduler struct {
	cfg       Config
	deps      Deps
	runID     string
	logger    *zap.Logger
	formTypes map[string]struct{}

	mu     sync.RWMutex
	status Status
}

// New validates cfg and builds a Scheduler.
func New(cfg Config, deps Deps, runID string, logger *zap.Logger) (*Scheduler, error) {
	if err := validateBatch(cfg.BatchSize); err != nil {
		return nil, err
	}
	if deps.Index == nil || deps.Pool == nil || deps.Checkpoints == nil ||
		deps.Persister == nil || deps.Pacer == nil || deps.Clock == nil {
		return nil, fmt.Errorf("%w: scheduler dependencies are incomplete", edgar.ErrConfig)
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxIndexAttempts <= 0 {
		cfg.MaxIndexAttempts = DefaultMaxIndexAttempts
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(ReferenceTimezone)
		if err != nil {
			return nil, fmt.Errorf("%w: load %s: %w", edgar.ErrConfig, ReferenceTimezone, err)
		}
		cfg.Location = loc
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	var formTypes map[string]struct{}
	if len(cfg.FormTypes) > 0 {
		formTypes = make(map[string]struct{}, len(cfg.FormTypes))
		for _, ft := range cfg.FormTypes {
			formTypes[ft] = struct{}{}
		}
	}

	return &Scheduler{
		cfg:       cfg,
		deps:      deps,
		runID:     runID,
		logger:    logger.With(zap.String("run_id", runID)),
		formTypes: formTypes,
		status:    Status{RunID: runID, Outcomes: map[Outcome]int{}},
	}, nil
}

func validateBatch(batch int) error {
	if batch <= 0 || batch > edgar.MaxRequestsPerSecond {
		return fmt.Errorf("%w: batch size %d must be between 1 and %d",
			edgar.ErrConfig, batch, edgar.MaxRequestsPerSecond)
	}
	return nil
}

// Yesterday returns the last day whose index can exist, in the reference timezone.
func (s *Scheduler) Yesterday() civil.Date {
	return civil.DateOf(s.deps.Clock.Now().In(s.cfg.Location)).AddDays(-1)
}

// Run steps until the cursor reaches stop (exclusive). A zero stop follows the feed
// forever. It returns on context cancellation or a configuration error.
func (s *Scheduler) Run(ctx context.Context, cur *Cursor, stop civil.Date) error {
	for {
		if stop != (civil.Date{}) && !cur.Date.Before(stop) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Step(ctx, cur); err != nil {
			return err
		}
	}
}

// Step processes the cursor's day once. Errors confined to the day are reported in
// the result; the returned error is reserved for configuration errors and
// cancellation, after which the cursor is left on the unfinished day.
func (s *Scheduler) Step(ctx context.Context, cur *Cursor) (StepResult, error) {
	if err := validateBatch(s.cfg.BatchSize); err != nil {
		return StepResult{}, err
	}
	day := cur.Date
	log := s.logger.With(zap.Stringer("date", day))

	if day.After(s.Yesterday()) {
		log.Debug("day not yet published, cooling down", zap.Duration("cooldown", s.cfg.Cooldown))
		res := StepResult{Date: day, Outcome: OutcomeWaiting}
		if err := s.deps.Sleep(ctx, s.cfg.Cooldown); err != nil {
			return res, err
		}
		s.finish(ctx, cur, res)
		return res, nil
	}

	if res, ok, err := s.resume(ctx, day, log); ok || err != nil {
		if err != nil {
			return res, err
		}
		s.finish(ctx, cur, res)
		return res, nil
	}

	entries, err := s.deps.Index.Entries(ctx, day)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StepResult{Date: day}, ctxErr
		}
		return s.indexFailed(ctx, cur, err, log)
	}
	entries = s.filter(entries)
	if len(entries) == 0 {
		res := StepResult{Date: day, Outcome: OutcomeEmpty}
		log.Info("no matching filings")
		s.finish(ctx, cur, res)
		return res, nil
	}

	res, txs, err := s.crawl(ctx, day, entries)
	if err != nil {
		return res, err
	}

	uri, err := s.deps.Checkpoints.Save(ctx, day, txs)
	if err != nil {
		log.Error("checkpoint write failed", zap.Error(err))
		res.Error = err.Error()
	}
	res.Checkpoint = uri
	res.Persisted = s.deps.Persister.Persist(ctx, txs)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	log.Info("day crawled",
		zap.Int("entries", res.Entries),
		zap.Int("documents_failed", res.Documents.Failed),
		zap.Int("transactions", len(txs)),
		zap.Int("inserted", res.Persisted.Inserted),
		zap.Int("skipped", res.Persisted.Skipped+res.Persisted.Failed),
	)
	s.finish(ctx, cur, res)
	return res, nil
}

// resume persists an existing checkpoint for day. ok is false when there is none to
// use, including an unreadable one, which is then re-crawled.
func (s *Scheduler) resume(ctx context.Context, day civil.Date, log *zap.Logger) (StepResult, bool, error) {
	txs, err := s.deps.Checkpoints.Load(ctx, day)
	if errors.Is(err, edgar.ErrNotFound) {
		return StepResult{}, false, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StepResult{Date: day}, false, ctxErr
		}
		log.Warn("checkpoint unreadable, crawling again", zap.Error(err))
		return StepResult{}, false, nil
	}

	res := StepResult{Date: day, Outcome: OutcomeResumed}
	res.Persisted = s.deps.Persister.Persist(ctx, txs)
	if err := ctx.Err(); err != nil {
		return res, false, err
	}
	log.Info("resumed from checkpoint",
		zap.Int("transactions", len(txs)),
		zap.Int("inserted", res.Persisted.Inserted),
	)
	return res, true, nil
}

func (s *Scheduler) indexFailed(ctx context.Context, cur *Cursor, cause error, log *zap.Logger) (StepResult, error) {
	day := cur.Date
	if errors.Is(cause, edgar.ErrIndexNotFound) {
		res := StepResult{Date: day, Outcome: OutcomeEmpty}
		log.Info("no daily index published")
		s.finish(ctx, cur, res)
		return res, nil
	}

	cur.attempts++
	if cur.attempts >= s.cfg.MaxIndexAttempts {
		res := StepResult{Date: day, Outcome: OutcomeSkipped, Error: cause.Error()}
		log.Error("daily index unavailable, skipping day",
			zap.Int("attempts", cur.attempts), zap.Error(cause))
		s.finish(ctx, cur, res)
		return res, nil
	}

	res := StepResult{Date: day, Outcome: OutcomeUnavailable, Error: cause.Error()}
	log.Warn("daily index unavailable, will retry",
		zap.Int("attempts", cur.attempts),
		zap.Duration("retry_delay", s.cfg.RetryDelay),
		zap.Error(cause),
	)
	if err := s.deps.Sleep(ctx, s.cfg.RetryDelay); err != nil {
		return res, err
	}
	s.finish(ctx, cur, res)
	return res, nil
}

// crawl runs the pool over entries in paced sub-batches of BatchSize.
func (s *Scheduler) crawl(ctx context.Context, day civil.Date, entries []edgar.IndexEntry) (StepResult, []edgar.FilingTransaction, error) {
	res := StepResult{Date: day, Outcome: OutcomeCrawled, Entries: len(entries)}
	var txs []edgar.FilingTransaction
	for start := 0; start < len(entries); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(entries))
		if err := s.deps.Pacer.Wait(ctx); err != nil {
			return res, nil, err
		}
		batchTxs, report := s.deps.Pool.Run(ctx, entries[start:end])
		if err := ctx.Err(); err != nil {
			return res, nil, err
		}
		res.SubBatches++
		res.Documents.Add(report)
		txs = append(txs, batchTxs...)
	}
	return res, txs, nil
}

func (s *Scheduler) filter(entries []edgar.IndexEntry) []edgar.IndexEntry {
	if s.formTypes == nil {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := s.formTypes[e.FormType]; ok {
			out = append(out, e)
		}
	}
	return out
}

// finish records the outcome and moves the cursor when the outcome allows it.
func (s *Scheduler) finish(ctx context.Context, cur *Cursor, res StepResult) {
	metrics.ObserveDay(string(res.Outcome))
	if res.Outcome.Advances() {
		cur.advance()
		s.publish(ctx, res)
	}
	metrics.SetCursor(cur.Date.In(s.cfg.Location))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Cursor = cur.Date
	s.status.Outcomes[res.Outcome]++
	last := res
	s.status.Last = &last
	s.status.UpdatedAt = s.deps.Clock.Now()
}

func (s *Scheduler) publish(ctx context.Context, res StepResult) {
	if s.deps.Publisher == nil || s.cfg.Topic == "" {
		return
	}
	report := DayReport{RunID: s.runID, FinishedAt: s.deps.Clock.Now(), StepResult: res}
	if _, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, report); err != nil {
		s.logger.Warn("day report not published", zap.Stringer("date", res.Date), zap.Error(err))
	}
}

// Status returns a snapshot of the crawl progress.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.status
	out.Outcomes = make(map[Outcome]int, len(s.status.Outcomes))
	for k, v := range s.status.Outcomes {
		out.Outcomes[k] = v
	}
	if s.status.Last != nil {
		last := *s.status.Last
		out.Last = &last
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
