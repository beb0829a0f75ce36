// Package persist writes extracted transactions into the relational store,
// resolving issuer, individual and form ids through read-through caches.
package persist

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/insider-filings-crawler/internal/cache/memory"
	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/metrics"
)

// DefaultConcurrency is the number of transactions persisted at once.
const DefaultConcurrency = 10

const txStripes = 64

// Result classifies the outcome for one transaction.
type Result string

// Persistence outcomes.
const (
	ResultInserted Result = "inserted"
	ResultExisting Result = "existing"
	ResultSkipped  Result = "skipped"
	ResultFailed   Result = "failed"
)

// Summary counts the outcomes of one Persist call.
type Summary struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (s *Summary) add(r Result) {
	s.Total++
	switch r {
	case ResultInserted:
		s.Inserted++
	case ResultExisting:
		s.Existing++
	case ResultSkipped:
		s.Skipped++
	case ResultFailed:
		s.Failed++
	}
}

// Caches holds one id cache per entity. Nil caches are replaced with in-memory ones.
type Caches struct {
	Issuers     edgar.IDCache
	Individuals edgar.IDCache
	Forms       edgar.IDCache
}

// Config controls Pipeline behavior.
type Config struct {
	Concurrency int
}

// Pipeline persists transactions. Resolution of one natural key is serialized with
// singleflight; unrelated keys proceed in parallel.
type Pipeline struct {
	store  edgar.Store
	caches Caches
	cfg    Config
	logger *zap.Logger

	issuers     singleflight.Group
	individuals singleflight.Group
	forms       singleflight.Group
	txLocks     [txStripes]sync.Mutex
}

// New constructs a Pipeline.
func New(store edgar.Store, caches Caches, cfg Config, logger *zap.Logger) *Pipeline {
	if caches.Issuers == nil {
		caches.Issuers = memory.New()
	}
	if caches.Individuals == nil {
		caches.Individuals = memory.New()
	}
	if caches.Forms == nil {
		caches.Forms = memory.New()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{store: store, caches: caches, cfg: cfg, logger: logger}
}

// Persist writes every transaction, never aborting on a per-transaction failure.
func (p *Pipeline) Persist(ctx context.Context, txs []edgar.FilingTransaction) Summary {
	results := make([]Result, len(txs))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, tx := range txs {
		g.Go(func() error {
			_, results[i], _ = p.PersistOne(ctx, tx)
			return nil
		})
	}
	_ = g.Wait()

	var summary Summary
	for _, r := range results {
		summary.add(r)
	}
	return summary
}

// PersistOne resolves issuer, individual and form, then finds or inserts the
// transaction row. The returned error is already logged.
func (p *Pipeline) PersistOne(ctx context.Context, tx edgar.FilingTransaction) (edgar.Transaction, Result, error) {
	row, result, err := p.persist(ctx, tx)
	metrics.ObservePersist(string(result))
	if err != nil {
		p.logger.Warn("transaction not persisted",
			zap.String("result", string(result)),
			zap.String("access_no", tx.AccessNo),
			zap.String("form_url", tx.FormURL),
			zap.Error(err),
		)
	}
	return row, result, err
}

func (p *Pipeline) persist(ctx context.Context, tx edgar.FilingTransaction) (edgar.Transaction, Result, error) {
	issuerID, err := p.resolve(ctx, &p.issuers, p.caches.Issuers, "issuer", tx.CompanyCIK,
		p.store.IssuerID,
		func(ctx context.Context) error { return p.store.InsertIssuer(ctx, edgar.NewIssuer(tx)) })
	if err != nil {
		return edgar.Transaction{}, ResultSkipped, err
	}
	individualID, err := p.resolve(ctx, &p.individuals, p.caches.Individuals, "individual", tx.OwnerCIK,
		p.store.IndividualID,
		func(ctx context.Context) error { return p.store.InsertIndividual(ctx, edgar.NewIndividual(tx)) })
	if err != nil {
		return edgar.Transaction{}, ResultSkipped, err
	}
	formID, err := p.resolve(ctx, &p.forms, p.caches.Forms, "form", tx.AccessNo,
		p.store.FormID,
		func(ctx context.Context) error { return p.store.InsertForm(ctx, edgar.NewForm(tx, issuerID)) })
	if err != nil {
		return edgar.Transaction{}, ResultSkipped, err
	}

	row := edgar.NewTransaction(tx, formID, issuerID, individualID)
	return p.upsertTransaction(ctx, row)
}

// resolve returns the id for key: cache, then store, then insert and re-read.
func (p *Pipeline) resolve(
	ctx context.Context,
	group *singleflight.Group,
	cache edgar.IDCache,
	entity string,
	key string,
	lookup func(context.Context, string) (int64, error),
	insert func(context.Context) error,
) (int64, error) {
	id, ok, err := cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("id cache read failed", zap.String("entity", entity), zap.String("key", key), zap.Error(err))
	}
	if ok {
		return id, nil
	}

	v, err, _ := group.Do(key, func() (any, error) {
		id, err := lookup(ctx, key)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, edgar.ErrNotFound) {
			return int64(0), err
		}
		if err := insert(ctx); err != nil {
			return int64(0), err
		}
		id, err = lookup(ctx, key)
		if err != nil {
			return int64(0), fmt.Errorf("%w: %s %s not readable after insert: %w", edgar.ErrCreate, entity, key, err)
		}
		return id, nil
	})
	if err != nil {
		return 0, fmt.Errorf("resolve %s %s: %w", entity, key, err)
	}
	id = v.(int64)

	if err := cache.Set(ctx, key, id); err != nil {
		p.logger.Warn("id cache write failed", zap.String("entity", entity), zap.String("key", key), zap.Error(err))
	}
	return id, nil
}

// upsertTransaction finds a row with the same (form, date, balance) key or inserts
// row and reads it back. Distinct trades sharing that key collapse into one row.
func (p *Pipeline) upsertTransaction(ctx context.Context, row edgar.Transaction) (edgar.Transaction, Result, error) {
	key := row.Key()
	mu := &p.txLocks[stripe(key)]
	mu.Lock()
	defer mu.Unlock()

	existing, err := p.store.FindTransaction(ctx, key)
	if err == nil {
		return existing, ResultExisting, nil
	}
	if !errors.Is(err, edgar.ErrNotFound) {
		return edgar.Transaction{}, ResultFailed, fmt.Errorf("find transaction: %w", err)
	}
	if err := p.store.InsertTransaction(ctx, row); err != nil {
		return edgar.Transaction{}, ResultFailed, fmt.Errorf("insert transaction: %w", err)
	}
	inserted, err := p.store.FindTransaction(ctx, key)
	if err != nil {
		return edgar.Transaction{}, ResultFailed, fmt.Errorf("%w: transaction not readable after insert: %w", edgar.ErrCreate, err)
	}
	return inserted, ResultInserted, nil
}

func stripe(key edgar.TransactionKey) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%d|%s|%g", key.FormID, key.Date, key.SharesBalance)
	return int(h.Sum32() % txStripes)
}
