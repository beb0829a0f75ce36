// Package postgres implements edgar.Store on a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

// Schema is the DDL applied by Migrate.
//
//go:embed schema.sql
var Schema string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store reads and writes the filings tables.
type Store struct {
	pool queryExecCloser
}

// NewStore connects a pool using cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: db.dsn is required", edgar.ErrConfig)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool queryExecCloser) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("%w: ping: %w", edgar.ErrLookup, err)
	}
	return nil
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) lookupID(ctx context.Context, entity, query string, key any) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, query, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s %v: %w", entity, key, edgar.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: select %s %v: %w", edgar.ErrLookup, entity, key, err)
	}
	return id, nil
}

func (s *Store) insert(ctx context.Context, entity, query string, args ...any) error {
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insert %s: %w", edgar.ErrCreate, entity, err)
	}
	return nil
}

// IssuerID returns the id of the issuer with the given CIK.
func (s *Store) IssuerID(ctx context.Context, cik string) (int64, error) {
	return s.lookupID(ctx, "issuer", `SELECT issuer_id FROM issuer WHERE cik = $1`, cik)
}

// InsertIssuer inserts issuer unless its CIK already exists.
func (s *Store) InsertIssuer(ctx context.Context, issuer edgar.Issuer) error {
	return s.insert(ctx, "issuer",
		`INSERT INTO issuer (name, symbol, cik) VALUES ($1, $2, $3) ON CONFLICT (cik) DO NOTHING`,
		issuer.Name, issuer.Symbol, issuer.CIK)
}

// IndividualID returns the id of the reporting owner with the given CIK.
func (s *Store) IndividualID(ctx context.Context, cik string) (int64, error) {
	return s.lookupID(ctx, "individual", `SELECT individual_id FROM individual WHERE cik = $1`, cik)
}

// InsertIndividual inserts individual unless its CIK already exists. Empty name
// parts are stored as NULL.
func (s *Store) InsertIndividual(ctx context.Context, individual edgar.Individual) error {
	return s.insert(ctx, "individual",
		`INSERT INTO individual (full_name, cik, first_name, last_name) VALUES ($1, $2, $3, $4) ON CONFLICT (cik) DO NOTHING`,
		individual.FullName, individual.CIK, nullable(individual.FirstName), nullable(individual.LastName))
}

// FormID returns the id of the form with the given accession number.
func (s *Store) FormID(ctx context.Context, accessNo string) (int64, error) {
	return s.lookupID(ctx, "form", `SELECT form_id FROM form WHERE access_no = $1`, accessNo)
}

// InsertForm inserts form unless its accession number already exists.
func (s *Store) InsertForm(ctx context.Context, form edgar.Form) error {
	return s.insert(ctx, "form",
		`INSERT INTO form (issuer_id, date_reported, form_type, txt_url, web_url, access_no) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (access_no) DO NOTHING`,
		form.IssuerID, dateValue(form.DateReported), form.FormType, form.TxtURL, form.WebURL, form.AccessNo)
}

const selectTransaction = `SELECT transaction_id, date_reported, form_id, issuer_id, individual_id,
	action_code, ownership_code, transaction_code,
	shares_balance, shares_traded, avg_price, amount, relationships
FROM non_deriv_transaction
WHERE form_id = $1 AND date_reported = $2 AND shares_balance = $3
ORDER BY transaction_id
LIMIT 1`

// FindTransaction returns the first transaction matching key.
func (s *Store) FindTransaction(ctx context.Context, key edgar.TransactionKey) (edgar.Transaction, error) {
	var (
		tx       edgar.Transaction
		reported time.Time
	)
	err := s.pool.QueryRow(ctx, selectTransaction, key.FormID, dateValue(key.Date), key.SharesBalance).Scan(
		&tx.ID, &reported, &tx.FormID, &tx.IssuerID, &tx.IndividualID,
		&tx.ActionCode, &tx.OwnershipCode, &tx.TransactionCode,
		&tx.SharesBalance, &tx.SharesTraded, &tx.AvgPrice, &tx.Amount, &tx.Relationships,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return edgar.Transaction{}, fmt.Errorf("transaction %+v: %w", key, edgar.ErrNotFound)
	}
	if err != nil {
		return edgar.Transaction{}, fmt.Errorf("%w: select transaction %+v: %w", edgar.ErrLookup, key, err)
	}
	tx.DateReported = civil.DateOf(reported)
	return tx, nil
}

// InsertTransaction inserts tx. There is no uniqueness constraint on the match key;
// callers check FindTransaction first.
func (s *Store) InsertTransaction(ctx context.Context, tx edgar.Transaction) error {
	relationships := tx.Relationships
	if relationships == nil {
		relationships = []int32{}
	}
	return s.insert(ctx, "transaction",
		`INSERT INTO non_deriv_transaction (date_reported, form_id, issuer_id, individual_id, action_code, ownership_code, transaction_code, shares_balance, shares_traded, avg_price, amount, relationships) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		dateValue(tx.DateReported), tx.FormID, tx.IssuerID, tx.IndividualID,
		tx.ActionCode, tx.OwnershipCode, tx.TransactionCode,
		tx.SharesBalance, tx.SharesTraded, tx.AvgPrice, tx.Amount, relationships)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// dateValue maps a calendar date onto the time.Time pgx encodes as DATE.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}

var _ edgar.Store = (*Store)(nil)
