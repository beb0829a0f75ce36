// Package memory implements edgar.Store in process memory with the same uniqueness
// rules as the Postgres schema.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

// Store is a concurrency-safe in-memory edgar.Store.
type Store struct {
	mu           sync.RWMutex
	issuers      []edgar.Issuer
	individuals  []edgar.Individual
	forms        []edgar.Form
	transactions []edgar.Transaction
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// IssuerID returns the id of the issuer with the given CIK.
func (s *Store) IssuerID(_ context.Context, cik string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.issuers {
		if row.CIK == cik {
			return row.ID, nil
		}
	}
	return 0, fmt.Errorf("issuer %s: %w", cik, edgar.ErrNotFound)
}

// InsertIssuer inserts issuer unless its CIK already exists.
func (s *Store) InsertIssuer(_ context.Context, issuer edgar.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.issuers {
		if row.CIK == issuer.CIK {
			return nil
		}
	}
	issuer.ID = int64(len(s.issuers) + 1)
	s.issuers = append(s.issuers, issuer)
	return nil
}

// IndividualID returns the id of the individual with the given CIK.
func (s *Store) IndividualID(_ context.Context, cik string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.individuals {
		if row.CIK == cik {
			return row.ID, nil
		}
	}
	return 0, fmt.Errorf("individual %s: %w", cik, edgar.ErrNotFound)
}

// InsertIndividual inserts individual unless its CIK already exists.
func (s *Store) InsertIndividual(_ context.Context, individual edgar.Individual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.individuals {
		if row.CIK == individual.CIK {
			return nil
		}
	}
	individual.ID = int64(len(s.individuals) + 1)
	s.individuals = append(s.individuals, individual)
	return nil
}

// FormID returns the id of the form with the given accession number.
func (s *Store) FormID(_ context.Context, accessNo string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.forms {
		if row.AccessNo == accessNo {
			return row.ID, nil
		}
	}
	return 0, fmt.Errorf("form %s: %w", accessNo, edgar.ErrNotFound)
}

// InsertForm inserts form unless its accession number already exists.
func (s *Store) InsertForm(_ context.Context, form edgar.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.forms {
		if row.AccessNo == form.AccessNo {
			return nil
		}
	}
	form.ID = int64(len(s.forms) + 1)
	s.forms = append(s.forms, form)
	return nil
}

// FindTransaction returns the first transaction matching key.
func (s *Store) FindTransaction(_ context.Context, key edgar.TransactionKey) (edgar.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.transactions {
		if row.Key() == key {
			return row, nil
		}
	}
	return edgar.Transaction{}, fmt.Errorf("transaction %+v: %w", key, edgar.ErrNotFound)
}

// InsertTransaction appends tx.
func (s *Store) InsertTransaction(_ context.Context, tx edgar.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = int64(len(s.transactions) + 1)
	tx.Relationships = append([]int32{}, tx.Relationships...)
	s.transactions = append(s.transactions, tx)
	return nil
}

// Issuers returns a snapshot of the issuer rows.
func (s *Store) Issuers() []edgar.Issuer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]edgar.Issuer(nil), s.issuers...)
}

// Individuals returns a snapshot of the individual rows.
func (s *Store) Individuals() []edgar.Individual {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]edgar.Individual(nil), s.individuals...)
}

// Forms returns a snapshot of the form rows.
func (s *Store) Forms() []edgar.Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]edgar.Form(nil), s.forms...)
}

// Transactions returns a snapshot of the transaction rows.
func (s *Store) Transactions() []edgar.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]edgar.Transaction(nil), s.transactions...)
}

var _ edgar.Store = (*Store)(nil)
