// Package checkpoint stores one JSON snapshot of extracted transactions per crawled day.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/storage"
)

// Store implements edgar.CheckpointStore over a blob store.
type Store struct {
	blobs storage.BlobStore
}

// New wraps blobs.
func New(blobs storage.BlobStore) *Store {
	return &Store{blobs: blobs}
}

// Path returns the object path for day: <year>/<MM>/<YYYYMMDD>-filing.json.
func Path(day civil.Date) string {
	return fmt.Sprintf("%04d/%02d/%s-filing.json", day.Year, int(day.Month), edgar.CompactDate(day))
}

// Load reads the checkpoint for day. A missing checkpoint yields edgar.ErrNotFound.
func (s *Store) Load(ctx context.Context, day civil.Date) ([]edgar.FilingTransaction, error) {
	data, err := s.blobs.GetObject(ctx, Path(day))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("checkpoint %s: %w", day, edgar.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", day, err)
	}
	var txs []edgar.FilingTransaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", day, err)
	}
	return txs, nil
}

// Save writes txs as the checkpoint for day, replacing any previous one, and returns
// its URI. An empty day is written as an empty array.
func (s *Store) Save(ctx context.Context, day civil.Date, txs []edgar.FilingTransaction) (string, error) {
	if txs == nil {
		txs = []edgar.FilingTransaction{}
	}
	data, err := json.Marshal(txs)
	if err != nil {
		return "", fmt.Errorf("encode checkpoint %s: %w", day, err)
	}
	uri, err := s.blobs.PutObject(ctx, Path(day), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save checkpoint %s: %w", day, err)
	}
	return uri, nil
}

var _ edgar.CheckpointStore = (*Store)(nil)
