package edgar

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
)

// FetchRequest captures everything needed to fetch one URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a filing document.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// IndexSource returns the entries of the daily index for one day.
type IndexSource interface {
	Entries(ctx context.Context, day civil.Date) ([]IndexEntry, error)
}

// Extractor turns a raw filing document into transactions.
type Extractor interface {
	Extract(documentURL string, body []byte) ([]FilingTransaction, error)
}

// DeadLetter records entries that failed processing.
type DeadLetter interface {
	Record(ctx context.Context, path string, cause error) error
}

// CheckpointStore saves and loads the per-day transaction snapshot.
type CheckpointStore interface {
	// Load returns ErrNotFound when no checkpoint exists for day.
	Load(ctx context.Context, day civil.Date) ([]FilingTransaction, error)
	Save(ctx context.Context, day civil.Date, txs []FilingTransaction) (string, error)
}

// IDCache maps natural keys to surrogate ids for one entity type.
type IDCache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, id int64) error
}

// Store is the relational store the persistence pipeline writes to. Lookups return
// ErrNotFound on a miss. Inserts do not return the generated id; callers re-read.
type Store interface {
	IssuerID(ctx context.Context, cik string) (int64, error)
	InsertIssuer(ctx context.Context, issuer Issuer) error
	IndividualID(ctx context.Context, cik string) (int64, error)
	InsertIndividual(ctx context.Context, individual Individual) error
	FormID(ctx context.Context, accessNo string) (int64, error)
	InsertForm(ctx context.Context, form Form) error
	FindTransaction(ctx context.Context, key TransactionKey) (Transaction, error)
	InsertTransaction(ctx context.Context, tx Transaction) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
