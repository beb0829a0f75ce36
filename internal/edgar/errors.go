package edgar

import "errors"

// Error kinds. Callers classify failures with errors.Is; the wrapped message carries
// the detail.
var (
	// ErrDecode reports a malformed compressed index body.
	ErrDecode = errors.New("decode error")
	// ErrParse reports index text that does not match the tabular layout.
	ErrParse = errors.New("parse error")
	// ErrFetch reports a network or HTTP status failure.
	ErrFetch = errors.New("fetch error")
	// ErrIndexNotFound reports that the provider has no index for the requested day.
	ErrIndexNotFound = errors.New("daily index not found")
	// ErrExtract reports an ownership document that could not be turned into transactions.
	ErrExtract = errors.New("extract error")
	// ErrNoTransactions reports a well-formed document without non-derivative transactions.
	// It wraps ErrExtract.
	ErrNoTransactions = &kindError{msg: "document has no non-derivative transactions", kind: ErrExtract}
	// ErrLookup reports a failed store read.
	ErrLookup = errors.New("lookup error")
	// ErrCreate reports a failed store insert.
	ErrCreate = errors.New("create error")
	// ErrNotFound reports a store lookup without a matching row.
	ErrNotFound = errors.New("not found")
	// ErrConfig reports an invalid configuration.
	ErrConfig = errors.New("configuration error")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }
