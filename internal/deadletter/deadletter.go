// Package deadletter appends failed index entries to a plain-text log.
package deadletter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// LinePrefix starts every dead-letter line. The spelling matches existing logs.
const LinePrefix = "Failed to proccess entry: "

// File is an append-only dead-letter log safe for concurrent use.
type File struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// New returns a File writing to path, creating its parent directory.
func New(path string, logger *zap.Logger) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("dead-letter path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dead-letter directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{path: path, logger: logger}, nil
}

// Record appends one line for entryPath. The cause is logged, not written.
func (f *File) Record(_ context.Context, entryPath string, cause error) error {
	f.logger.Warn("dead-lettering index entry", zap.String("path", entryPath), zap.Error(cause))

	f.mu.Lock()
	defer f.mu.Unlock()

	// #nosec G304 -- path comes from configuration.
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open dead-letter log: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%s%s\n", LinePrefix, entryPath); err != nil {
		_ = file.Close()
		return fmt.Errorf("write dead-letter log: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close dead-letter log: %w", err)
	}
	return nil
}

// Path returns the log location.
func (f *File) Path() string { return f.path }
