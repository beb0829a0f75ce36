package deadletter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filings", "failed.txt")
	dl, err := New(path, nil)
	require.NoError(t, err)

	require.NoError(t, dl.Record(context.Background(), "edgar/data/1/a.txt", errors.New("boom")))
	require.NoError(t, dl.Record(context.Background(), "edgar/data/2/b.txt", nil))

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Failed to proccess entry: edgar/data/1/a.txt\nFailed to proccess entry: edgar/data/2/b.txt\n",
		string(raw))
}

func TestRecordConcurrent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "failed.txt")
	dl, err := New(path, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, dl.Record(context.Background(), fmt.Sprintf("edgar/data/%d.txt", i), nil))
		}(i)
	}
	wg.Wait()

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	assert.Len(t, lines, 50)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, LinePrefix), line)
	}
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New("", nil)
	require.Error(t, err)
}
