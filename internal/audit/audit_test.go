package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyScanner/internal/domain"
)

type memoryStore struct {
	records []domain.LogRecord
	err     error
}

func (m *memoryStore) InsertLog(_ context.Context, record domain.LogRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		out = append(out, line)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestOpenFileSinkCreatesDirectoryAndAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "logs", "crawler.log")
	sink, err := OpenFileSink(path)
	require.NoError(t, err)

	at := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Write(domain.LogRecord{Action: domain.ActionInserting, Title: "Leave", Description: "Paid.", SourceName: "webtel", CreatedAt: at}))
	require.NoError(t, sink.Close())

	reopened, err := OpenFileSink(path)
	require.NoError(t, err)
	require.NoError(t, reopened.Write(domain.LogRecord{Action: domain.ActionSkipping, IsDuplicate: true, Title: "Travel", Description: "Trips.", SourceName: "rapid", CreatedAt: at}))
	require.NoError(t, reopened.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "inserting...", lines[0]["action"])
	assert.Equal(t, false, lines[0]["isDuplicate"])
	assert.Equal(t, "skipping...", lines[1]["action"])
	assert.Equal(t, true, lines[1]["isDuplicate"])
	assert.Equal(t, "rapid", lines[1]["sourceName"])
	assert.Contains(t, lines[1]["timestamp"], "2025-05-01T10:00:00")
}

func TestWriteAfterCloseFails(t *testing.T) {
	t.Parallel()

	sink, err := OpenFileSink(filepath.Join(t.TempDir(), "a.log"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Error(t, sink.Write(domain.LogRecord{Action: domain.ActionSkipping}))
	assert.NoError(t, sink.Close())
}

func TestRecordWritesBothSinks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawler.log")
	sink, err := OpenFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	store := &memoryStore{}
	logger := NewLogger(sink, store, nil)

	require.NoError(t, logger.Record(context.Background(), domain.LogRecord{Action: domain.ActionInserting, Title: "Leave", SourceName: "webtel"}))

	require.Len(t, store.records, 1)
	assert.False(t, store.records[0].CreatedAt.IsZero(), "timestamp must be stamped before fan-out")
	assert.Len(t, readLines(t, path), 1)
}

func TestRecordStoreFailureStillWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawler.log")
	sink, err := OpenFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	storeErr := errors.New("insert failed")
	err = NewLogger(sink, &memoryStore{err: storeErr}, nil).Record(context.Background(), domain.LogRecord{Action: domain.ActionSkipping, Title: "x"})

	assert.ErrorIs(t, err, storeErr)
	assert.Len(t, readLines(t, path), 1)
}
