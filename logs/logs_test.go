package logs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/monobilisim/logagent/common/api/logstore"
	"github.com/monobilisim/logagent/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func sampleEntries() []types.LogEntry {
	return []types.LogEntry{
		{ID: "1", Timestamp: base, Level: types.LevelError, Source: "sentry", Message: "Payment processing error", Metadata: map[string]any{"request_id": "req-1234"}},
		{ID: "2", Timestamp: base.Add(-time.Hour), Level: types.LevelInfo, Source: "datadog", Message: "Cache cleared", Metadata: map[string]any{"request_id": "req-5678"}},
		{ID: "3", Timestamp: base.Add(-2 * time.Hour), Level: types.LevelWarning, Source: "aws", Message: "High memory usage detected"},
	}
}

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		text    string
		pattern string
		want    bool
	}{
		{"datadog", "data*", true},
		{"datadog", "*dog", true},
		{"sentry", "data*", false},
		{"aws", "a?s", true},
		{"a*b", `a\*b`, true},
		{"axb", `a\*b`, false},
		{"anything", "", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, wildcardMatch(tt.text, tt.pattern), "%s ~ %s", tt.text, tt.pattern)
	}
}

func TestFilterLogs(t *testing.T) {
	entries := sampleEntries()

	got := filterLogs(entries, LogFilter{Source: "data*"})
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	got = filterLogs(entries, LogFilter{Fields: map[string]string{"request_id": "req-1*"}})
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got = filterLogs(entries, LogFilter{Fields: map[string]string{"missing": "*"}})
	assert.Empty(t, got)

	assert.Len(t, filterLogs(entries, LogFilter{}), 3)
}

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery(searchFlags{keyword: " login ", level: "error", from: "2025-01-15", to: "2025-01-16 12:00:00"})
	require.NoError(t, err)
	assert.Equal(t, "login", q.Keyword)
	assert.Equal(t, types.LevelError, q.Level)
	require.NotNil(t, q.Range)
	assert.Equal(t, 15, q.Range.Start.Day())
	assert.Equal(t, 12, q.Range.End.Hour())

	q, err = buildQuery(searchFlags{})
	require.NoError(t, err)
	assert.True(t, q.IsEmpty())

	for _, flags := range []searchFlags{
		{level: "critical"},
		{from: "yesterday"},
		{from: "2025-01-16", to: "2025-01-15"},
	} {
		_, err := buildQuery(flags)
		assert.Error(t, err, "%+v", flags)
	}
}

func TestParseFieldFilters(t *testing.T) {
	got, err := parseFieldFilters([]string{"request_id=req-1", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"request_id": "req-1", "note": "a=b"}, got)

	_, err = parseFieldFilters([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseFieldFilters([]string{"=x"})
	assert.Error(t, err)
}

func TestFormatGetFields(t *testing.T) {
	out := formatGetFields(sampleEntries()[:2], []string{"source", "request_id", "nope"})
	assert.Equal(t, "sentry\treq-1234\t\ndatadog\treq-5678\t\n", out)
}

func TestFormatRawJSON(t *testing.T) {
	out, err := formatRawJSON(sampleEntries())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	var e types.LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "Payment processing error", e.Message)
	assert.Equal(t, types.LevelError, e.Level)
}

func TestFormatTableAndPretty(t *testing.T) {
	table, err := formatLogs(sampleEntries(), OutputOptions{Table: true})
	require.NoError(t, err)
	assert.Contains(t, table, "High memory usage detected")
	assert.Contains(t, table, "datadog")

	pretty, err := formatLogs(sampleEntries(), OutputOptions{})
	require.NoError(t, err)
	assert.Contains(t, pretty, "Payment processing error")
	assert.Contains(t, pretty, "sentry")
	assert.Equal(t, 3, strings.Count(pretty, "\n"))
}

func TestConsoleLevel(t *testing.T) {
	assert.Equal(t, "warn", consoleLevel(types.LevelWarning))
	assert.Equal(t, "error", consoleLevel(types.LevelError))
	assert.Equal(t, "unknown", consoleLevel(types.LevelUnknown))
}

type batchRecorder struct {
	batches [][]types.LogEntry
	failAt  int
}

func (b *batchRecorder) write(_ context.Context, batch []types.LogEntry) error {
	if b.failAt > 0 && len(b.batches)+1 == b.failAt {
		return errors.New("write failed")
	}
	b.batches = append(b.batches, batch)
	return nil
}

const importInput = `{"timestamp":"2025-01-15T12:00:00Z","level":"error","component":"api","message":"Store request failed","operation":"search"}
not json
{"level":"info","message":"Logagent API listening","addr":":9989"}

{"level":"warn","msg":"slow query","service":"db"}
{"level":"info"}
`

func TestImportEntries(t *testing.T) {
	rec := &batchRecorder{}
	read, skipped, err := importEntries(context.Background(), strings.NewReader(importInput), 2, rec.write)
	require.NoError(t, err)
	assert.Equal(t, 3, read)
	assert.Equal(t, 2, skipped)
	require.Len(t, rec.batches, 2)
	assert.Len(t, rec.batches[0], 2)
	assert.Len(t, rec.batches[1], 1)

	first := rec.batches[0][0]
	assert.Equal(t, "api", first.Source)
	assert.Equal(t, types.LevelError, first.Level)
	assert.Equal(t, "search", first.Metadata["operation"])
	assert.Equal(t, "db", rec.batches[1][0].Source)
}

func TestImportEntries_WriteFailure(t *testing.T) {
	rec := &batchRecorder{failAt: 1}
	_, _, err := importEntries(context.Background(), strings.NewReader(importInput), 2, rec.write)
	assert.Error(t, err)
	assert.Empty(t, rec.batches)
}

type recordingPublisher struct{ sent []types.LogEntry }

func (p *recordingPublisher) Publish(_ context.Context, e types.LogEntry) error {
	p.sent = append(p.sent, e)
	return nil
}

func TestPublishWriter(t *testing.T) {
	pub := &recordingPublisher{}
	read, _, err := importEntries(context.Background(), strings.NewReader(importInput), 100, publishWriter(pub))
	require.NoError(t, err)
	assert.Equal(t, 3, read)
	assert.Len(t, pub.sent, 3)
}

func setupTestStore(t *testing.T) *logstore.Store {
	t.Helper()
	db, err := logstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return logstore.New(db, 0)
}

func TestRunSearch_Store(t *testing.T) {
	store := setupTestStore(t)
	rec := storeWriter(store)
	require.NoError(t, rec(context.Background(), sampleEntries()))

	open := func() (limitSearcher, error) { return store, nil }

	got, err := runSearch(context.Background(), searchFlags{level: "error"}, open)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got, err = runSearch(context.Background(), searchFlags{source: "*s", timeout: time.Second}, open)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	got, err = runSearch(context.Background(), searchFlags{limit: 2}, open)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = runSearch(context.Background(), searchFlags{fields: []string{"bad"}}, open)
	assert.Error(t, err)
}

func TestRunSearch_OpenFailure(t *testing.T) {
	_, err := runSearch(context.Background(), searchFlags{}, func() (limitSearcher, error) {
		return nil, types.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}
