package logbuffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/monobilisim/logagent/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	batches [][]types.LogEntry
	fail    bool
}

func (r *recordingStore) Insert(_ context.Context, entries ...types.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("database is locked")
	}
	r.batches = append(r.batches, entries)
	return nil
}

func (r *recordingStore) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func entry(i int) types.LogEntry {
	return types.LogEntry{ID: fmt.Sprintf("e%d", i), Level: types.LevelInfo, Message: "m"}
}

func TestBuffer_FlushesFullBatchImmediately(t *testing.T) {
	store := &recordingStore{}
	var flushed atomic.Int64
	b := NewBuffer(store, Config{BatchSize: 3, FlushInterval: time.Hour}, func(n int) { flushed.Add(int64(n)) })

	b.Add(entry(1))
	b.Add(entry(2))
	assert.Equal(t, 0, store.total())
	assert.Equal(t, 2, b.Len())

	b.Add(entry(3))
	assert.Equal(t, 3, store.total())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int64(3), flushed.Load())
}

func TestBuffer_PeriodicFlush(t *testing.T) {
	store := &recordingStore{}
	b := NewBuffer(store, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil)
	b.Start()
	defer b.Close()

	b.Add(entry(1))
	require.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBuffer_CloseFlushesRemaining(t *testing.T) {
	store := &recordingStore{}
	b := NewBuffer(store, Config{BatchSize: 100, FlushInterval: time.Hour}, nil)
	b.Start()

	b.Add(entry(1))
	b.Add(entry(2))
	b.Close()

	assert.Equal(t, 2, store.total())
}

func TestBuffer_FailedFlushRequeues(t *testing.T) {
	store := &recordingStore{fail: true}
	called := false
	b := NewBuffer(store, Config{BatchSize: 100, FlushInterval: time.Hour}, func(int) { called = true })

	b.Add(entry(1))
	b.Add(entry(2))
	b.Flush()
	assert.Equal(t, 2, b.Len())
	assert.False(t, called)

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	b.Flush()
	assert.Equal(t, 0, b.Len())
	require.Len(t, store.batches, 1)
	assert.Equal(t, "e1", store.batches[0][0].ID)
	assert.True(t, called)
}

func TestBuffer_BacklogDropsOldest(t *testing.T) {
	store := &recordingStore{fail: true}
	b := NewBuffer(store, Config{BatchSize: 100, FlushInterval: time.Hour, MaxBacklog: 3}, nil)

	for i := 1; i <= 5; i++ {
		b.Add(entry(i))
	}
	assert.Equal(t, 3, b.Len())

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()
	b.Flush()

	require.Len(t, store.batches, 1)
	assert.Equal(t, []string{"e3", "e4", "e5"},
		[]string{store.batches[0][0].ID, store.batches[0][1].ID, store.batches[0][2].ID})
}
