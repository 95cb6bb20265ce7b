package logbuffer

import (
	"context"
	"sync"
	"time"

	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

// Inserter is where flushed entries go.
type Inserter interface {
	Insert(ctx context.Context, entries ...types.LogEntry) error
}

// Buffer is a thread-safe, in-memory buffer for incoming log entries.
// It automatically flushes them to the store in batches.
type Buffer struct {
	mu       sync.Mutex
	store    Inserter
	cfg      Config
	entries  []types.LogEntry
	onFlush  func(n int)
	ticker   *time.Ticker
	quitChan chan struct{}
	done     chan struct{}
}

// NewBuffer creates a new log buffer. onFlush, when non-nil, runs after
// every successful flush with the number of entries written.
func NewBuffer(store Inserter, cfg Config, onFlush func(n int)) *Buffer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 3 * time.Second
	}
	return &Buffer{
		store:    store,
		cfg:      cfg,
		entries:  make([]types.LogEntry, 0, cfg.BatchSize),
		onFlush:  onFlush,
		quitChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Add adds a log entry to the buffer. If the buffer reaches its batch size,
// it triggers an immediate flush.
func (b *Buffer) Add(entry types.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)
	b.trimLocked()

	if len(b.entries) >= b.cfg.BatchSize {
		b.flushLocked()
	}
}

// Len returns the number of entries waiting to be flushed.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Start begins the periodic flush goroutine.
func (b *Buffer) Start() {
	b.ticker = time.NewTicker(b.cfg.FlushInterval)
	go b.loop()
}

// Close stops the flush goroutine after a final flush and waits for it.
func (b *Buffer) Close() {
	close(b.quitChan)
	if b.ticker != nil {
		<-b.done
	} else {
		b.Flush()
	}
}

func (b *Buffer) loop() {
	defer close(b.done)
	defer b.ticker.Stop()
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.quitChan:
			log.Info().Str("component", "logbuffer").Msg("Log buffer shutting down, flushing remaining entries...")
			b.Flush()
			log.Info().Str("component", "logbuffer").Msg("Log buffer shutdown complete.")
			return
		}
	}
}

// Flush writes all pending entries to the store. Safe to call concurrently.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flushLocked()
}

// flushLocked must be called with the mutex held. The lock is released
// during the store write.
func (b *Buffer) flushLocked() {
	if len(b.entries) == 0 {
		return
	}

	toFlush := make([]types.LogEntry, len(b.entries))
	copy(toFlush, b.entries)
	b.entries = b.entries[:0]

	b.mu.Unlock()
	defer b.mu.Lock()

	log.Debug().Str("component", "logbuffer").Int("count", len(toFlush)).Msg("Flushing log entries to store")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.store.Insert(ctx, toFlush...); err != nil {
		log.Error().
			Str("component", "logbuffer").
			Str("operation", "flush").
			Int("count", len(toFlush)).
			Err(err).
			Msg("Failed to flush log buffer to store")

		// Re-queue and let the next tick retry.
		b.mu.Lock()
		b.entries = append(toFlush, b.entries...)
		b.trimLocked()
		b.mu.Unlock()
		return
	}

	if b.onFlush != nil {
		b.onFlush(len(toFlush))
	}
}

// trimLocked drops the oldest entries beyond MaxBacklog.
func (b *Buffer) trimLocked() {
	if b.cfg.MaxBacklog <= 0 || len(b.entries) <= b.cfg.MaxBacklog {
		return
	}
	dropped := len(b.entries) - b.cfg.MaxBacklog
	b.entries = append(b.entries[:0], b.entries[dropped:]...)
	log.Warn().
		Str("component", "logbuffer").
		Int("dropped", dropped).
		Int("max_backlog", b.cfg.MaxBacklog).
		Msg("Log buffer backlog exceeded, dropping oldest entries")
}
