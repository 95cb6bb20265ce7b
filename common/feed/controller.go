// Package feed owns the visible log list and sequences fetches against the
// log store so that only the most recently issued fetch can update it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

// Store answers a structured query with log entries.
type Store interface {
	Search(ctx context.Context, q query.Query) ([]types.LogEntry, error)
}

// State is a read-only snapshot of the feed.
type State struct {
	Entries []types.LogEntry
	Loading bool
	Query   query.Query // query of the latest issued fetch

	version uint64
}

type Option func(*Controller)

// WithTimeout bounds every search. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// Controller is the single owner of the feed state.
type Controller struct {
	store   Store
	sink    telemetry.Sink
	timeout time.Duration

	mu         sync.Mutex
	entries    []types.LogEntry
	loading    bool
	query      query.Query
	generation uint64
	version    uint64 // bumped on every state change

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)

	deliverMu sync.Mutex
	delivered uint64

	inflight sync.WaitGroup
}

func New(store Store, sink telemetry.Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	c := &Controller{
		store: store,
		sink:  sink,
		subs:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch starts a search for q and returns immediately. Loading is set before
// Fetch returns; any fetch still in flight is superseded.
func (c *Controller) Fetch(q query.Query) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.loading = true
	c.query = q
	c.version++
	state := c.snapshotLocked()
	c.mu.Unlock()

	log.Debug().
		Str("component", "feed").
		Str("operation", "fetch").
		Uint64("generation", gen).
		Str("query", q.String()).
		Msg("Issuing log search")

	c.notify(state)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		entries, err := c.search(q)
		c.complete(gen, entries, err)
	}()
}

func (c *Controller) search(q query.Query) ([]types.LogEntry, error) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	entries, err := c.store.Search(ctx, q)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, types.ErrStoreTimeout) {
		err = fmt.Errorf("%w: %w", types.ErrStoreTimeout, err)
	}
	return entries, err
}

func (c *Controller) complete(gen uint64, entries []types.LogEntry, err error) {
	c.mu.Lock()
	if gen != c.generation {
		current := c.generation
		c.mu.Unlock()
		log.Debug().
			Str("component", "feed").
			Str("operation", "complete").
			Uint64("generation", gen).
			Uint64("current_generation", current).
			Msg("Discarding superseded search result")
		return
	}

	c.loading = false
	if err == nil {
		c.entries = entries
	}
	c.version++
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		kind, ok := types.KindOf(err)
		if !ok || (kind != types.KindStoreTimeout && kind != types.KindStoreUnavailable) {
			kind = types.KindStoreUnavailable
		}
		c.sink.Report(kind, err)
	} else {
		log.Debug().
			Str("component", "feed").
			Str("operation", "complete").
			Uint64("generation", gen).
			Int("entries", len(entries)).
			Msg("Applied search result")
	}

	c.notify(state)
}

// State returns a copy of the current feed state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Generation returns the token of the latest issued fetch.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Subscribe registers fn to be called after every state change. fn runs
// without the state lock held but must not call Fetch synchronously.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Wait blocks until every issued search has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) snapshotLocked() State {
	entries := make([]types.LogEntry, len(c.entries))
	copy(entries, c.entries)
	return State{Entries: entries, Loading: c.loading, Query: c.query, version: c.version}
}

// notify delivers s to subscribers unless a newer state was already
// delivered, so listeners never observe the feed going backwards.
func (c *Controller) notify(s State) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if s.version <= c.delivered {
		return
	}
	c.delivered = s.version

	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
