// Package telemetry counts failures that are contained before they reach the
// user, so they stay visible to operators.
package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

// Sink receives contained failures.
type Sink interface {
	Report(kind types.ErrorKind, err error)
}

// Counter is a Sink that logs every report and keeps a count per kind.
type Counter struct {
	component string
	counts    sync.Map // types.ErrorKind -> *atomic.Int64
}

func NewCounter(component string) *Counter {
	return &Counter{component: component}
}

func (c *Counter) Report(kind types.ErrorKind, err error) {
	v, _ := c.counts.LoadOrStore(kind, new(atomic.Int64))
	n := v.(*atomic.Int64).Add(1)

	log.Error().
		Str("component", c.component).
		Str("operation", "report").
		Str("error_kind", string(kind)).
		Int64("count", n).
		Err(err).
		Msg("Contained failure")
}

// Count returns how many times kind was reported.
func (c *Counter) Count(kind types.ErrorKind) int64 {
	v, ok := c.counts.Load(kind)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Snapshot returns the current counts keyed by kind.
func (c *Counter) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	c.counts.Range(func(k, v any) bool {
		out[string(k.(types.ErrorKind))] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// Nop discards reports.
type Nop struct{}

func (Nop) Report(types.ErrorKind, error) {}
