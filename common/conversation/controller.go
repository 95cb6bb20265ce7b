// Package conversation owns the message history and runs one assistant
// round-trip per user message, strictly one turn at a time.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

const (
	// EmptyReplyFallback replaces a successful but empty assistant reply.
	EmptyReplyFallback = "I've processed your request."
	// FailureFallback is shown when the assistant could not be reached.
	FailureFallback = "Sorry, I encountered an error processing your request."
)

// Assistant converts free text into a reply and an optional intent.
type Assistant interface {
	Converse(ctx context.Context, text string) (types.Reply, error)
}

// Turn is the outcome of one Send call.
type Turn struct {
	User      types.Message
	Assistant types.Message
	Intent    types.Intent
	Failed    bool // the assistant errored and the fallback was used
	Skipped   bool // blank input, nothing happened
}

type Option func(*Controller)

// WithGreeting seeds the history with one assistant message.
func WithGreeting(text string) Option {
	return func(c *Controller) { c.greeting = text }
}

// WithTimeout bounds every assistant call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the single owner of the conversation history.
type Controller struct {
	assistant Assistant
	sink      telemetry.Sink
	greeting  string
	timeout   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	history []types.Message
	pending bool
	tail    chan struct{} // closed when the last queued turn finishes

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]types.Message)
}

func New(assistant Assistant, sink telemetry.Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	c := &Controller{
		assistant: assistant,
		sink:      sink,
		now:       time.Now,
		subs:      make(map[int]func([]types.Message)),
	}
	for _, opt := range opts {
		opt(c)
	}

	done := make(chan struct{})
	close(done)
	c.tail = done

	if c.greeting != "" {
		c.history = append(c.history, c.newMessage(types.RoleAssistant, c.greeting))
	}
	return c
}

// Send runs one turn for text. Blank text is ignored. Turns run in call
// order; a call waits until every earlier turn has appended its reply. The
// only error is ctx ending while the turn is still queued, in which case the
// history is untouched.
func (c *Controller) Send(ctx context.Context, text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{Skipped: true}, nil
	}

	c.mu.Lock()
	prev := c.tail
	done := make(chan struct{})
	c.tail = done
	c.mu.Unlock()

	// A turn that is not queued always runs, even with ctx already done.
	select {
	case <-prev:
	default:
		select {
		case <-prev:
		case <-ctx.Done():
			// Keep the chain intact for turns queued behind this one.
			go func() {
				<-prev
				close(done)
			}()
			return Turn{}, ctx.Err()
		}
	}
	defer close(done)

	return c.run(ctx, text), nil
}

func (c *Controller) run(ctx context.Context, text string) Turn {
	turn := Turn{User: c.newMessage(types.RoleUser, text)}
	c.mu.Lock()
	c.history = append(c.history, turn.User)
	c.pending = true
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.assistant.Converse(callCtx, text)
	content := reply.Text
	switch {
	case err != nil:
		c.sink.Report(types.KindAssistantUnavailable, err)
		content = FailureFallback
		turn.Failed = true
	case strings.TrimSpace(content) == "":
		content = EmptyReplyFallback
		turn.Intent = reply.Intent
	default:
		turn.Intent = reply.Intent
	}

	turn.Assistant = c.newMessage(types.RoleAssistant, content)
	c.mu.Lock()
	c.history = append(c.history, turn.Assistant)
	c.pending = false
	snapshot = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)

	log.Debug().
		Str("component", "conversation").
		Str("operation", "turn").
		Str("intent", turn.Intent.Action).
		Bool("has_query", turn.Intent.Query != nil).
		Bool("failed", turn.Failed).
		Msg("Turn completed")

	return turn
}

// History returns a copy of the conversation so far.
func (c *Controller) History() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Pending reports whether a turn is waiting on the assistant.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Subscribe registers fn to be called with the history after every append.
func (c *Controller) Subscribe(fn func([]types.Message)) (cancel func()) {
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

func (c *Controller) newMessage(role types.Role, content string) types.Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return types.Message{
		ID:        id.String(),
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
	}
}

func (c *Controller) snapshotLocked() []types.Message {
	out := make([]types.Message, len(c.history))
	copy(out, c.history)
	return out
}

// notify runs inside the turn, and turns are serialized, so subscribers
// see appends in order.
func (c *Controller) notify(history []types.Message) {
	c.subMu.Lock()
	fns := make([]func([]types.Message), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(history)
	}
}
