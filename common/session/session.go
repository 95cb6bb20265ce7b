// Package session binds conversation turns to feed refreshes.
package session

import (
	"context"
	"fmt"

	"github.com/monobilisim/logagent/common/conversation"
	"github.com/monobilisim/logagent/common/feed"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

// Session drives one operator session. It owns neither the feed nor the
// conversation; it only calls their operations.
type Session struct {
	conv *conversation.Controller
	feed *feed.Controller
	sink telemetry.Sink
}

func New(conv *conversation.Controller, f *feed.Controller, sink telemetry.Sink) *Session {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Session{conv: conv, feed: f, sink: sink}
}

// Start issues the initial unfiltered fetch.
func (s *Session) Start() {
	s.feed.Fetch(query.Query{})
}

// Submit runs one conversation turn and refreshes the feed when the turn
// produced a generated query. Collaborator failures never surface here; the
// returned error is only ctx ending before the turn could start.
func (s *Session) Submit(ctx context.Context, text string) error {
	turn, err := s.conv.Send(ctx, text)
	if err != nil {
		return err
	}
	if turn.Skipped || turn.Intent.Query == nil {
		return nil
	}

	q := query.Extract(turn.Intent)
	if p := turn.Intent.Query; q.IsEmpty() && (p.Invalid || len(p.Map()) > 0) {
		s.sink.Report(types.KindMalformedIntent,
			fmt.Errorf("%w: no usable filter in %v", types.ErrMalformedIntent, p.Map()))
	}

	log.Debug().
		Str("component", "session").
		Str("operation", "submit").
		Str("intent", turn.Intent.Action).
		Str("query", q.String()).
		Msg("Refreshing feed from intent")

	s.feed.Fetch(q)
	return nil
}

func (s *Session) Feed() *feed.Controller {
	return s.feed
}

func (s *Session) Conversation() *conversation.Controller {
	return s.conv
}
