package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssistant answers from a function and counts calls.
type fakeAssistant struct {
	calls atomic.Int32
	fn    func(ctx context.Context, text string) (types.Reply, error)
}

func (f *fakeAssistant) Converse(ctx context.Context, text string) (types.Reply, error) {
	f.calls.Add(1)
	return f.fn(ctx, text)
}

func echoAssistant() *fakeAssistant {
	return &fakeAssistant{fn: func(_ context.Context, text string) (types.Reply, error) {
		return types.Reply{Text: "echo: " + text}, nil
	}}
}

func TestSend_AppendsUserThenAssistant(t *testing.T) {
	c := New(echoAssistant(), nil)

	turn, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)

	h := c.History()
	require.Len(t, h, 2)
	assert.Equal(t, types.RoleUser, h[0].Role)
	assert.Equal(t, "hello", h[0].Content)
	assert.Equal(t, types.RoleAssistant, h[1].Role)
	assert.Equal(t, "echo: hello", h[1].Content)
	assert.Equal(t, h[1], turn.Assistant)
	assert.False(t, turn.Failed)
	assert.NotEqual(t, h[0].ID, h[1].ID)
}

func TestSend_ReturnsIntent(t *testing.T) {
	payload := types.NewQueryPayload(map[string]any{"level": "ERROR"})
	a := &fakeAssistant{fn: func(context.Context, string) (types.Reply, error) {
		return types.Reply{Text: "Here are the errors", Intent: types.Intent{Action: "filter_logs", Query: payload}}, nil
	}}
	c := New(a, nil)

	turn, err := c.Send(context.Background(), "show errors")
	require.NoError(t, err)
	assert.Equal(t, "filter_logs", turn.Intent.Action)
	assert.Same(t, payload, turn.Intent.Query)
}

func TestSend_BlankInputIsNoop(t *testing.T) {
	a := echoAssistant()
	c := New(a, nil, WithGreeting("hi"))

	for _, text := range []string{"", "   ", "\t\n"} {
		turn, err := c.Send(context.Background(), text)
		require.NoError(t, err)
		assert.True(t, turn.Skipped)
	}

	assert.Len(t, c.History(), 1)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestSend_EmptyReplyUsesFallback(t *testing.T) {
	payload := types.NewQueryPayload(map[string]any{"keyword": "login"})
	a := &fakeAssistant{fn: func(context.Context, string) (types.Reply, error) {
		return types.Reply{Text: "  ", Intent: types.Intent{Query: payload}}, nil
	}}
	c := New(a, nil)

	turn, err := c.Send(context.Background(), "logins")
	require.NoError(t, err)
	assert.Equal(t, EmptyReplyFallback, turn.Assistant.Content)
	assert.Same(t, payload, turn.Intent.Query, "intent survives an empty reply")
}

func TestSend_AssistantFailureIsContained(t *testing.T) {
	sink := telemetry.NewCounter("test")
	a := &fakeAssistant{fn: func(context.Context, string) (types.Reply, error) {
		return types.Reply{Text: "ignored", Intent: types.Intent{Action: "filter_logs"}}, fmt.Errorf("chat: %w", types.ErrAssistantUnavailable)
	}}
	c := New(a, sink)

	turn, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, turn.Failed)
	assert.Equal(t, types.Intent{}, turn.Intent)

	h := c.History()
	require.Len(t, h, 2)
	assert.Equal(t, FailureFallback, h[1].Content)
	assert.Equal(t, int64(1), sink.Count(types.KindAssistantUnavailable))
}

func TestSend_HistoryGrowsByTwoPerTurn(t *testing.T) {
	fail := false
	a := &fakeAssistant{fn: func(context.Context, string) (types.Reply, error) {
		fail = !fail
		if fail {
			return types.Reply{}, errors.New("boom")
		}
		return types.Reply{Text: "ok"}, nil
	}}
	c := New(a, nil, WithGreeting("welcome"))

	for i := 0; i < 4; i++ {
		before := len(c.History())
		_, err := c.Send(context.Background(), fmt.Sprintf("msg %d", i))
		require.NoError(t, err)

		h := c.History()
		require.Len(t, h, before+2)
		assert.Equal(t, types.RoleUser, h[len(h)-2].Role)
		assert.Equal(t, types.RoleAssistant, h[len(h)-1].Role)
	}
}

func TestSend_TurnsAreSerializedInCallOrder(t *testing.T) {
	release := make(chan struct{})
	var active atomic.Int32
	var overlap atomic.Bool
	a := &fakeAssistant{fn: func(_ context.Context, text string) (types.Reply, error) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		if text == "first" {
			<-release
		}
		return types.Reply{Text: "re: " + text}, nil
	}}
	c := New(a, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Send(context.Background(), "first")
	}()
	require.Eventually(t, c.Pending, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Send(context.Background(), "second")
	}()

	// The second turn must not have appended anything yet.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.History(), 1)

	close(release)
	wg.Wait()

	h := c.History()
	require.Len(t, h, 4)
	assert.Equal(t, []string{"first", "re: first", "second", "re: second"},
		[]string{h[0].Content, h[1].Content, h[2].Content, h[3].Content})
	assert.False(t, overlap.Load())
}

func TestSend_CancelledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	a := &fakeAssistant{fn: func(_ context.Context, text string) (types.Reply, error) {
		if text == "slow" {
			<-release
		}
		return types.Reply{Text: "ok"}, nil
	}}
	c := New(a, nil)

	go func() { _, _ = c.Send(context.Background(), "slow") }()
	require.Eventually(t, c.Pending, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, "dropped")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	_, err = c.Send(context.Background(), "after")
	require.NoError(t, err)

	h := c.History()
	require.Len(t, h, 4)
	assert.Equal(t, "slow", h[0].Content)
	assert.Equal(t, "after", h[2].Content)
}

func TestSend_IdleControllerRunsWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 100; i++ {
		a := echoAssistant()
		c := New(a, nil)

		turn, err := c.Send(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, "echo: hello", turn.Assistant.Content)
		require.Len(t, c.History(), 2)
		assert.Equal(t, int32(1), a.calls.Load())
	}
}

func TestSend_TimeoutFallsBack(t *testing.T) {
	a := &fakeAssistant{fn: func(ctx context.Context, _ string) (types.Reply, error) {
		<-ctx.Done()
		return types.Reply{}, ctx.Err()
	}}
	c := New(a, nil, WithTimeout(10*time.Millisecond))

	turn, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, turn.Failed)
	assert.Equal(t, FailureFallback, turn.Assistant.Content)
}

func TestGreetingAndClock(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c := New(echoAssistant(), nil, WithGreeting("Hello!"), WithClock(func() time.Time { return fixed }))

	h := c.History()
	require.Len(t, h, 1)
	assert.Equal(t, types.RoleAssistant, h[0].Role)
	assert.Equal(t, "Hello!", h[0].Content)
	assert.Equal(t, fixed, h[0].Timestamp)
}

func TestSubscribe_SeesEveryAppend(t *testing.T) {
	c := New(echoAssistant(), nil)

	var lengths []int
	cancel := c.Subscribe(func(h []types.Message) { lengths = append(lengths, len(h)) })
	defer cancel()

	_, err := c.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, lengths)
}
