package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// respSpec defines an HTTP status and body for the test server's response.
type respSpec struct {
	Status int
	Body   string
}

// recorded keeps the last request body per path.
type recorded struct {
	mu     sync.Mutex
	bodies map[string][]byte
}

func (r *recorded) body(path string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[path]
}

// setupTestServer serves fixed responses per path and returns a client
// pointed at it.
func setupTestServer(t *testing.T, cfg models.AssistantConfig, routes map[string]respSpec) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{bodies: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.bodies[r.URL.Path] = b
		rec.mu.Unlock()

		spec, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(spec.Status)
		w.Write([]byte(spec.Body))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, cfg)
	require.NoError(t, err)
	c.HTTPClient = srv.Client()
	return c, rec
}

func TestSearch(t *testing.T) {
	c, bodies := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/logs/search": {http.StatusOK, `{"logs":[{"id":"2","timestamp":"2025-01-15T11:00:00Z","level":"ERROR","source":"sentry","message":"Payment processing error"}],"total":1}`},
	})

	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	entries, err := c.Search(context.Background(), query.Query{Level: types.LevelError, Range: &query.TimeRange{Start: start}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].ID)
	assert.Equal(t, types.LevelError, entries[0].Level)

	var sent models.SearchRequest
	require.NoError(t, json.Unmarshal(bodies.body("/api/v1/logs/search"), &sent))
	assert.Equal(t, "ERROR", sent.Level)
	require.NotNil(t, sent.StartTime)
	assert.True(t, start.Equal(*sent.StartTime))
	assert.Nil(t, sent.EndTime)
}

func TestSearch_ErrorMapping(t *testing.T) {
	c, _ := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/logs/search": {http.StatusServiceUnavailable, `{"error":"store_unavailable"}`},
	})
	_, err := c.Search(context.Background(), query.Query{})
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	gw, _ := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/logs/search": {http.StatusGatewayTimeout, `{"error":"store_timeout"}`},
	})
	_, err = gw.Search(context.Background(), query.Query{})
	assert.ErrorIs(t, err, types.ErrStoreTimeout)

	garbled, _ := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/logs/search": {http.StatusOK, `not json`},
	})
	_, err = garbled.Search(context.Background(), query.Query{})
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestSearch_TransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, models.AssistantConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, query.Query{})
	assert.ErrorIs(t, err, types.ErrStoreTimeout)
}

func TestSearch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, models.AssistantConfig{})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), query.Query{})
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestConverse_DefaultPaths(t *testing.T) {
	c, bodies := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/chat": {http.StatusOK, `{"response":"Filtering for logs with ERROR level.","action":{"original_query":"failed","interpreted_intent":"filter_logs","generated_query":{"level":"ERROR"},"explanation":"Filtering for logs with ERROR level."}}`},
	})

	reply, err := c.Converse(context.Background(), "failed")
	require.NoError(t, err)
	assert.Equal(t, "Filtering for logs with ERROR level.", reply.Text)
	assert.Equal(t, "filter_logs", reply.Intent.Action)
	assert.Equal(t, query.Query{Level: types.LevelError}, query.Extract(reply.Intent))
	assert.JSONEq(t, `{"message":"failed"}`, string(bodies.body("/api/v1/chat")))
}

func TestConverse_CustomPaths(t *testing.T) {
	c, _ := setupTestServer(t, models.AssistantConfig{
		ReplyPath:  ".choices[0].text",
		IntentPath: `{interpreted_intent: .intent, generated_query: .filters}`,
	}, map[string]respSpec{
		"/nlu": {http.StatusOK, `{"choices":[{"text":"Looking for logins"}],"intent":"search","filters":{"keyword":"login","extra":"x"}}`},
	})
	c.AssistantURL = c.URL + "/nlu"

	reply, err := c.Converse(context.Background(), "logins please")
	require.NoError(t, err)
	assert.Equal(t, "Looking for logins", reply.Text)
	assert.Equal(t, "search", reply.Intent.Action)
	require.NotNil(t, reply.Intent.Query)
	assert.Equal(t, "login", reply.Intent.Query.Keyword)
	assert.Equal(t, map[string]any{"extra": "x"}, reply.Intent.Query.Unknown)
}

func TestConverse_PayloadShapes(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantNil     bool
		wantInvalid bool
	}{
		{"no action", `{"response":"hi"}`, true, false},
		{"null query", `{"response":"hi","action":{"interpreted_intent":"unknown","generated_query":null}}`, true, false},
		{"non-object query", `{"response":"hi","action":{"generated_query":"ERROR"}}`, false, true},
		{"empty object", `{"response":"hi","action":{"generated_query":{}}}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
				"/api/v1/chat": {http.StatusOK, tt.body},
			})
			reply, err := c.Converse(context.Background(), "x")
			require.NoError(t, err)
			assert.Equal(t, "hi", reply.Text)
			if tt.wantNil {
				assert.Nil(t, reply.Intent.Query)
				return
			}
			require.NotNil(t, reply.Intent.Query)
			assert.Empty(t, reply.Intent.Query.Map())
			assert.Equal(t, tt.wantInvalid, reply.Intent.Query.Invalid)
		})
	}
}

func TestConverse_Failures(t *testing.T) {
	c, _ := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/chat": {http.StatusInternalServerError, `boom`},
	})
	_, err := c.Converse(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrAssistantUnavailable)

	bad, _ := setupTestServer(t, models.AssistantConfig{}, map[string]respSpec{
		"/api/v1/chat": {http.StatusOK, `<html>`},
	})
	_, err = bad.Converse(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrAssistantUnavailable)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("http://localhost", models.AssistantConfig{ReplyPath: ".["})
	assert.Error(t, err)

	_, err = New("http://localhost", models.AssistantConfig{IntentPath: "{"})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New("http://localhost:9989/", models.AssistantConfig{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9989", c.URL)
	assert.Equal(t, "http://localhost:9989/api/v1/chat", c.AssistantURL)
	require.NotNil(t, c.HTTPClient)
	assert.Equal(t, time.Second, c.HTTPClient.Timeout)
}
