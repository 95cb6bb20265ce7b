// Package client talks to a logagent server: it is the remote log store and
// the remote assistant used by the chat UI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/itchyny/gojq"
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const apiPrefix = "/api/v1"

// LoadConfig reads the assistant section of the shared config file. An empty
// URL means the chat endpoint of server.url.
func LoadConfig() models.AssistantConfig {
	viper.SetDefault("assistant.url", "")
	viper.SetDefault("assistant.reply_path", ".response")
	viper.SetDefault("assistant.intent_path", ".action")
	viper.SetDefault("assistant.timeout", 15*time.Second)

	return models.AssistantConfig{
		URL:        viper.GetString("assistant.url"),
		ReplyPath:  viper.GetString("assistant.reply_path"),
		IntentPath: viper.GetString("assistant.intent_path"),
		Timeout:    viper.GetDuration("assistant.timeout"),
	}
}

type Client struct {
	URL          string
	HTTPClient   *http.Client // Allows injection for testing
	AssistantURL string

	replyPath  *gojq.Code
	intentPath *gojq.Code
}

// New builds a client for the server at serverURL. The jq paths in cfg are
// compiled here so a bad expression fails at startup.
func New(serverURL string, cfg models.AssistantConfig) (*Client, error) {
	c := &Client{
		URL:          strings.TrimRight(serverURL, "/"),
		AssistantURL: cfg.URL,
	}
	if c.AssistantURL == "" {
		c.AssistantURL = c.URL + apiPrefix + "/chat"
	}
	if cfg.Timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	replyPath, intentPath := cfg.ReplyPath, cfg.IntentPath
	if replyPath == "" {
		replyPath = ".response"
	}
	if intentPath == "" {
		intentPath = ".action"
	}

	var err error
	if c.replyPath, err = compile(replyPath); err != nil {
		return nil, fmt.Errorf("invalid assistant.reply_path: %w", err)
	}
	if c.intentPath, err = compile(intentPath); err != nil {
		return nil, fmt.Errorf("invalid assistant.intent_path: %w", err)
	}
	return c, nil
}

// hc returns the configured *http.Client, or http.DefaultClient if nil.
func (c *Client) hc() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) Search(ctx context.Context, q query.Query) ([]types.LogEntry, error) {
	return c.SearchLimit(ctx, q, 0)
}

// SearchLimit runs q on the server. Failures wrap ErrStoreTimeout or
// ErrStoreUnavailable.
func (c *Client) SearchLimit(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error) {
	req := models.SearchRequest{
		Keyword: q.Keyword,
		Level:   string(q.Level),
		Limit:   limit,
	}
	if q.Range != nil {
		if !q.Range.Start.IsZero() {
			start := q.Range.Start
			req.StartTime = &start
		}
		if !q.Range.End.IsZero() {
			end := q.Range.End
			req.EndTime = &end
		}
	}

	var resp models.LogsResponse
	body, err := c.post(ctx, c.URL+apiPrefix+"/logs/search", req)
	if err != nil {
		return nil, storeError(err)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %w", types.ErrStoreUnavailable, err)
	}
	return resp.Logs, nil
}

// Converse sends text to the assistant endpoint and reads the reply and the
// intent out of the response with the configured jq paths. Every failure
// wraps ErrAssistantUnavailable.
func (c *Client) Converse(ctx context.Context, text string) (types.Reply, error) {
	body, err := c.post(ctx, c.AssistantURL, models.ChatRequest{Message: text})
	if err != nil {
		return types.Reply{}, fmt.Errorf("%w: %w", types.ErrAssistantUnavailable, err)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return types.Reply{}, fmt.Errorf("%w: decoding chat response: %w", types.ErrAssistantUnavailable, err)
	}

	reply, err := first(c.replyPath, doc)
	if err != nil {
		return types.Reply{}, fmt.Errorf("%w: reply_path: %w", types.ErrAssistantUnavailable, err)
	}
	text, _ = reply.(string)

	action, err := first(c.intentPath, doc)
	if err != nil {
		return types.Reply{}, fmt.Errorf("%w: intent_path: %w", types.ErrAssistantUnavailable, err)
	}

	return types.Reply{Text: text, Intent: intentFrom(action)}, nil
}

// intentFrom reads an action object. A generated_query that is present but
// not an object becomes an empty, invalid payload; an absent or null one
// stays nil.
func intentFrom(v interface{}) types.Intent {
	m, ok := v.(map[string]interface{})
	if !ok {
		return types.Intent{}
	}
	intent := types.Intent{}
	intent.Action, _ = m["interpreted_intent"].(string)

	switch gq := m["generated_query"].(type) {
	case nil:
	case map[string]interface{}:
		intent.Query = types.NewQueryPayload(gq)
	default:
		intent.Query = &types.QueryPayload{Invalid: true}
	}
	return intent
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("component", "client").Str("url", url).Msg("Sending POST request")

	resp, err := c.hc().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// storeError maps a transport failure onto the store sentinels. A 504 from
// the server is the server's own store timing out.
func storeError(err error) error {
	var netErr net.Error
	var se *statusError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.As(err, &se) && se.code == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w", types.ErrStoreTimeout, err)
	}
	return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
}

func compile(expr string) (*gojq.Code, error) {
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, err
	}
	return gojq.Compile(parsed)
}

// first returns the first value code yields for doc, or nil when it yields
// nothing.
func first(code *gojq.Code, doc interface{}) (interface{}, error) {
	iter := code.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	return v, nil
}
