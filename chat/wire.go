// Package chat is the operator front end: an interactive terminal session
// that pairs a live log feed with a conversational assistant, and the
// one-shot ask command built on the same session.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/monobilisim/logagent/common/api/assistant"
	"github.com/monobilisim/logagent/common/api/client"
	"github.com/monobilisim/logagent/common/api/logstore"
	"github.com/monobilisim/logagent/common/api/server"
	"github.com/monobilisim/logagent/common/conversation"
	"github.com/monobilisim/logagent/common/feed"
	"github.com/monobilisim/logagent/common/session"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const DefaultGreeting = "Hello! I'm your Log Analytics Agent. Ask me anything about your logs, like 'Show me failed logins in the last hour'."

type Config struct {
	Greeting         string
	FeedTimeout      time.Duration
	AssistantTimeout time.Duration
	SeedCount        int
}

func LoadConfig() Config {
	viper.SetDefault("chat.greeting", DefaultGreeting)
	viper.SetDefault("feed.timeout", 10*time.Second)

	return Config{
		Greeting:         viper.GetString("chat.greeting"),
		FeedTimeout:      viper.GetDuration("feed.timeout"),
		AssistantTimeout: client.LoadConfig().Timeout,
		SeedCount:        logstore.LoadConfig().SeedCount,
	}
}

// Backend is the store and assistant pair a session talks to.
type Backend struct {
	Store     feed.Store
	Assistant conversation.Assistant
	close     func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// LocalBackend serves the session from an in-memory store seeded with mock
// entries and the rule-based assistant, without any server.
func LocalBackend(ctx context.Context, seed int) (*Backend, error) {
	db, err := logstore.OpenMemory()
	if err != nil {
		return nil, err
	}
	store := logstore.New(db, 0)
	if seed > 0 {
		if _, err := store.Seed(ctx, seed); err != nil {
			return nil, fmt.Errorf("seeding local store: %w", err)
		}
	}

	log.Debug().Str("component", "chat").Int("seeded", seed).Msg("Using in-memory backend")

	return &Backend{
		Store:     store,
		Assistant: assistant.Local{},
		close: func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}, nil
}

// RemoteBackend talks to a logagent server for both searches and chat.
func RemoteBackend() (*Backend, error) {
	url := server.LoadConfig().URL
	c, err := client.New(url, client.LoadConfig())
	if err != nil {
		return nil, err
	}
	log.Debug().Str("component", "chat").Str("server", url).Msg("Using remote backend")
	return &Backend{Store: c, Assistant: c}, nil
}

// NewSession wires a feed and a conversation over b.
func NewSession(b *Backend, cfg Config, sink telemetry.Sink) *session.Session {
	f := feed.New(b.Store, sink, feed.WithTimeout(cfg.FeedTimeout))
	conv := conversation.New(b.Assistant, sink,
		conversation.WithGreeting(cfg.Greeting),
		conversation.WithTimeout(cfg.AssistantTimeout))
	return session.New(conv, f, sink)
}

func openBackend(ctx context.Context, local bool, cfg Config) (*Backend, error) {
	if local {
		return LocalBackend(ctx, cfg.SeedCount)
	}
	return RemoteBackend()
}
