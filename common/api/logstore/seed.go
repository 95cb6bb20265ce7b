package logstore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

var (
	mockLevels   = []types.Level{types.LevelInfo, types.LevelWarning, types.LevelError, types.LevelDebug}
	mockSources  = []string{"aws", "datadog", "sentry"}
	mockMessages = []string{
		"User login successful",
		"Database connection failed",
		"Payment processing error",
		"API rate limit exceeded",
		"Cache miss",
		"New user registered",
		"Email sent successfully",
		"Job processing started",
		"Job processing completed",
		"Invalid credentials",
	}
)

// MockEntries builds n demo entries spaced five minutes apart going back
// from now. rng may be nil.
func MockEntries(n int, now time.Time, rng *rand.Rand) []types.LogEntry {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}
	now = now.UTC().Truncate(time.Second)

	entries := make([]types.LogEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, types.LogEntry{
			ID:        fmt.Sprintf("log-%d-%d", now.Unix(), i),
			Timestamp: now.Add(-time.Duration(i) * 5 * time.Minute),
			Level:     mockLevels[rng.IntN(len(mockLevels))],
			Source:    mockSources[rng.IntN(len(mockSources))],
			Message:   mockMessages[rng.IntN(len(mockMessages))],
			Metadata:  map[string]any{"request_id": fmt.Sprintf("req-%d", 1000+rng.IntN(9000))},
		})
	}
	return entries
}

// Seed inserts n mock entries.
func (s *Store) Seed(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	entries := MockEntries(n, time.Now(), nil)
	if err := s.Insert(ctx, entries...); err != nil {
		return 0, err
	}
	log.Info().
		Str("component", "logstore").
		Str("operation", "seed").
		Int("count", n).
		Msg("Seeded mock log entries")
	return n, nil
}

// SeedIfEmpty seeds only when the store holds no entries at all.
func (s *Store) SeedIfEmpty(ctx context.Context, n int) (int, error) {
	total, err := s.Count(ctx, query.Query{})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return 0, nil
	}
	return s.Seed(ctx, n)
}
