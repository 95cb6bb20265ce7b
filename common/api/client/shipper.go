package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadShipConfig() models.ShipConfig {
	viper.SetDefault("ship.enabled", false)
	viper.SetDefault("ship.url", "")
	viper.SetDefault("ship.min_level", "warn")
	viper.SetDefault("ship.retries", 3)

	return models.ShipConfig{
		Enabled:  viper.GetBool("ship.enabled"),
		URL:      viper.GetString("ship.url"),
		MinLevel: viper.GetString("ship.min_level"),
		Retries:  viper.GetInt("ship.retries"),
	}
}

// Shipper submits log entries to a server's POST /logs endpoint. It never
// logs through zerolog itself so it can sit behind a zerolog hook.
type Shipper struct {
	url     string
	client  *http.Client
	retries int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	failed atomic.Int64
}

func NewShipper(serverURL string, retries int) *Shipper {
	if retries <= 0 {
		retries = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Shipper{
		url:     strings.TrimRight(serverURL, "/") + apiPrefix + "/logs",
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: retries,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit sends req, retrying with exponential backoff (100ms * 2^attempt).
func (s *Shipper) Submit(req models.LogRequest) error {
	var lastErr error

	for attempt := 0; attempt < s.retries; attempt++ {
		if lastErr = s.doSubmit(req); lastErr == nil {
			return nil
		}
		if attempt == s.retries-1 {
			break
		}

		delay := time.Duration(100*(1<<attempt)) * time.Millisecond
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("failed to submit log after %d attempts: %w", s.retries, lastErr)
}

func (s *Shipper) doSubmit(entry models.LogRequest) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "logagent/"+common.Version)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Go submits req in the background. Failures are only counted.
func (s *Shipper) Go(req models.LogRequest) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Submit(req); err != nil {
			s.failed.Add(1)
		}
	}()
}

// Failed is the number of entries that could not be delivered.
func (s *Shipper) Failed() int64 {
	return s.failed.Load()
}

// Flush waits for background submissions to finish.
func (s *Shipper) Flush() {
	s.wg.Wait()
}

// Close abandons pending retries and waits for in-flight submissions.
func (s *Shipper) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// LogHook is a zerolog hook that forwards events at or above a level.
type LogHook struct {
	shipper *Shipper
	source  string
	min     zerolog.Level
}

func NewLogHook(shipper *Shipper, source string, minLevel zerolog.Level) *LogHook {
	return &LogHook{shipper: shipper, source: source, min: minLevel}
}

// Run implements zerolog.Hook. zerolog does not expose event fields to hooks,
// so only the level and message are forwarded.
func (h *LogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < h.min || level == zerolog.NoLevel || msg == "" {
		return
	}

	h.shipper.Go(models.LogRequest{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Source:    h.source,
		Message:   msg,
		Metadata:  map[string]interface{}{"version": common.Version},
	})
}

// InstallLogHook attaches a LogHook to the global logger when ship.enabled is
// set. The returned func waits for pending submissions; call it before exit.
func InstallLogHook(source string) func() {
	cfg := LoadShipConfig()
	if !cfg.Enabled {
		return func() {}
	}

	url := cfg.URL
	if url == "" {
		url = viper.GetString("server.url")
	}
	if url == "" {
		url = "http://localhost:9989"
	}
	minLevel, err := zerolog.ParseLevel(cfg.MinLevel)
	if err != nil || minLevel == zerolog.NoLevel {
		minLevel = zerolog.WarnLevel
	}

	shipper := NewShipper(url, cfg.Retries)
	log.Logger = log.Logger.Hook(NewLogHook(shipper, source, minLevel))

	return func() {
		shipper.Flush()
		shipper.Close()
	}
}
