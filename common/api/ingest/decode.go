// Package ingest turns external log records (HTTP bodies, AMQP messages,
// JSON-lines files) into log entries.
package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/types"
)

var ErrInvalidRecord = errors.New("invalid log record")

var levelAliases = map[string]types.Level{
	"warn":     types.LevelWarning,
	"err":      types.LevelError,
	"fatal":    types.LevelError,
	"panic":    types.LevelError,
	"critical": types.LevelError,
	"trace":    types.LevelDebug,
}

// sourceKeys are tried in order for the entry source.
var sourceKeys = []string{"source", "service", "component"}

// reserved keys never end up in metadata.
var reserved = map[string]bool{
	"id": true, "timestamp": true, "time": true, "level": true,
	"message": true, "msg": true, "metadata": true,
	"source": true, "service": true, "component": true,
}

// ParseLevel maps common level spellings (zerolog, syslog-ish) onto the
// recognized levels. Unrecognized values become UNKNOWN.
func ParseLevel(s string) types.Level {
	if l, ok := types.ParseLevel(s); ok {
		return l
	}
	if l, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return types.LevelUnknown
}

// Decode parses one JSON object into an entry. A message is required. The
// first of source, service or component names the source. Keys outside the
// known set are merged into the metadata.
func Decode(body []byte) (types.LogEntry, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return types.LogEntry{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return FromMap(raw)
}

// FromMap is Decode for an already decoded object.
func FromMap(raw map[string]interface{}) (types.LogEntry, error) {
	e := types.LogEntry{
		ID:      getStringField(raw, "id"),
		Level:   ParseLevel(getStringField(raw, "level")),
		Message: firstString(raw, "message", "msg"),
	}
	if e.Message == "" {
		return types.LogEntry{}, fmt.Errorf("%w: missing message", ErrInvalidRecord)
	}
	if getStringField(raw, "level") == "" {
		e.Level = types.LevelInfo
	}
	e.Source = firstString(raw, sourceKeys...)

	ts, err := parseTimestamp(firstValue(raw, "timestamp", "time"))
	if err != nil {
		return types.LogEntry{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	e.Timestamp = ts

	md := map[string]any{}
	if nested, ok := raw["metadata"].(map[string]interface{}); ok {
		for k, v := range nested {
			md[k] = v
		}
	}
	for k, v := range raw {
		if !reserved[k] {
			md[k] = v
		}
	}
	if len(md) > 0 {
		e.Metadata = md
	}
	return e, nil
}

// FromRequest converts an HTTP submission.
func FromRequest(req models.LogRequest) (types.LogEntry, error) {
	if strings.TrimSpace(req.Message) == "" {
		return types.LogEntry{}, fmt.Errorf("%w: missing message", ErrInvalidRecord)
	}
	var ts time.Time
	if req.Timestamp != "" {
		var err error
		if ts, err = parseTimestamp(req.Timestamp); err != nil {
			return types.LogEntry{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}
	return types.LogEntry{
		Timestamp: ts,
		Level:     ParseLevel(req.Level),
		Source:    req.Source,
		Message:   req.Message,
		Metadata:  req.Metadata,
	}, nil
}

// ReadLines decodes a JSON-lines stream. Blank lines are ignored and
// undecodable lines are counted in skipped.
func ReadLines(r io.Reader, fn func(types.LogEntry) error) (read, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entry, derr := Decode([]byte(line))
		if derr != nil {
			skipped++
			continue
		}
		if err := fn(entry); err != nil {
			return read, skipped, err
		}
		read++
	}
	return read, skipped, scanner.Err()
}

// parseTimestamp accepts RFC3339 strings and unix seconds or milliseconds.
// A missing value yields the zero time, which the store replaces with now.
func parseTimestamp(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable timestamp %q", v)
		}
		return t, nil
	case float64:
		n := int64(v)
		if n > 1e12 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", value)
}

func getStringField(raw map[string]interface{}, key string) string {
	value, ok := raw[key].(string)
	if !ok {
		return ""
	}
	return value
}

func firstString(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := getStringField(raw, k); s != "" {
			return s
		}
	}
	return ""
}

func firstValue(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v
		}
	}
	return nil
}
