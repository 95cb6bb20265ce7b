package types

import (
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
	LevelDebug   Level = "DEBUG"

	// LevelUnknown is used for anything a store returns that is not one of the above.
	LevelUnknown Level = "UNKNOWN"
)

// Levels lists the recognized levels, most severe first.
var Levels = []Level{LevelError, LevelWarning, LevelInfo, LevelDebug}

// ParseLevel matches s case-insensitively against the recognized levels.
func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels {
		if strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	return "", false
}

// NormalizeLevel is ParseLevel with the UNKNOWN fallback.
func NormalizeLevel(s string) Level {
	if l, ok := ParseLevel(s); ok {
		return l
	}
	return LevelUnknown
}

// LogEntry is a single immutable record returned by a log store.
type LogEntry struct {
	ID        string         `json:"id" yaml:"id"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Level     Level          `json:"level" yaml:"level"`
	Source    string         `json:"source" yaml:"source"`
	Message   string         `json:"message" yaml:"message"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
