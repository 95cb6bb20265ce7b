package models

import (
	"testing"
	"time"

	"github.com/monobilisim/logagent/common/types"
	"github.com/stretchr/testify/assert"
)

func TestEntryConversion(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := types.LogEntry{
		ID:        "a1",
		Timestamp: ts,
		Level:     types.LevelError,
		Source:    "auth-service",
		Message:   "Failed login",
		Metadata:  map[string]any{"user": "bob"},
	}

	r := FromEntry(e)
	assert.Equal(t, "ERROR", r.Level)
	assert.JSONEq(t, `{"user":"bob"}`, r.Metadata)
	assert.Equal(t, e, r.ToEntry())
}

func TestToEntry_Normalizes(t *testing.T) {
	r := LogRecord{ID: "x", Level: "critical", Metadata: "{not json"}
	e := r.ToEntry()
	assert.Equal(t, types.LevelUnknown, e.Level)
	assert.Nil(t, e.Metadata)

	r = LogRecord{ID: "y", Level: "info", Metadata: "{}"}
	e = r.ToEntry()
	assert.Equal(t, types.LevelInfo, e.Level)
	assert.Nil(t, e.Metadata)
}

func TestFromEntry_NoMetadata(t *testing.T) {
	r := FromEntry(types.LogEntry{ID: "z", Level: types.LevelDebug})
	assert.Empty(t, r.Metadata)
}
