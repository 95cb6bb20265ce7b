package models

import (
	"time"

	"github.com/monobilisim/logagent/common/types"
)

// LogsResponse represents a list of logs
type LogsResponse struct {
	Logs  []types.LogEntry `json:"logs"`
	Total int              `json:"total"`
}

// SearchRequest represents a log search request
type SearchRequest struct {
	Keyword   string     `json:"keyword,omitempty" example:"login"`
	Level     string     `json:"level,omitempty" example:"ERROR"`
	StartTime *time.Time `json:"start_time,omitempty" example:"2025-01-01T00:00:00Z"`
	EndTime   *time.Time `json:"end_time,omitempty" example:"2025-01-31T23:59:59Z"`
	Limit     int        `json:"limit,omitempty" example:"50"`
}

// LogRequest represents a log entry submission request
type LogRequest struct {
	Timestamp string         `json:"timestamp,omitempty" example:"2025-01-01T12:00:00Z"`
	Level     string         `json:"level" binding:"required" example:"ERROR"`
	Source    string         `json:"source" example:"aws"`
	Message   string         `json:"message" binding:"required" example:"Database connection timeout"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ChatRequest represents a chat message sent to the assistant
type ChatRequest struct {
	Message string `json:"message" binding:"required" example:"Show me failed logins"`
}

// ChatAction describes how the assistant interpreted a message.
type ChatAction struct {
	OriginalQuery     string              `json:"original_query"`
	InterpretedIntent string              `json:"interpreted_intent"`
	GeneratedQuery    *types.QueryPayload `json:"generated_query,omitempty"`
	Explanation       string              `json:"explanation,omitempty"`
}

// ChatResponse represents the assistant's answer
type ChatResponse struct {
	Response string      `json:"response"`
	Action   *ChatAction `json:"action,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request"`
}

// ErrorsResponse lists contained failures by kind
type ErrorsResponse struct {
	Errors map[string]int64 `json:"errors"`
}
