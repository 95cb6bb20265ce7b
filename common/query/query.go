// Package query holds the structured log filter and its extraction from
// assistant intents.
package query

import (
	"strings"
	"time"

	"github.com/monobilisim/logagent/common/types"
)

// TimeRange bounds a query in time. A zero bound is open.
type TimeRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Query is a single filter over the log store. The zero value is unfiltered.
type Query struct {
	Keyword string      `json:"keyword,omitempty"`
	Level   types.Level `json:"level,omitempty"`
	Range   *TimeRange  `json:"range,omitempty"`
}

// IsEmpty reports whether q applies no filtering.
func (q Query) IsEmpty() bool {
	return q.Keyword == "" && q.Level == "" && (q.Range == nil || (q.Range.Start.IsZero() && q.Range.End.IsZero()))
}

func (q Query) String() string {
	if q.IsEmpty() {
		return "all logs"
	}
	var parts []string
	if q.Keyword != "" {
		parts = append(parts, "keyword="+q.Keyword)
	}
	if q.Level != "" {
		parts = append(parts, "level="+string(q.Level))
	}
	if q.Range != nil {
		if !q.Range.Start.IsZero() {
			parts = append(parts, "from="+q.Range.Start.Format(time.RFC3339))
		}
		if !q.Range.End.IsZero() {
			parts = append(parts, "to="+q.Range.End.Format(time.RFC3339))
		}
	}
	return strings.Join(parts, " ")
}

// Matches reports whether e passes q. Keyword is a case-insensitive substring
// of the message or the source; range bounds are inclusive.
func (q Query) Matches(e types.LogEntry) bool {
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(e.Message), kw) && !strings.Contains(strings.ToLower(e.Source), kw) {
			return false
		}
	}
	if q.Level != "" && e.Level != q.Level {
		return false
	}
	if q.Range != nil {
		if !q.Range.Start.IsZero() && e.Timestamp.Before(q.Range.Start) {
			return false
		}
		if !q.Range.End.IsZero() && e.Timestamp.After(q.Range.End) {
			return false
		}
	}
	return true
}

// Extract turns an intent into a Query. Only one field is ever set: a
// non-empty keyword wins over level. Anything unusable yields the empty Query.
func Extract(intent types.Intent) Query {
	p := intent.Query
	if p == nil {
		return Query{}
	}

	if p.HasKeyword {
		if kw, ok := p.Keyword.(string); ok && strings.TrimSpace(kw) != "" {
			return Query{Keyword: kw}
		}
	}

	if p.HasLevel {
		if s, ok := p.Level.(string); ok {
			if level, ok := types.ParseLevel(s); ok {
				return Query{Level: level}
			}
		}
	}

	return Query{}
}
