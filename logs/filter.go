package logs

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
)

var timeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (f *LogFilter) matches(entry types.LogEntry) bool {
	if f.Source != "" && !wildcardMatch(entry.Source, f.Source) {
		return false
	}
	return f.matchesMetadata(entry)
}

func (f *LogFilter) matchesMetadata(entry types.LogEntry) bool {
	for key, expectedValue := range f.Fields {
		rawValue, exists := entry.Metadata[key]
		if !exists {
			return false
		}
		if !wildcardMatch(fmt.Sprintf("%v", rawValue), expectedValue) {
			return false
		}
	}
	return true
}

// wildcardMatch performs glob pattern matching with escape support
func wildcardMatch(text, pattern string) bool {
	if pattern == "" {
		return true
	}

	matched, err := filepath.Match(escapeWildcards(pattern), text)
	if err != nil {
		// If pattern is invalid, fall back to exact match
		return text == pattern
	}
	return matched
}

// escapeWildcards turns \* and \? into bracket classes so filepath.Match
// treats them literally.
func escapeWildcards(pattern string) string {
	var result strings.Builder
	escaped := false

	for i := 0; i < len(pattern); i++ {
		char := pattern[i]

		switch {
		case escaped:
			if char == '*' || char == '?' || char == '[' {
				result.WriteByte('[')
				result.WriteByte(char)
				result.WriteByte(']')
			} else {
				result.WriteByte(char)
			}
			escaped = false
		case char == '\\':
			escaped = true
		default:
			result.WriteByte(char)
		}
	}

	return result.String()
}

func parseTimeFilter(timeStr string) (*time.Time, error) {
	if timeStr == "" {
		return nil, nil
	}

	for _, format := range timeFormats {
		if parsed, err := time.ParseInLocation(format, timeStr, time.Local); err == nil {
			return &parsed, nil
		}
	}

	return nil, fmt.Errorf("invalid time format: %s", timeStr)
}

func parseFieldFilters(fields []string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, field := range fields {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid field format: %s (expected key=value)", field)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// buildQuery turns the store-side search flags into a query.
func buildQuery(flags searchFlags) (query.Query, error) {
	q := query.Query{Keyword: strings.TrimSpace(flags.keyword)}

	if flags.level != "" {
		l, ok := types.ParseLevel(flags.level)
		if !ok {
			return query.Query{}, fmt.Errorf("invalid level: %s (expected error, warning, info or debug)", flags.level)
		}
		q.Level = l
	}

	from, err := parseTimeFilter(flags.from)
	if err != nil {
		return query.Query{}, fmt.Errorf("parsing from time: %w", err)
	}
	to, err := parseTimeFilter(flags.to)
	if err != nil {
		return query.Query{}, fmt.Errorf("parsing to time: %w", err)
	}
	if from != nil || to != nil {
		q.Range = &query.TimeRange{}
		if from != nil {
			q.Range.Start = *from
		}
		if to != nil {
			q.Range.End = *to
		}
		if from != nil && to != nil && to.Before(*from) {
			return query.Query{}, fmt.Errorf("--to is before --from")
		}
	}
	return q, nil
}

func filterLogs(entries []types.LogEntry, filter LogFilter) []types.LogEntry {
	var filtered []types.LogEntry
	for _, entry := range entries {
		if filter.matches(entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
