package logs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/types"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
)

func formatLogs(entries []types.LogEntry, options OutputOptions) (string, error) {
	if len(options.GetFields) > 0 {
		return formatGetFields(entries, options.GetFields), nil
	}

	switch {
	case options.Ugly:
		return formatRawJSON(entries)
	case options.Table:
		return formatTable(entries)
	}
	return formatPretty(entries), nil
}

// fieldsOf flattens an entry the way it is written to JSON, with metadata
// keys lifted to the top level.
func fieldsOf(e types.LogEntry) map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Metadata)+5)
	for k, v := range e.Metadata {
		fields[k] = v
	}
	fields["id"] = e.ID
	fields["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	fields["level"] = string(e.Level)
	fields["source"] = e.Source
	fields["message"] = e.Message
	return fields
}

func formatGetFields(entries []types.LogEntry, fields []string) string {
	var result strings.Builder

	for _, entry := range entries {
		raw := fieldsOf(entry)
		values := make([]string, 0, len(fields))
		for _, field := range fields {
			if value, exists := raw[field]; exists {
				values = append(values, fmt.Sprintf("%v", value))
			} else {
				values = append(values, "")
			}
		}
		result.WriteString(strings.Join(values, "\t"))
		result.WriteString("\n")
	}

	return result.String()
}

func formatRawJSON(entries []types.LogEntry) (string, error) {
	var result strings.Builder
	for _, entry := range entries {
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			return "", err
		}
		result.Write(jsonBytes)
		result.WriteString("\n")
	}
	return result.String(), nil
}

func formatTable(entries []types.LogEntry) (string, error) {
	var result strings.Builder
	table := tablewriter.NewWriter(&result)
	table.Header("Time", "Level", "Source", "Message")
	for _, e := range entries {
		if err := table.Append([]string{
			e.Timestamp.Local().Format(time.DateTime),
			string(e.Level),
			e.Source,
			e.Message,
		}); err != nil {
			return "", err
		}
	}
	if err := table.Render(); err != nil {
		return "", err
	}
	return result.String(), nil
}

// consoleLevel maps a stored level onto the names zerolog's console writer
// knows.
func consoleLevel(l types.Level) string {
	switch l {
	case types.LevelWarning:
		return zerolog.WarnLevel.String()
	case types.LevelError:
		return zerolog.ErrorLevel.String()
	case types.LevelInfo:
		return zerolog.InfoLevel.String()
	case types.LevelDebug:
		return zerolog.DebugLevel.String()
	}
	return strings.ToLower(string(l))
}

func formatPretty(entries []types.LogEntry) string {
	var result strings.Builder

	consoleWriter := zerolog.ConsoleWriter{
		Out:           &result,
		TimeFormat:    time.RFC3339,
		NoColor:       common.NoColor(),
		PartsOrder:    []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, "source", zerolog.MessageFieldName},
		FieldsExclude: []string{"id", "source"},
	}

	for _, entry := range entries {
		raw := fieldsOf(entry)
		delete(raw, "timestamp")
		delete(raw, "level")
		delete(raw, "message")
		raw[zerolog.TimestampFieldName] = entry.Timestamp.Format(time.RFC3339Nano)
		raw[zerolog.LevelFieldName] = consoleLevel(entry.Level)
		raw[zerolog.MessageFieldName] = entry.Message

		jsonBytes, err := json.Marshal(raw)
		if err != nil {
			fmt.Fprintf(&result, "%s [%s] %s\n",
				entry.Timestamp.Format(time.RFC3339),
				entry.Level,
				entry.Message)
			continue
		}

		consoleWriter.Write(jsonBytes)
	}

	return result.String()
}
