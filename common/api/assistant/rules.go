// Package assistant is the built-in keyword assistant that turns a chat
// message into a log filter.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/types"
)

const (
	IntentFilterLogs    = "filter_logs"
	IntentSearchLogs    = "search_logs"
	IntentGeneralSearch = "general_search"
)

// Interpret maps a message onto an action. Mentions of failures or errors
// filter by ERROR level, mentions of login search for "login", anything
// else searches for the message itself.
func Interpret(message string) models.ChatAction {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "failed") || strings.Contains(lower, "error"):
		return models.ChatAction{
			OriginalQuery:     message,
			InterpretedIntent: IntentFilterLogs,
			GeneratedQuery:    types.NewQueryPayload(map[string]any{"level": string(types.LevelError)}),
			Explanation:       "Filtering for logs with ERROR level.",
		}
	case strings.Contains(lower, "login"):
		return models.ChatAction{
			OriginalQuery:     message,
			InterpretedIntent: IntentSearchLogs,
			GeneratedQuery:    types.NewQueryPayload(map[string]any{"keyword": "login"}),
			Explanation:       "Searching for logs containing 'login'.",
		}
	default:
		return models.ChatAction{
			OriginalQuery:     message,
			InterpretedIntent: IntentGeneralSearch,
			GeneratedQuery:    types.NewQueryPayload(map[string]any{"keyword": message}),
			Explanation:       fmt.Sprintf("Searching for logs containing '%s'.", message),
		}
	}
}

// Respond builds the chat endpoint answer; the reply text is the explanation.
func Respond(message string) models.ChatResponse {
	action := Interpret(message)
	return models.ChatResponse{
		Response: action.Explanation,
		Action:   &action,
	}
}

// Local runs the rules in-process.
type Local struct{}

func (Local) Converse(ctx context.Context, text string) (types.Reply, error) {
	if err := ctx.Err(); err != nil {
		return types.Reply{}, fmt.Errorf("%w: %w", types.ErrAssistantUnavailable, err)
	}
	resp := Respond(text)
	return types.Reply{
		Text: resp.Response,
		Intent: types.Intent{
			Action: resp.Action.InterpretedIntent,
			Query:  resp.Action.GeneratedQuery,
		},
	}, nil
}
