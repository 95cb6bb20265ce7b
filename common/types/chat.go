package types

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is the structured half of an assistant reply.
// Query is nil when the assistant did not ask for a filter change.
type Intent struct {
	Action string        `json:"interpreted_intent,omitempty"`
	Query  *QueryPayload `json:"generated_query,omitempty"`
}

// Reply is what an assistant returns for one user message.
type Reply struct {
	Text   string
	Intent Intent
}

// QueryPayload is the loosely shaped generated_query mapping. Known keys keep
// their raw decoded values so extraction can decide what is usable; every
// other key is kept in Unknown. Invalid marks a generated_query that was
// present but not a mapping at all.
type QueryPayload struct {
	Keyword    any
	HasKeyword bool
	Level      any
	HasLevel   bool
	Unknown    map[string]any
	Invalid    bool
}

// NewQueryPayload sorts a decoded mapping into a QueryPayload.
func NewQueryPayload(m map[string]any) *QueryPayload {
	p := &QueryPayload{}
	for k, v := range m {
		switch k {
		case "keyword":
			p.Keyword, p.HasKeyword = v, true
		case "level":
			p.Level, p.HasLevel = v, true
		default:
			if p.Unknown == nil {
				p.Unknown = make(map[string]any)
			}
			p.Unknown[k] = v
		}
	}
	return p
}

// Map returns the payload as a plain mapping again.
func (p *QueryPayload) Map() map[string]any {
	m := make(map[string]any, len(p.Unknown)+2)
	for k, v := range p.Unknown {
		m[k] = v
	}
	if p.HasKeyword {
		m["keyword"] = p.Keyword
	}
	if p.HasLevel {
		m["level"] = p.Level
	}
	return m
}

func (p *QueryPayload) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		// Not an object: keep the payload present but flagged.
		*p = QueryPayload{Invalid: true}
		return nil
	}
	*p = *NewQueryPayload(m)
	return nil
}

func (p QueryPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}
