package conversation

import "encoding/json"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-issued request to run a named tool.
// Arguments are passed through to the tool untouched.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Turn is one message unit of a conversation.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

func System(text string) Turn { return Turn{Role: RoleSystem, Content: text} }

func User(text string) Turn { return Turn{Role: RoleUser, Content: text} }

// Assistant builds an assistant turn. Content may be empty when calls are given.
func Assistant(text string, calls ...ToolCall) Turn {
	t := Turn{Role: RoleAssistant, Content: text}
	if len(calls) > 0 {
		t.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return t
}

// ToolResult builds the tool turn answering the call with the given id.
func ToolResult(callID, content string) Turn {
	return Turn{Role: RoleTool, Content: content, ToolCallID: callID}
}

// RequestsTools reports whether t is an assistant turn carrying tool calls.
func (t Turn) RequestsTools() bool {
	return t.Role == RoleAssistant && len(t.ToolCalls) > 0
}

// clone returns a deep copy so callers can't reach into history storage.
func (t Turn) clone() Turn {
	if len(t.ToolCalls) == 0 {
		t.ToolCalls = nil
		return t
	}
	calls := make([]ToolCall, len(t.ToolCalls))
	for i, c := range t.ToolCalls {
		if c.Arguments != nil {
			c.Arguments = append(json.RawMessage(nil), c.Arguments...)
		}
		calls[i] = c
	}
	t.ToolCalls = calls
	return t
}
