package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidTurn is wrapped by every ordering violation reported by Append and Validate.
var ErrInvalidTurn = errors.New("invalid turn")

// History is an append-only, ordered sequence of turns.
// The zero value is an empty history ready to use. It is not safe for concurrent use.
type History struct {
	turns []Turn
}

// Append validates t against the current tail and appends a copy of it.
func (h *History) Append(t Turn) error {
	if err := check(h.turns, t); err != nil {
		return err
	}
	h.turns = append(h.turns, t.clone())
	return nil
}

func (h *History) Len() int { return len(h.turns) }

// Turns returns a copy of the history, oldest first.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	for i, t := range h.turns {
		out[i] = t.clone()
	}
	return out
}

// Last returns the newest turn, if any.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1].clone(), true
}

// Truncate drops every turn from index n on; n past the end is a no-op.
func (h *History) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(h.turns) {
		clear(h.turns[n:])
		h.turns = h.turns[:n]
	}
}

// Clear empties the history.
func (h *History) Clear() { h.Truncate(0) }

// SetSystem replaces the system turn at index 0, inserting one when absent.
// An empty text removes the system turn.
func (h *History) SetSystem(text string) {
	hasSystem := len(h.turns) > 0 && h.turns[0].Role == RoleSystem
	switch {
	case text == "" && hasSystem:
		h.turns = append(h.turns[:0], h.turns[1:]...)
	case text == "":
	case hasSystem:
		h.turns[0].Content = text
	default:
		h.turns = append([]Turn{System(text)}, h.turns...)
	}
}

// PendingToolCalls returns the calls of the newest assistant tool request
// that have no tool turn yet, in request order.
func (h *History) PendingToolCalls() []ToolCall {
	req, answered, ok := openRound(h.turns)
	if !ok {
		return nil
	}
	var out []ToolCall
	for _, c := range req.ToolCalls {
		if _, done := answered[c.ID]; !done {
			c.Arguments = append(json.RawMessage(nil), c.Arguments...)
			out = append(out, c)
		}
	}
	return out
}

// Validate checks a complete turn sequence against the ordering invariants.
func Validate(turns []Turn) error {
	for i := range turns {
		if err := check(turns[:i], turns[i]); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
	}
	return nil
}

func check(prev []Turn, t Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, t.Role)
	}
	if len(t.ToolCalls) > 0 && t.Role != RoleAssistant {
		return fmt.Errorf("%w: only assistant turns carry tool calls", ErrInvalidTurn)
	}
	if t.ToolCallID != "" && t.Role != RoleTool {
		return fmt.Errorf("%w: only tool turns carry a tool_call_id", ErrInvalidTurn)
	}

	switch t.Role {
	case RoleSystem:
		if len(prev) != 0 {
			return fmt.Errorf("%w: system turn must be first", ErrInvalidTurn)
		}
	case RoleAssistant:
		seen := make(map[string]struct{}, len(t.ToolCalls))
		for _, c := range t.ToolCalls {
			if c.ID == "" || c.Name == "" {
				return fmt.Errorf("%w: tool call needs an id and a name", ErrInvalidTurn)
			}
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: duplicate tool call id %q", ErrInvalidTurn, c.ID)
			}
			seen[c.ID] = struct{}{}
		}
	case RoleTool:
		if t.ToolCallID == "" {
			return fmt.Errorf("%w: tool turn without tool_call_id", ErrInvalidTurn)
		}
		req, answered, ok := openRound(prev)
		if !ok {
			return fmt.Errorf("%w: tool turn %q does not follow a tool request", ErrInvalidTurn, t.ToolCallID)
		}
		if !hasCall(req, t.ToolCallID) {
			return fmt.Errorf("%w: tool_call_id %q not requested by preceding assistant turn", ErrInvalidTurn, t.ToolCallID)
		}
		if _, dup := answered[t.ToolCallID]; dup {
			return fmt.Errorf("%w: tool_call_id %q already answered", ErrInvalidTurn, t.ToolCallID)
		}
	}
	return nil
}

// openRound walks back over trailing tool turns and returns the assistant
// turn they answer plus the ids answered so far. ok is false when the tail
// is not an assistant tool request (optionally followed by tool turns).
func openRound(turns []Turn) (req Turn, answered map[string]struct{}, ok bool) {
	answered = make(map[string]struct{})
	i := len(turns) - 1
	for ; i >= 0 && turns[i].Role == RoleTool; i-- {
		answered[turns[i].ToolCallID] = struct{}{}
	}
	if i < 0 || !turns[i].RequestsTools() {
		return Turn{}, nil, false
	}
	return turns[i], answered, true
}

func hasCall(t Turn, id string) bool {
	for _, c := range t.ToolCalls {
		if c.ID == id {
			return true
		}
	}
	return false
}
