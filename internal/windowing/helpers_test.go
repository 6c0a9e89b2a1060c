package windowing_test

import (
	"encoding/json"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/windowing"
)

// call builds a tool call with empty arguments.
func call(id string) conversation.ToolCall {
	return conversation.ToolCall{ID: id, Name: "t"}
}

func callArgs(id, args string) conversation.ToolCall {
	return conversation.ToolCall{ID: id, Name: "t", Arguments: json.RawMessage(args)}
}

func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
