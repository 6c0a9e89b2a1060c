package runner

import (
	"errors"
	"fmt"

	"github.com/tidwall/sjson"
)

var (
	// ErrToolRoundLimit is wrapped when the model keeps requesting tools past
	// the configured number of rounds. The over-limit request is not committed.
	ErrToolRoundLimit = errors.New("runner: tool round limit reached")
	// ErrContextBudget means the newest turns alone exceed the token budget.
	ErrContextBudget = errors.New("runner: newest turns exceed token budget")
	// ErrNothingToAnswer is returned by RunTurn when the last turn is not a
	// user or tool turn.
	ErrNothingToAnswer = errors.New("runner: no pending user turn")
)

// Error kinds written into the "type" field of a failed tool turn.
const (
	KindUnknownTool        = "unknown_tool"
	KindToolError          = "tool_error"
	KindMalformedArguments = "malformed_arguments"
	KindCancelled          = "cancelled"
)

// ModelCallError wraps a failed model invocation. Round 0 is the first call
// of a turn; each completed tool round increments it.
type ModelCallError struct {
	Model string
	Round int
	Err   error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call %s (round %d): %v", e.Model, e.Round, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// UnknownToolError reports a call to a name missing from the registry.
type UnknownToolError struct {
	Name   string
	CallID string
}

func (e *UnknownToolError) Error() string { return fmt.Sprintf("unknown tool %q", e.Name) }

// ToolExecutionError is a tool handler failure, including panics.
type ToolExecutionError struct {
	Name   string
	CallID string
	Err    error
}

func (e *ToolExecutionError) Error() string { return fmt.Sprintf("tool %s: %v", e.Name, e.Err) }

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// MalformedArgumentsError means the call's arguments could not be decoded
// into the tool's input type.
type MalformedArgumentsError struct {
	Name   string
	CallID string
	Err    error
}

func (e *MalformedArgumentsError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Name, e.Err)
}

func (e *MalformedArgumentsError) Unwrap() error { return e.Err }

// errorPayload encodes a failed call as {"error": msg, "type": kind}.
func errorPayload(kind, msg string) string {
	s, err := sjson.Set(`{}`, "error", msg)
	if err != nil {
		s = `{}`
	}
	s, _ = sjson.Set(s, "type", kind)
	return s
}
