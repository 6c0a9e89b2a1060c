// Package provider adapts vendor chat APIs to the model capability the
// runner depends on. Adapters translate conversation turns and tool
// definitions into vendor requests and vendor responses back into text plus
// ordered tool calls.
package provider

import (
	"context"
	"errors"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/tools"
)

// ErrNoChoices is returned when a vendor response carries nothing to read.
var ErrNoChoices = errors.New("provider: response has no choices")

// Request is one model invocation: the turns to send and the tools on offer.
type Request struct {
	Turns []conversation.Turn
	Tools []tools.ToolDefinition
}

// Response is a completed model reply.
type Response struct {
	Content    string
	ToolCalls  []conversation.ToolCall
	StopReason string
}

// Delta is one streamed fragment. The final delta of a stream that requested
// tools carries the fully accumulated calls in request order.
type Delta struct {
	Text      string
	ToolCalls []conversation.ToolCall
}

// Stream yields deltas in arrival order.
type Stream interface {
	Next() bool
	Current() Delta
	Err() error
	Close() error
}

// Model is the language-model capability.
type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Collect drains s and returns the concatenated response. onDelta, when
// non-nil, sees each non-empty text fragment before it is appended.
func Collect(s Stream, onDelta func(string)) (*Response, error) {
	defer s.Close()
	var (
		text  []byte
		calls []conversation.ToolCall
	)
	for s.Next() {
		d := s.Current()
		if d.Text != "" {
			if onDelta != nil {
				onDelta(d.Text)
			}
			text = append(text, d.Text...)
		}
		if len(d.ToolCalls) > 0 {
			calls = append(calls, d.ToolCalls...)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &Response{Content: string(text), ToolCalls: calls}, nil
}
