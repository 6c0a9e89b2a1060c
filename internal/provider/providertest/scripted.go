// Package providertest provides a scripted provider.Model for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/provider"
)

// Step is one scripted model reply. When Chunks is set a streamed call
// yields them in order; otherwise Content is sent as a single fragment.
// Err fails the call instead. StreamErr lets a streamed call deliver its
// fragments and then fail; a single-shot call fails with it outright.
type Step struct {
	Content   string
	Chunks    []string
	ToolCalls []conversation.ToolCall
	Err       error
	StreamErr error
	// Check, when set, inspects the request before the reply is produced.
	Check func(provider.Request) error
}

// Text is a tool-free reply.
func Text(s string) Step { return Step{Content: s} }

// Calls is a reply requesting the given tools.
func Calls(calls ...conversation.ToolCall) Step { return Step{ToolCalls: calls} }

// Fail is a reply that errors.
func Fail(err error) Step { return Step{Err: err} }

// Scripted replays Steps in order and records every request it receives.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []provider.Request
}

func New(steps ...Step) *Scripted { return &Scripted{steps: steps} }

func (m *Scripted) Name() string { return "scripted" }

// Requests returns copies of the requests seen so far.
func (m *Scripted) Requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Request(nil), m.requests...)
}

// Remaining reports how many steps are left unconsumed.
func (m *Scripted) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

func (m *Scripted) next(ctx context.Context, req provider.Request) (Step, error) {
	if err := ctx.Err(); err != nil {
		return Step{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, provider.Request{
		Turns: append([]conversation.Turn(nil), req.Turns...),
		Tools: req.Tools,
	})
	if len(m.steps) == 0 {
		return Step{}, fmt.Errorf("providertest: unexpected call %d", len(m.requests))
	}
	s := m.steps[0]
	m.steps = m.steps[1:]
	if s.Check != nil {
		if err := s.Check(req); err != nil {
			return Step{}, err
		}
	}
	return s, s.Err
}

func (m *Scripted) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	s, err := m.next(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.StreamErr != nil {
		return nil, s.StreamErr
	}
	content := s.Content
	if len(s.Chunks) > 0 {
		content = ""
		for _, c := range s.Chunks {
			content += c
		}
	}
	return &provider.Response{Content: content, ToolCalls: s.ToolCalls}, nil
}

func (m *Scripted) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	s, err := m.next(ctx, req)
	if err != nil {
		return nil, err
	}
	var deltas []provider.Delta
	chunks := s.Chunks
	if len(chunks) == 0 && s.Content != "" {
		chunks = []string{s.Content}
	}
	for _, c := range chunks {
		deltas = append(deltas, provider.Delta{Text: c})
	}
	if len(s.ToolCalls) > 0 && s.StreamErr == nil {
		deltas = append(deltas, provider.Delta{ToolCalls: s.ToolCalls})
	}
	return &stream{deltas: deltas, err: s.StreamErr}, nil
}

type stream struct {
	deltas []provider.Delta
	i      int
	err    error
	done   bool
}

func (s *stream) Next() bool {
	if s.i >= len(s.deltas) {
		s.done = true
		return false
	}
	s.i++
	return true
}

func (s *stream) Current() provider.Delta {
	if s.i == 0 {
		return provider.Delta{}
	}
	return s.deltas[s.i-1]
}

// Err reports StreamErr once the fragments are used up.
func (s *stream) Err() error {
	if s.done {
		return s.err
	}
	return nil
}

func (s *stream) Close() error { return nil }
