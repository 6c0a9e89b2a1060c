package runner

import (
	"time"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/windowing"
)

// DefaultMaxToolRounds bounds tool rounds per RunTurn unless overridden.
const DefaultMaxToolRounds = 8

type Option func(*Runner)

// WithSystemPrompt seeds the history with a system turn, also used by Reset.
func WithSystemPrompt(text string) Option {
	return func(r *Runner) { r.systemPrompt = text }
}

// WithStreaming asks the model for incremental output.
func WithStreaming(on bool) Option {
	return func(r *Runner) { r.stream = on }
}

// WithOnDelta receives text fragments as they arrive. Without streaming it
// is called once with the whole reply.
func WithOnDelta(fn func(string)) Option {
	return func(r *Runner) { r.onDelta = fn }
}

// WithOnToolCall is called before each tool runs.
func WithOnToolCall(fn func(conversation.ToolCall)) Option {
	return func(r *Runner) { r.onToolCall = fn }
}

// WithOnToolResult is called with the content committed for each call and
// the typed error, if any.
func WithOnToolResult(fn func(call conversation.ToolCall, content string, err error)) Option {
	return func(r *Runner) { r.onToolResult = fn }
}

func WithMaxToolRounds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithToolTimeout bounds each tool call; 0 disables.
func WithToolTimeout(d time.Duration) Option {
	return func(r *Runner) { r.toolTimeout = d }
}

// WithModelTimeout bounds each model call; 0 disables.
func WithModelTimeout(d time.Duration) Option {
	return func(r *Runner) { r.modelTimeout = d }
}

// WithTokenBudget sends only the newest whole groups that fit budget
// estimated tokens. 0 sends the full history.
func WithTokenBudget(budget int) Option {
	return func(r *Runner) { r.tokenBudget = budget }
}

func WithTokenCounter(c windowing.TokenCounter) Option {
	return func(r *Runner) { r.counter = c }
}

// WithStrictTools makes an unknown tool name fail RunTurn with
// *UnknownToolError once the round's tool turns are committed. By default the
// error is only reported to the model.
func WithStrictTools(strict bool) Option {
	return func(r *Runner) { r.strictTools = strict }
}
