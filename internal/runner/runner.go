package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/metrics"
	"github.com/petasbytes/chatloop/internal/provider"
	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/internal/windowing"
	"github.com/petasbytes/chatloop/tools"
)

// Runner owns one session's history. All methods are safe for concurrent
// use; they are serialised, so one RunTurn completes before the next
// operation observes the history.
type Runner struct {
	mu      sync.Mutex
	model   provider.Model
	tools   *tools.Registry
	history conversation.History

	systemPrompt string
	stream       bool
	onDelta      func(string)
	onToolCall   func(conversation.ToolCall)
	onToolResult func(conversation.ToolCall, string, error)
	maxRounds    int
	toolTimeout  time.Duration
	modelTimeout time.Duration
	tokenBudget  int
	counter      windowing.TokenCounter
	strictTools  bool

	// submittedTurnID ties a SubmitUserTurn to the RunTurn that answers it.
	submittedTurnID string
}

// New returns a runner over model with the given tools; reg may be nil.
func New(model provider.Model, reg *tools.Registry, opts ...Option) *Runner {
	r := &Runner{
		model:     model,
		tools:     reg,
		maxRounds: DefaultMaxToolRounds,
		counter:   windowing.HeuristicCounter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.history.SetSystem(r.systemPrompt)
	return r
}

// SubmitUserTurn appends a user turn. Any string is accepted. The turn id
// minted for its user_turn event is reused by the next RunTurn whose
// context carries none.
func (r *Runner) SubmitUserTurn(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, id := telemetry.EnsureTurnID(context.Background())
	if err := r.submit(ctx, text); err != nil {
		return err
	}
	r.submittedTurnID = id
	return nil
}

// RunTurn answers the pending user turn, running tool rounds as requested.
func (r *Runner) RunTurn(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := telemetry.TurnIDFromContext(ctx); !ok && r.submittedTurnID != "" {
		ctx = telemetry.WithTurnID(ctx, r.submittedTurnID)
	}
	r.submittedTurnID = ""
	ctx, _ = telemetry.EnsureTurnID(ctx)
	return r.runTurn(ctx, r.onDelta)
}

// Ask submits text and runs the turn.
func (r *Runner) Ask(ctx context.Context, text string) (string, error) {
	return r.AskStream(ctx, text, r.onDelta)
}

// AskStream is Ask with a per-call fragment callback instead of the one
// configured by WithOnDelta.
func (r *Runner) AskStream(ctx context.Context, text string, onDelta func(string)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, _ = telemetry.EnsureTurnID(ctx)
	if err := r.submit(ctx, text); err != nil {
		return "", err
	}
	r.submittedTurnID = ""
	return r.runTurn(ctx, onDelta)
}

// Reset empties the history, re-seeding the system turn if one is configured.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.Clear()
	r.history.SetSystem(r.systemPrompt)
	r.submittedTurnID = ""
}

// SetSystemPrompt inserts, replaces or (with "") removes the system turn and
// makes text the seed for later resets.
func (r *Runner) SetSystemPrompt(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systemPrompt = text
	r.history.SetSystem(text)
}

// SystemPrompt returns the current seed.
func (r *Runner) SystemPrompt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.systemPrompt
}

// History returns a copy of the turns, oldest first.
func (r *Runner) History() []conversation.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Turns()
}

// ModelName identifies the model behind this runner.
func (r *Runner) ModelName() string { return r.model.Name() }

func (r *Runner) submit(ctx context.Context, text string) error {
	if err := r.history.Append(conversation.User(text)); err != nil {
		return err
	}
	telemetry.EmitUserTurn(ctx, text)
	return nil
}

func (r *Runner) runTurn(ctx context.Context, onDelta func(string)) (string, error) {
	last, ok := r.history.Last()
	if !ok || (last.Role != conversation.RoleUser && last.Role != conversation.RoleTool) {
		return "", ErrNothingToAnswer
	}
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	defs := r.tools.Definitions()

	for round := 0; ; round++ {
		resp, err := r.callModel(ctx, round, defs, onDelta)
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			if err := r.history.Append(conversation.Assistant(resp.Content)); err != nil {
				return "", err
			}
			telemetry.Emit("turn_complete", map[string]any{
				"turn_id": turnID,
				"rounds":  round,
				"answer":  metrics.CountFeatures(resp.Content).Fields(),
			})
			return resp.Content, nil
		}

		if round >= r.maxRounds {
			return "", fmt.Errorf("%w (%d rounds)", ErrToolRoundLimit, r.maxRounds)
		}
		if err := r.history.Append(conversation.Assistant(resp.Content, resp.ToolCalls...)); err != nil {
			return "", &ModelCallError{Model: r.model.Name(), Round: round, Err: err}
		}
		if err := r.runToolRound(ctx); err != nil {
			return "", err
		}
	}
}

// callModel sends the (possibly windowed) history and returns the full reply.
func (r *Runner) callModel(ctx context.Context, round int, defs []tools.ToolDefinition, onDelta func(string)) (*provider.Response, error) {
	turns, err := r.prepareWindow(ctx)
	if err != nil {
		return nil, err
	}
	if r.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.modelTimeout)
		defer cancel()
	}

	start := time.Now()
	req := provider.Request{Turns: turns, Tools: defs}
	var resp *provider.Response
	if r.stream {
		var s provider.Stream
		if s, err = r.model.Stream(ctx, req); err == nil {
			resp, err = provider.Collect(s, onDelta)
		}
	} else {
		resp, err = r.model.Complete(ctx, req)
		if err == nil && onDelta != nil && resp.Content != "" {
			onDelta(resp.Content)
		}
	}

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	fields := map[string]any{
		"turn_id":     turnID,
		"model":       r.model.Name(),
		"round":       round,
		"streamed":    r.stream,
		"duration_ms": time.Since(start).Milliseconds(),
		"error":       nil,
	}
	if err != nil {
		fields["error"] = "model error"
		telemetry.Emit("model_call", fields)
		return nil, &ModelCallError{Model: r.model.Name(), Round: round, Err: err}
	}
	fields["tool_calls"] = len(resp.ToolCalls)
	telemetry.Emit("model_call", fields)
	return resp, nil
}

func (r *Runner) prepareWindow(ctx context.Context) ([]conversation.Turn, error) {
	turns := r.history.Turns()
	if r.tokenBudget <= 0 {
		return turns, nil
	}
	window, stats := windowing.PrepareSendWindow(turns, r.tokenBudget, r.counter)
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	telemetry.Emit("window_prepared", map[string]any{
		"turn_id":            turnID,
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"over_budget_newest": stats.OverBudgetNewest,
	})
	if stats.OverBudgetNewest {
		return nil, fmt.Errorf("%w (budget %d)", ErrContextBudget, r.tokenBudget)
	}
	return window, nil
}

// runToolRound executes the pending calls of the newest assistant turn in
// request order, committing one tool turn per call. On cancellation the
// calls still pending get a cancellation turn so the round stays complete,
// and the context error is returned.
func (r *Runner) runToolRound(ctx context.Context) error {
	var unknown *UnknownToolError
	for _, c := range r.history.PendingToolCalls() {
		if err := ctx.Err(); err != nil {
			for _, rest := range r.history.PendingToolCalls() {
				if aerr := r.history.Append(conversation.ToolResult(rest.ID, errorPayload(KindCancelled, err.Error()))); aerr != nil {
					return aerr
				}
			}
			return err
		}

		if r.onToolCall != nil {
			r.onToolCall(c)
		}
		content, err := r.execTool(ctx, c)
		if aerr := r.history.Append(conversation.ToolResult(c.ID, content)); aerr != nil {
			return aerr
		}
		if r.onToolResult != nil {
			r.onToolResult(c, content, err)
		}
		var ue *UnknownToolError
		if unknown == nil && errors.As(err, &ue) {
			unknown = ue
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.strictTools && unknown != nil {
		return unknown
	}
	return nil
}

// execTool runs one call and returns the content for its tool turn. The
// error is informational: it is already encoded in the content.
func (r *Runner) execTool(ctx context.Context, c conversation.ToolCall) (content string, err error) {
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	start := time.Now()
	emit := func(outSize int, errKind string) {
		fields := map[string]any{
			"turn_id":     turnID,
			"tool_name":   c.Name,
			"duration_ms": time.Since(start).Milliseconds(),
			"input_size":  len(c.Arguments),
			"output_size": outSize,
			"error":       nil,
		}
		if errKind != "" {
			fields["error"] = errKind
		}
		telemetry.Emit("tool_exec", fields)
	}

	def, ok := r.tools.Lookup(c.Name)
	if !ok {
		uerr := &UnknownToolError{Name: c.Name, CallID: c.ID}
		emit(0, KindUnknownTool)
		return errorPayload(KindUnknownTool, uerr.Error()), uerr
	}

	if r.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.toolTimeout)
		defer cancel()
	}
	out, callErr := invoke(ctx, def, c)
	if callErr != nil {
		var argErr *tools.ArgumentError
		if errors.As(callErr, &argErr) {
			merr := &MalformedArgumentsError{Name: c.Name, CallID: c.ID, Err: callErr}
			emit(0, KindMalformedArguments)
			return errorPayload(KindMalformedArguments, callErr.Error()), merr
		}
		terr := &ToolExecutionError{Name: c.Name, CallID: c.ID, Err: callErr}
		// Raw error text goes to the model only, never to telemetry.
		emit(0, KindToolError)
		return errorPayload(KindToolError, callErr.Error()), terr
	}
	emit(len(out), "")
	return out, nil
}

// invoke calls the handler, turning a panic into an error.
func invoke(ctx context.Context, def tools.ToolDefinition, c conversation.ToolCall) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return def.Function(ctx, c.Arguments)
}
