package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/tools"
)

// defaultAnthropicMaxTokens is used when Settings.MaxTokens is unset; the
// Messages API requires the field.
const defaultAnthropicMaxTokens = 1024

// Anthropic talks to the Messages API.
type Anthropic struct {
	client   anthropic.Client
	settings Settings
}

func NewAnthropic(s Settings) *Anthropic {
	var opts []anthropicopt.RequestOption
	if s.APIKey != "" {
		opts = append(opts, anthropicopt.WithAPIKey(s.APIKey))
	}
	if s.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, anthropicopt.WithHTTPClient(s.HTTPClient))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), settings: s}
}

func (a *Anthropic) Name() string { return "anthropic:" + a.settings.Model }

func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	msg, err := a.client.Messages.New(ctx, a.params(req))
	if err != nil {
		return nil, err
	}
	return fromAnthropicMessage(msg), nil
}

func (a *Anthropic) Stream(ctx context.Context, req Request) (Stream, error) {
	s := a.client.Messages.NewStreaming(ctx, a.params(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return &anthropicStream{s: s}, nil
}

func (a *Anthropic) params(req Request) anthropic.MessageNewParams {
	maxTokens := a.settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	system, msgs := toAnthropicMessages(req.Turns)
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.settings.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
		System:    system,
	}
	if a.settings.Temperature != nil {
		p.Temperature = anthropic.Float(*a.settings.Temperature)
	}
	if len(req.Tools) > 0 {
		p.Tools = toAnthropicTools(req.Tools)
	}
	return p
}

// toAnthropicMessages lifts the system turn out of the list and folds tool
// turns into user messages of tool_result blocks. Consecutive turns that map
// to the same role share one message, since the API requires alternation.
func toAnthropicMessages(turns []conversation.Turn) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system []anthropic.TextBlockParam
		out    []anthropic.MessageParam
	)
	push := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			if t.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: t.Content})
			}
		case conversation.RoleUser:
			push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(t.Content))
		case conversation.RoleTool:
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(t.ToolCallID, t.Content, isErrorPayload(t.Content)))
		case conversation.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if t.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(t.Content))
			}
			for _, c := range t.ToolCalls {
				input := json.RawMessage(c.Arguments)
				if len(input) == 0 || !gjson.ValidBytes(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, input, c.Name))
			}
			push(anthropic.MessageParamRoleAssistant, blocks...)
		}
	}
	return system, out
}

// isErrorPayload recognises the {"error": ..., "type": ...} shape the runner
// writes for failed tool calls.
func isErrorPayload(content string) bool {
	if !gjson.Valid(content) {
		return false
	}
	doc := gjson.Parse(content)
	return doc.IsObject() && doc.Get("error").Exists() && doc.Get("type").Exists()
}

func toAnthropicTools(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
		if d.InputSchema != nil {
			if d.InputSchema.Properties != nil {
				schema.Properties = d.InputSchema.Properties
			}
			schema.Required = d.InputSchema.Required
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		}})
	}
	return out
}

func fromAnthropicMessage(msg *anthropic.Message) *Response {
	var text strings.Builder
	var calls []conversation.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, conversation.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: append(json.RawMessage(nil), block.Input...),
			})
		}
	}
	return &Response{Content: text.String(), ToolCalls: calls, StopReason: string(msg.StopReason)}
}

// anthropicStream forwards text deltas, then yields one extra delta with the
// tool_use blocks. Tool input is rebuilt from input_json_delta fragments per
// block index.
type anthropicStream struct {
	s       *ssestream.Stream[anthropic.MessageStreamEventUnion]
	uses    []*pendingToolUse
	cur     Delta
	err     error
	drained bool
	flushed bool
}

type pendingToolUse struct {
	index int64
	id    string
	name  string
	input strings.Builder
}

func (st *anthropicStream) Next() bool {
	if st.err != nil {
		return false
	}
	if !st.drained {
		for st.s.Next() {
			switch ev := st.s.Current().AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type == "tool_use" {
					st.uses = append(st.uses, &pendingToolUse{index: ev.Index, id: ev.ContentBlock.ID, name: ev.ContentBlock.Name})
				}
			case anthropic.ContentBlockDeltaEvent:
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if d.Text != "" {
						st.cur = Delta{Text: d.Text}
						return true
					}
				case anthropic.InputJSONDelta:
					if u := st.use(ev.Index); u != nil {
						u.input.WriteString(d.PartialJSON)
					}
				}
			}
		}
		st.drained = true
	}
	if st.flushed || st.s.Err() != nil || len(st.uses) == 0 {
		return false
	}
	st.flushed = true
	calls := make([]conversation.ToolCall, 0, len(st.uses))
	for _, u := range st.uses {
		args := u.input.String()
		if args == "" {
			args = "{}"
		}
		calls = append(calls, conversation.ToolCall{ID: u.id, Name: u.name, Arguments: json.RawMessage(args)})
	}
	st.cur = Delta{ToolCalls: calls}
	return true
}

func (st *anthropicStream) use(index int64) *pendingToolUse {
	for _, u := range st.uses {
		if u.index == index {
			return u
		}
	}
	return nil
}

func (st *anthropicStream) Current() Delta { return st.cur }

func (st *anthropicStream) Err() error {
	if st.err != nil {
		return st.err
	}
	return st.s.Err()
}

func (st *anthropicStream) Close() error { return st.s.Close() }
