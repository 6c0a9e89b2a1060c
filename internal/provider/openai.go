package provider

import (
	"context"
	"net/http"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/tools"
)

// Settings are the request knobs shared by every adapter.
type Settings struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int64
	Temperature *float64
	// HTTPClient overrides the SDK transport; tests inject a fake RoundTripper here.
	HTTPClient *http.Client
}

// OpenAI talks to the Chat Completions API.
type OpenAI struct {
	client   openai.Client
	settings Settings
}

func NewOpenAI(s Settings) *OpenAI {
	var opts []openaiopt.RequestOption
	if s.APIKey != "" {
		opts = append(opts, openaiopt.WithAPIKey(s.APIKey))
	}
	if s.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, openaiopt.WithHTTPClient(s.HTTPClient))
	}
	return &OpenAI{client: openai.NewClient(opts...), settings: s}
}

func (o *OpenAI) Name() string { return "openai:" + o.settings.Model }

func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	completion, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, ErrNoChoices
	}
	choice := completion.Choices[0]
	return &Response{
		Content:    choice.Message.Content,
		ToolCalls:  fromOpenAIToolCalls(choice.Message.ToolCalls),
		StopReason: choice.FinishReason,
	}, nil
}

func (o *OpenAI) Stream(ctx context.Context, req Request) (Stream, error) {
	s := o.client.Chat.Completions.NewStreaming(ctx, o.params(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return &openAIStream{s: s}, nil
}

func (o *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.settings.Model),
		Messages: toOpenAIMessages(req.Turns),
	}
	if o.settings.MaxTokens > 0 {
		p.MaxTokens = openai.Int(o.settings.MaxTokens)
	}
	if o.settings.Temperature != nil {
		p.Temperature = openai.Float(*o.settings.Temperature)
	}
	if len(req.Tools) > 0 {
		p.Tools = toOpenAITools(req.Tools)
	}
	return p
}

func toOpenAIMessages(turns []conversation.Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			out = append(out, openai.SystemMessage(t.Content))
		case conversation.RoleUser:
			out = append(out, openai.UserMessage(t.Content))
		case conversation.RoleTool:
			out = append(out, openai.ToolMessage(t.Content, t.ToolCallID))
		case conversation.RoleAssistant:
			if !t.RequestsTools() {
				out = append(out, openai.AssistantMessage(t.Content))
				continue
			}
			msg := openai.ChatCompletionAssistantMessageParam{}
			if t.Content != "" {
				msg.Content.OfString = openai.String(t.Content)
			}
			for _, c := range t.ToolCalls {
				args := string(c.Arguments)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: c.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		}
	}
	return out
}

func toOpenAITools(defs []tools.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  openai.FunctionParameters(d.Parameters()),
			},
		})
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ChatCompletionMessageToolCall) []conversation.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]conversation.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, conversation.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: rawArguments(c.Function.Arguments),
		})
	}
	return out
}

// openAIStream forwards content deltas and, once the SSE stream ends,
// yields one extra delta with the accumulated tool calls.
type openAIStream struct {
	s       *ssestream.Stream[openai.ChatCompletionChunk]
	acc     openai.ChatCompletionAccumulator
	cur     Delta
	drained bool
	flushed bool
}

func (st *openAIStream) Next() bool {
	if !st.drained {
		for st.s.Next() {
			chunk := st.s.Current()
			st.acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			st.cur = Delta{Text: chunk.Choices[0].Delta.Content}
			return true
		}
		st.drained = true
	}
	if st.flushed || st.s.Err() != nil {
		return false
	}
	st.flushed = true
	if len(st.acc.Choices) == 0 {
		return false
	}
	calls := fromOpenAIToolCalls(st.acc.Choices[0].Message.ToolCalls)
	if len(calls) == 0 {
		return false
	}
	st.cur = Delta{ToolCalls: calls}
	return true
}

func (st *openAIStream) Current() Delta { return st.cur }
func (st *openAIStream) Err() error     { return st.s.Err() }
func (st *openAIStream) Close() error   { return st.s.Close() }

func rawArguments(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
