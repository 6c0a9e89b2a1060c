package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// ToolDefinition describes a tool the model may call by name.
// Function receives the raw JSON arguments exactly as the model produced them.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Function    func(ctx context.Context, input json.RawMessage) (string, error)
}

// GenerateSchema reflects an inline (reference-free) JSON Schema from T.
// Fields without omitempty are required.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Parameters returns the schema as a plain object map suitable for
// function-calling APIs: type, properties and required only.
func (d ToolDefinition) Parameters() map[string]any {
	out := map[string]any{"type": "object", "properties": map[string]any{}}
	if d.InputSchema == nil {
		return out
	}
	b, err := json.Marshal(d.InputSchema)
	if err != nil {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return out
	}
	if props, ok := m["properties"]; ok {
		out["properties"] = props
	}
	if req, ok := m["required"]; ok {
		out["required"] = req
	}
	return out
}

// ArgumentError reports tool arguments that could not be decoded or are
// missing required fields. It is returned before the handler runs.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid arguments: %s: %s", e.Field, e.Reason)
}

// DecodeArguments parses raw into T after checking it is a JSON object that
// carries every field schema marks as required. Empty input counts as {}.
func DecodeArguments[T any](raw json.RawMessage, schema *jsonschema.Schema) (T, error) {
	var in T
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if !gjson.ValidBytes(raw) {
		return in, &ArgumentError{Reason: "not valid JSON"}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return in, &ArgumentError{Reason: "expected a JSON object"}
	}
	if schema != nil {
		for _, name := range schema.Required {
			if v := doc.Get(name); !v.Exists() || v.Type == gjson.Null {
				return in, &ArgumentError{Field: name, Reason: "required"}
			}
		}
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, &ArgumentError{Reason: err.Error()}
	}
	return in, nil
}

// NewTypedTool wraps a handler over a typed input. The schema is derived from
// T; arguments are checked and decoded at this boundary so the handler never
// sees the model's raw output. Results that are not strings are JSON-encoded.
func NewTypedTool[T any](name, description string, fn func(ctx context.Context, in T) (any, error)) ToolDefinition {
	schema := GenerateSchema[T]()
	return ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Function: func(ctx context.Context, raw json.RawMessage) (string, error) {
			in, err := DecodeArguments[T](raw, schema)
			if err != nil {
				return "", err
			}
			out, err := fn(ctx, in)
			if err != nil {
				return "", err
			}
			switch v := out.(type) {
			case string:
				return v, nil
			case json.RawMessage:
				return string(v), nil
			}
			b, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("encode %s result: %w", name, err)
			}
			return string(b), nil
		},
	}
}
