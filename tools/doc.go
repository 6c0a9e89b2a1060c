// Package tools defines tool contracts and implementations.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - NewTypedTool[T](): decode and check arguments before the handler runs.
//   - Registry: static, read-only set of definitions, looked up by name.
//   - search_news: Naver news search.
package tools
