// Package runner drives one conversation session: it commits user turns,
// calls the model, executes requested tools and loops until the model
// answers without tool calls.
//
// Invariant:
//   - an assistant turn carrying tool calls is followed by exactly one tool
//     turn per call, in request order, before the model is called again.
//
// Flow:
//
//	user -> assistant(tool_calls) -> tool... -> assistant(text)
package runner
