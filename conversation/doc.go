// Package conversation holds the ordered turn history of a chat session.
//
// Ordering model:
//   - An optional system turn sits at index 0; nowhere else.
//   - Tool turns directly follow the assistant turn whose tool calls they
//     answer (other tool turns of the same round may sit in between).
//   - Every tool turn's ToolCallID names a call of that assistant turn, and
//     each call is answered at most once.
//
// Flow:
//
//	system? -> user -> assistant(tool_calls) -> tool... -> assistant(text)
package conversation
