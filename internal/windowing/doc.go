// Package windowing selects the newest part of a conversation that fits a
// token budget without splitting a tool round: an assistant turn carrying
// tool calls and the tool turns answering it are kept or dropped together.
// A leading system turn is always kept.
package windowing
