package windowing

import (
	"unicode/utf8"

	"github.com/petasbytes/chatloop/conversation"
)

// TokenCounter estimates input-token cost for turns or groups.
type TokenCounter interface {
	CountTurn(t conversation.Turn) int
	CountGroup(g Group, all []conversation.Turn) int
}

// HeuristicCounter is a deterministic estimator: runes of the content, plus
// runes of each tool call's name and arguments, plus a fixed overhead per
// turn and per tool call.
type HeuristicCounter struct{}

// Changing this requires updating the counter tests.
const turnOverhead = 4

func (HeuristicCounter) CountTurn(t conversation.Turn) int {
	n := utf8.RuneCountInString(t.Content) + turnOverhead
	for _, c := range t.ToolCalls {
		n += utf8.RuneCountInString(c.Name) + utf8.RuneCount(c.Arguments) + turnOverhead
	}
	return n
}

func (h HeuristicCounter) CountGroup(g Group, all []conversation.Turn) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountTurn(all[i])
	}
	return total
}
