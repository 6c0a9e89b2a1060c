package windowing

import "github.com/petasbytes/chatloop/conversation"

// Stats summarises a prepared window.
//   - Total: estimated tokens of the window, system turn included.
//   - IncludedGroups/SkippedGroups: groups after the system turn.
//   - OverBudgetNewest: the newest group (with the system turn) does not fit.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns the turns to send, oldest first: the system turn
// when present, then the newest whole groups whose running total stays
// within budget. When the newest group cannot fit, or budget <= 0, the
// window is empty and OverBudgetNewest is set. The input is not modified.
func PrepareSendWindow(turns []conversation.Turn, budget int, c TokenCounter) ([]conversation.Turn, Stats) {
	if len(turns) == 0 {
		return nil, Stats{Budget: budget}
	}

	var pinned []conversation.Turn
	rest := turns
	if turns[0].Role == conversation.RoleSystem {
		pinned, rest = turns[:1], turns[1:]
	}
	groups := GroupTurns(rest)

	if budget <= 0 {
		return nil, Stats{Budget: budget, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	total := 0
	for _, t := range pinned {
		total += c.CountTurn(t)
	}
	included := 0
	start := len(rest)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], rest)
		if total+cost > budget {
			if included == 0 {
				vlogf("reason=over_budget_newest_group budget=%d cost=%d", budget, total+cost)
				return nil, Stats{Budget: budget, SkippedGroups: len(groups), OverBudgetNewest: true}
			}
			break
		}
		total += cost
		included++
		start = groups[gi].Start
	}
	if total > budget {
		// Only the pinned system turn is present and it alone is too large.
		return nil, Stats{Budget: budget, OverBudgetNewest: true}
	}

	window := make([]conversation.Turn, 0, len(pinned)+len(rest)-start)
	window = append(window, pinned...)
	window = append(window, rest[start:]...)
	return window, Stats{
		Total:          total,
		Budget:         budget,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
	}
}
