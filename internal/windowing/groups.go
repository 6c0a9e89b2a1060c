package windowing

import (
	"fmt"
	"os"

	"github.com/petasbytes/chatloop/conversation"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	// GroupRound is an assistant tool request plus every tool turn answering it.
	GroupRound
)

// Group is the half-open span [Start, End) of the turn slice.
type Group struct {
	Kind  GroupKind
	Start int
	End   int
}

// GroupTurns splits turns into atomic units. A round is only formed when the
// tool turns directly following the request answer every call exactly once;
// anything else falls back to singletons.
func GroupTurns(turns []conversation.Turn) []Group {
	groups := make([]Group, 0, len(turns))
	for i := 0; i < len(turns); {
		t := turns[i]
		if t.RequestsTools() {
			end := i + 1
			for end < len(turns) && turns[end].Role == conversation.RoleTool {
				end++
			}
			reason := roundProblem(t, turns[i+1:end])
			if reason == "" {
				groups = append(groups, Group{Kind: GroupRound, Start: i, End: end})
				i = end
				continue
			}
			vlogf("exclude round: reason=%s idx=%d", reason, i)
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// roundProblem returns "" when results answer every call of req exactly once.
func roundProblem(req conversation.Turn, results []conversation.Turn) string {
	if len(results) == 0 {
		return "no_results"
	}
	want := make(map[string]struct{}, len(req.ToolCalls))
	for _, c := range req.ToolCalls {
		want[c.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := want[r.ToolCallID]; !ok {
			return "extra_results"
		}
		if _, dup := seen[r.ToolCallID]; dup {
			return "duplicate_results"
		}
		seen[r.ToolCallID] = struct{}{}
	}
	if len(seen) != len(want) {
		return "missing_results"
	}
	return ""
}

var verbose = os.Getenv("CHATLOOP_VERBOSE_WINDOW_LOGS") == "1"

func vlogf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[windowing] "+format+"\n", args...)
	}
}
