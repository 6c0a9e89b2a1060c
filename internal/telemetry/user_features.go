package telemetry

import (
	"context"

	"github.com/petasbytes/chatloop/internal/metrics"
)

// EmitUserTurn records size features of a submitted user turn.
func EmitUserTurn(ctx context.Context, text string) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	f := metrics.CountFeatures(text)
	Emit("user_turn", map[string]any{
		"turn_id": turnID,
		"user":    f.Fields(),
	})
}
