package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/petasbytes/chatloop/internal/telemetry"
)

func TestTurnID_RoundTrip(t *testing.T) {
	ctx := telemetry.WithTurnID(context.Background(), "turn-123")
	got, ok := telemetry.TurnIDFromContext(ctx)
	if !ok || got != "turn-123" {
		t.Fatalf("want turn-123,true; got %q,%v", got, ok)
	}
}

func TestTurnID_EmptyIDRejectedOnRead(t *testing.T) {
	ctx := telemetry.WithTurnID(context.Background(), "")
	if got, ok := telemetry.TurnIDFromContext(ctx); ok || got != "" {
		t.Fatalf("want empty,false; got %q,%v", got, ok)
	}
}

func TestTurnID_MissingValue(t *testing.T) {
	if got, ok := telemetry.TurnIDFromContext(context.Background()); ok || got != "" {
		t.Fatalf("want empty,false; got %q,%v", got, ok)
	}
}

func TestTurnID_ParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	child := telemetry.WithTurnID(parent, "t1")
	cancel()

	select {
	case <-child.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("child context did not observe parent cancellation")
	}
}

func TestTurnID_LastWriteWins(t *testing.T) {
	ctx := telemetry.WithTurnID(telemetry.WithTurnID(context.Background(), "t1"), "t2")
	if got, ok := telemetry.TurnIDFromContext(ctx); !ok || got != "t2" {
		t.Fatalf("want t2,true; got %q,%v", got, ok)
	}
}

func TestEnsureTurnID_KeepsExisting(t *testing.T) {
	parent := telemetry.WithTurnID(context.Background(), "t1")
	ctx, id := telemetry.EnsureTurnID(parent)
	if id != "t1" || ctx != parent {
		t.Fatalf("existing id should be reused; got %q", id)
	}
}

func TestEnsureTurnID_MintsUUID(t *testing.T) {
	ctx, id := telemetry.EnsureTurnID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("minted id %q is not a uuid: %v", id, err)
	}
	if got, _ := telemetry.TurnIDFromContext(ctx); got != id {
		t.Fatalf("context id %q != returned id %q", got, id)
	}
	_, other := telemetry.EnsureTurnID(context.Background())
	if other == id {
		t.Fatal("ids should differ between calls")
	}
}
