// Package telemetry appends structured JSONL events to
// $CHATLOOP_ARTIFACTS_DIR/events.jsonl when CHATLOOP_OBSERVE_JSON=1.
// Events carry sizes, counts and durations only, never conversation text.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const eventsFile = "events.jsonl"

// journalMu serialises appends from concurrent sessions.
var journalMu sync.Mutex

// Emit records one event. The line gets "time" (RFC3339Nano, UTC) and
// "event" keys on top of fields; fields itself is left untouched. Failures
// are reported on stderr and never returned.
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}
	line, err := encodeEvent(name, fields, time.Now())
	if err != nil {
		warn("marshal %s: %v", name, err)
		return
	}
	appendLine(ArtifactsDir(), line)
}

func encodeEvent(name string, fields map[string]any, at time.Time) ([]byte, error) {
	rec := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}
	rec["time"] = at.UTC().Format(time.RFC3339Nano)
	rec["event"] = name
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func appendLine(dir string, line []byte) {
	journalMu.Lock()
	defer journalMu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		warn("mkdir %s: %v", dir, err)
		return
	}
	path := filepath.Join(dir, eventsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		warn("open %s: %v", path, err)
		return
	}
	if _, err := f.Write(line); err != nil {
		warn("write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		warn("close %s: %v", path, err)
	}
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "telemetry: "+format+"\n", args...)
}
