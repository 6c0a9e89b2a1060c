package telemetry

import (
	"os"
	"strings"
)

const (
	envObserve   = "CHATLOOP_OBSERVE_JSON"
	envArtifacts = "CHATLOOP_ARTIFACTS_DIR"

	defaultArtifactsDir = ".chatloop"
)

var observeEnabled bool

func init() {
	// Read once at process start; ObserveEnabled still honours a later "1".
	observeEnabled = os.Getenv(envObserve) == "1"
}

// ObserveEnabled reports whether JSONL emission is on. The startup value
// can be switched on mid-run by setting CHATLOOP_OBSERVE_JSON=1.
func ObserveEnabled() bool {
	if os.Getenv(envObserve) == "1" {
		return true
	}
	return observeEnabled
}

// ArtifactsDir is where events.jsonl is written.
func ArtifactsDir() string {
	if v := strings.TrimSpace(os.Getenv(envArtifacts)); v != "" {
		return v
	}
	return defaultArtifactsDir
}
