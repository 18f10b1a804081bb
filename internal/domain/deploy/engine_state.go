package deploy

import "strings"

// MapEngineState translates the engine's state vocabulary into the
// normalized lifecycle. Unrecognized states report ok=false and leave
// the record untouched.
func MapEngineState(raw string) (State, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "pending", "scheduled":
		return StatePending, true
	case "starting", "active", "accepted":
		return StateActive, true
	case "running", "in_progress", "deploying":
		return StateInProgress, true
	case "succeeded", "success", "complete", "completed":
		return StateSucceeded, true
	case "failed", "error", "errored":
		return StateFailed, true
	case "canceled", "cancelled", "aborted":
		return StateCanceled, true
	case "rolled_back":
		return StateRolledBack, true
	}
	return "", false
}
