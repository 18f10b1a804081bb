package deploy

import "strings"

// FailureCategory is the closed taxonomy user-facing failures are mapped
// into. Raw engine detail never leaves this package unredacted.
type FailureCategory string

const (
	FailureArtifact       FailureCategory = "ARTIFACT"
	FailureTimeout        FailureCategory = "TIMEOUT"
	FailurePolicy         FailureCategory = "POLICY"
	FailureRollback       FailureCategory = "ROLLBACK"
	FailureInfrastructure FailureCategory = "INFRASTRUCTURE"
	FailureUnknown        FailureCategory = "UNKNOWN"
)

// NormalizedFailure is the safe, stable representation of one engine
// failure. Summary and ActionHint are fixed per category.
type NormalizedFailure struct {
	Category   FailureCategory `json:"category"`
	Summary    string          `json:"summary"`
	ActionHint string          `json:"action_hint"`
	Detail     string          `json:"detail,omitempty"` // redacted free text
}

// RawFailure is what the engine adapter extracts from an execution
// failure payload before normalization.
type RawFailure struct {
	Code    string
	Message string
}

type failureTemplate struct {
	summary    string
	actionHint string
}

var failureTemplates = map[FailureCategory]failureTemplate{
	FailureArtifact: {
		summary:    "Artifact could not be retrieved.",
		actionHint: "Verify the build was registered and the artifact still exists.",
	},
	FailureTimeout: {
		summary:    "Deployment timed out.",
		actionHint: "Retry the deployment; if it keeps timing out contact the platform team.",
	},
	FailurePolicy: {
		summary:    "Deployment was blocked by policy.",
		actionHint: "Check the delivery group's guardrails and environment settings.",
	},
	FailureRollback: {
		summary:    "Automatic rollback was triggered.",
		actionHint: "Inspect the previous deployment for the regression that caused it.",
	},
	FailureInfrastructure: {
		summary:    "Deployment infrastructure reported an error.",
		actionHint: "Retry later; if the error persists contact the platform team.",
	},
	FailureUnknown: {
		summary:    "Deployment failed.",
		actionHint: "Deployment failed for an unknown reason.",
	},
}

// engine code fragments → category; matched case-insensitively against
// the raw code and message.
var failureHints = []struct {
	fragment string
	category FailureCategory
}{
	{"artifact", FailureArtifact},
	{"image_pull", FailureArtifact},
	{"not_found", FailureArtifact},
	{"timeout", FailureTimeout},
	{"timed_out", FailureTimeout},
	{"deadline", FailureTimeout},
	{"policy", FailurePolicy},
	{"denied", FailurePolicy},
	{"forbidden", FailurePolicy},
	{"rollback", FailureRollback},
	{"rolled_back", FailureRollback},
	{"infra", FailureInfrastructure},
	{"capacity", FailureInfrastructure},
	{"node", FailureInfrastructure},
	{"internal", FailureInfrastructure},
}

// NormalizeFailure maps one raw engine failure to the closed taxonomy.
// Unrecognized codes land in UNKNOWN.
func NormalizeFailure(raw RawFailure) NormalizedFailure {
	category := classifyFailure(raw)
	template := failureTemplates[category]
	return NormalizedFailure{
		Category:   category,
		Summary:    template.summary,
		ActionHint: template.actionHint,
		Detail:     Redact(raw.Message),
	}
}

// NormalizeFailures maps a whole failure sequence, preserving order.
func NormalizeFailures(raw []RawFailure) []NormalizedFailure {
	if len(raw) == 0 {
		return nil
	}
	out := make([]NormalizedFailure, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeFailure(r))
	}
	return out
}

func classifyFailure(raw RawFailure) FailureCategory {
	haystack := strings.ToLower(raw.Code + " " + raw.Message)
	for _, hint := range failureHints {
		if strings.Contains(haystack, hint.fragment) {
			return hint.category
		}
	}
	return FailureUnknown
}
