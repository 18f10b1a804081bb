package builds

import "testing"

func TestMatchPublisherSubjectConstraint(t *testing.T) {
	publishers := []Publisher{
		{Name: "ci-main", Provider: "github", Subjects: []string{"auth0|ci-user-1"}},
	}
	claims := map[string]any{"sub": "auth0|ci-user-1"}
	if got := MatchPublisher(claims, publishers); got != "ci-main" {
		t.Fatalf("expected ci-main, got %q", got)
	}
}

func TestMatchPublisherTiebreakIsLexicographic(t *testing.T) {
	publishers := []Publisher{
		{Name: "z-publisher", Subjects: []string{"auth0|ci-user-1"}},
		{Name: "a-publisher", Subjects: []string{"auth0|ci-user-1"}},
	}
	claims := map[string]any{"sub": "auth0|ci-user-1"}
	if got := MatchPublisher(claims, publishers); got != "a-publisher" {
		t.Fatalf("expected a-publisher, got %q", got)
	}
}

func TestMatchPublisherPrefersMostSpecific(t *testing.T) {
	publishers := []Publisher{
		{Name: "broad", Issuers: []string{"https://issuer.test"}},
		{Name: "narrow", Issuers: []string{"https://issuer.test"}, Subjects: []string{"repo:org/app"}},
	}
	claims := map[string]any{"iss": "https://issuer.test", "sub": "repo:org/app"}
	if got := MatchPublisher(claims, publishers); got != "narrow" {
		t.Fatalf("expected narrow, got %q", got)
	}
}

func TestMatchPublisherAudienceIntersection(t *testing.T) {
	publishers := []Publisher{
		{Name: "aud-pub", Audiences: []string{"drydock"}},
	}
	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{"single value", map[string]any{"aud": "drydock"}, "aud-pub"},
		{"list with match", map[string]any{"aud": []any{"other", "drydock"}}, "aud-pub"},
		{"list without match", map[string]any{"aud": []any{"other"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPublisher(tt.claims, publishers); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMatchPublisherSubjectPrefix(t *testing.T) {
	publishers := []Publisher{
		{Name: "prefix-pub", SubjectPrefixes: []string{"repo:org/"}},
	}
	if got := MatchPublisher(map[string]any{"sub": "repo:org/app:ref:main"}, publishers); got != "prefix-pub" {
		t.Fatalf("expected prefix-pub, got %q", got)
	}
	if got := MatchPublisher(map[string]any{"sub": "repo:elsewhere/app"}, publishers); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestMatchPublisherEmptyConstraintsAlwaysMatch(t *testing.T) {
	publishers := []Publisher{{Name: "wildcard"}}
	if got := MatchPublisher(map[string]any{"sub": "anyone"}, publishers); got != "wildcard" {
		t.Fatalf("expected wildcard, got %q", got)
	}
}

func TestMatchPublisherNoMatch(t *testing.T) {
	publishers := []Publisher{
		{Name: "strict", Subjects: []string{"auth0|ci-user-1"}},
	}
	if got := MatchPublisher(map[string]any{"sub": "auth0|someone-else"}, publishers); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestMatchPublisherAllConstraintsMustHold(t *testing.T) {
	publishers := []Publisher{
		{Name: "both", Issuers: []string{"https://issuer.test"}, Emails: []string{"ci@example.com"}},
	}
	claims := map[string]any{"iss": "https://issuer.test", "email": "other@example.com"}
	if got := MatchPublisher(claims, publishers); got != "" {
		t.Fatalf("expected no match when one constraint fails, got %q", got)
	}
}

func TestUploadCapabilityMatchAndExpiry(t *testing.T) {
	reg := Registration{
		Service:     "svc",
		Version:     "1.2.3",
		SHA256:      "abc",
		SizeBytes:   10,
		ContentType: "application/zip",
	}
	grant := UploadCapability{
		Service:     "svc",
		Version:     "1.2.3",
		SHA256:      "abc",
		SizeBytes:   10,
		ContentType: "application/zip",
	}
	if !grant.Matches(reg) {
		t.Fatalf("expected capability to match registration")
	}
	other := reg
	other.SizeBytes = 11
	if grant.Matches(other) {
		t.Fatalf("expected size mismatch to fail")
	}
}
