package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
	"drydock/internal/guardrail"
	"drydock/internal/infra/ratelimit"
)

type buildFixture struct {
	service      *BuildService
	builds       *fakeBuilds
	capabilities *fakeCapabilities
	publishers   *fakePublishers
	runtime      *config.Runtime
	now          time.Time
}

func newBuildFixture(t *testing.T, publishers ...builds.Publisher) *buildFixture {
	t.Helper()
	fix := &buildFixture{
		builds:       newFakeBuilds(),
		capabilities: newFakeCapabilities(),
		publishers:   newFakePublishers(publishers...),
		now:          time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	cfg := config.Config{
		MaxArtifactBytes:     1 << 20,
		ArtifactContentTypes: []string{"application/zip"},
		ArtifactSchemes:      []string{"s3"},
		ArtifactSources:      []string{"s3://builds-"},
		ReadRateLimit:        1000,
		MutateRateLimit:      1000,
	}
	fix.runtime = config.NewRuntime(cfg)
	groups := newFakeGroups(testGroup())
	guardrails := guardrail.NewEngine(cfg, fix.runtime, groups, newFakeDeployments())
	clock := func() time.Time { return fix.now }
	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{Now: clock})
	controller := admission.NewController(store, fix.runtime, clock)

	fix.service = NewBuildService(fix.builds, fix.capabilities, fix.publishers, groups, guardrails, controller)
	fix.service.Clock = clock
	return fix
}

const testSHA = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

func capabilityReq() UploadCapabilityRequest {
	return UploadCapabilityRequest{
		Service:     "checkout",
		Version:     "1.2.3",
		SHA256:      testSHA,
		SizeBytes:   2048,
		ContentType: "application/zip",
	}
}

func registerReq(token string) RegisterBuildRequest {
	return RegisterBuildRequest{
		CapabilityToken: token,
		Service:         "checkout",
		Version:         "1.2.3",
		ArtifactRef:     "s3://builds-bucket/checkout/1.2.3.zip",
		SHA256:          testSHA,
		SizeBytes:       2048,
		ContentType:     "application/zip",
		GitSHA:          "a1b2c3d",
		GitBranch:       "main",
		CIProvider:      "github",
		CIRunID:         "run-42",
	}
}

func TestCreateUploadCapability(t *testing.T) {
	fix := newBuildFixture(t)
	req := capabilityReq()
	req.SHA256 = strings.ToUpper(testSHA)

	view, err := fix.service.CreateUploadCapability(context.Background(), req)
	if err != nil {
		t.Fatalf("create capability: %v", err)
	}
	if view.Token == "" {
		t.Fatal("expected a token")
	}
	if want := fix.now.Add(builds.CapabilityTTL); !view.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, view.ExpiresAt)
	}
	grant, err := fix.capabilities.Get(context.Background(), view.Token)
	if err != nil {
		t.Fatalf("stored grant: %v", err)
	}
	if grant.SHA256 != testSHA {
		t.Fatalf("sha must be stored lowercased, got %q", grant.SHA256)
	}
}

func TestCreateUploadCapabilityValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*UploadCapabilityRequest)
		wantCode string
	}{
		{"unknown service", func(r *UploadCapabilityRequest) { r.Service = "ghost" }, "NOT_ALLOWLISTED"},
		{"bad version", func(r *UploadCapabilityRequest) { r.Version = "v1" }, "INVALID_REQUEST"},
		{"oversized artifact", func(r *UploadCapabilityRequest) { r.SizeBytes = 2 << 20 }, "INVALID_ARTIFACT"},
		{"zero size", func(r *UploadCapabilityRequest) { r.SizeBytes = 0 }, "INVALID_ARTIFACT"},
		{"bad sha", func(r *UploadCapabilityRequest) { r.SHA256 = "zz" }, "INVALID_ARTIFACT"},
		{"bad content type", func(r *UploadCapabilityRequest) { r.ContentType = "text/html" }, "INVALID_ARTIFACT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newBuildFixture(t)
			req := capabilityReq()
			tt.mutate(&req)
			_, err := fix.service.CreateUploadCapability(context.Background(), req)
			ge, ok := deploy.AsGovernance(err)
			if !ok || ge.Code != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestRegisterBuild(t *testing.T) {
	fix := newBuildFixture(t)
	grant, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("capability: %v", err)
	}

	view, err := fix.service.Register(context.Background(), deploy.Principal{ActorID: "ci-bot", Role: deploy.RoleCI}, registerReq(grant.Token))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if view.Service != "checkout" || view.Version != "1.2.3" {
		t.Fatalf("unexpected view %+v", view)
	}
	stored, err := fix.capabilities.Get(context.Background(), grant.Token)
	if err != nil {
		t.Fatalf("grant after register: %v", err)
	}
	if stored.ConsumedAt == nil {
		t.Fatal("capability must be consumed on first registration")
	}
}

func TestRegisterBuildCapabilityChecks(t *testing.T) {
	fix := newBuildFixture(t)
	grant, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("capability: %v", err)
	}

	t.Run("missing token", func(t *testing.T) {
		_, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq(""))
		ge, ok := deploy.AsGovernance(err)
		if !ok || ge.Code != "INVALID_REQUEST" {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})
	t.Run("unknown token", func(t *testing.T) {
		_, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq("no-such-token"))
		ge, ok := deploy.AsGovernance(err)
		if !ok || ge.Code != "INVALID_REQUEST" {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})
	t.Run("metadata mismatch", func(t *testing.T) {
		req := registerReq(grant.Token)
		req.SizeBytes = 4096
		_, err := fix.service.Register(context.Background(), deploy.Principal{}, req)
		ge, ok := deploy.AsGovernance(err)
		if !ok || ge.Code != "INVALID_REQUEST" {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})
	t.Run("expired token", func(t *testing.T) {
		fix.now = fix.now.Add(builds.CapabilityTTL + time.Minute)
		_, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq(grant.Token))
		ge, ok := deploy.AsGovernance(err)
		if !ok || ge.Code != "INVALID_REQUEST" {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

func TestRegisterBuildConflict(t *testing.T) {
	fix := newBuildFixture(t)
	first, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("capability: %v", err)
	}
	if _, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq(first.Token)); err != nil {
		t.Fatalf("first register: %v", err)
	}

	second, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("second capability: %v", err)
	}
	req := registerReq(second.Token)
	req.GitSHA = "deadbee"
	_, err = fix.service.Register(context.Background(), deploy.Principal{}, req)
	ge, ok := deploy.AsGovernance(err)
	if !ok || ge.Code != "BUILD_REGISTRATION_CONFLICT" {
		t.Fatalf("expected BUILD_REGISTRATION_CONFLICT, got %v", err)
	}
}

func TestRegisterBuildIdenticalReplayReturnsStored(t *testing.T) {
	fix := newBuildFixture(t)
	first, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("capability: %v", err)
	}
	original, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq(first.Token))
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	second, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("second capability: %v", err)
	}
	replay, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq(second.Token))
	if err != nil {
		t.Fatalf("identical replay must succeed: %v", err)
	}
	if replay.ID != original.ID {
		t.Fatalf("replay must return the stored registration, got %s want %s", replay.ID, original.ID)
	}
}

func TestRegisterBuildPublisherAttribution(t *testing.T) {
	fix := newBuildFixture(t,
		builds.Publisher{
			Name:     "github-main",
			Issuers:  []string{"https://token.actions.githubusercontent.com"},
			Subjects: []string{"repo:acme/checkout:ref:refs/heads/main"},
		},
	)
	grant, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("capability: %v", err)
	}
	principal := deploy.Principal{
		ActorID: "ci-bot",
		Role:    deploy.RoleCI,
		Claims: map[string]any{
			"iss": "https://token.actions.githubusercontent.com",
			"sub": "repo:acme/checkout:ref:refs/heads/main",
		},
	}

	view, err := fix.service.Register(context.Background(), principal, registerReq(grant.Token))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if view.Publisher != "github-main" {
		t.Fatalf("expected attribution to github-main, got %q", view.Publisher)
	}
}

func TestRegisterBuildUnattributedWithoutClaims(t *testing.T) {
	fix := newBuildFixture(t, builds.Publisher{Name: "github-main", Issuers: []string{"https://issuer"}})
	grant, err := fix.service.CreateUploadCapability(context.Background(), capabilityReq())
	if err != nil {
		t.Fatalf("capability: %v", err)
	}

	view, err := fix.service.Register(context.Background(), deploy.Principal{ActorID: "ci-bot"}, registerReq(grant.Token))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if view.Publisher != "" {
		t.Fatalf("expected unattributed registration, got %q", view.Publisher)
	}
}

func TestRegisterBuildMutationsDisabled(t *testing.T) {
	fix := newBuildFixture(t)
	fix.runtime.SetMutationsEnabled(false)

	_, err := fix.service.Register(context.Background(), deploy.Principal{}, registerReq("any"))
	ge, ok := deploy.AsGovernance(err)
	if !ok || ge.Code != "MUTATIONS_DISABLED" {
		t.Fatalf("expected MUTATIONS_DISABLED, got %v", err)
	}
}

func TestGetBuild(t *testing.T) {
	fix := newBuildFixture(t)
	fix.builds.registrations[buildKey("checkout", "1.2.3")] = registrationFor("checkout", "1.2.3")

	view, err := fix.service.Get(context.Background(), "checkout", "1.2.3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.ArtifactRef == "" {
		t.Fatalf("unexpected view %+v", view)
	}

	_, err = fix.service.Get(context.Background(), "checkout", "9.9.9")
	ge, ok := deploy.AsGovernance(err)
	if !ok || ge.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
