package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"drydock/internal/admission"
	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
	"drydock/internal/guardrail"
)

// BuildService owns build registration: capability issuance, capability
// matching, artifact validation, CI publisher attribution, and the
// stored-vs-requested conflict check.
type BuildService struct {
	builds       BuildRepository
	capabilities CapabilityRepository
	publishers   PublisherRepository
	groups       GroupRepository
	guardrails   *guardrail.Engine
	admission    *admission.Controller

	Clock func() time.Time
}

func NewBuildService(
	buildRepo BuildRepository,
	capabilities CapabilityRepository,
	publishers PublisherRepository,
	groups GroupRepository,
	guardrails *guardrail.Engine,
	adm *admission.Controller,
) *BuildService {
	return &BuildService{
		builds:       buildRepo,
		capabilities: capabilities,
		publishers:   publishers,
		groups:       groups,
		guardrails:   guardrails,
		admission:    adm,
		Clock:        time.Now,
	}
}

type UploadCapabilityRequest struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	SHA256      string `json:"sha256"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

type UploadCapabilityView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RegisterBuildRequest struct {
	CapabilityToken string `json:"capability_token"`
	Service         string `json:"service"`
	Version         string `json:"version"`
	ArtifactRef     string `json:"artifact_ref"`
	SHA256          string `json:"sha256"`
	SizeBytes       int64  `json:"size_bytes"`
	ContentType     string `json:"content_type"`
	GitSHA          string `json:"git_sha"`
	GitBranch       string `json:"git_branch"`
	CIProvider      string `json:"ci_provider"`
	CIRunID         string `json:"ci_run_id"`
	CommitURL       string `json:"commit_url"`
	RunURL          string `json:"run_url"`
}

type BuildView struct {
	ID          string    `json:"id"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	ArtifactRef string    `json:"artifact_ref"`
	SHA256      string    `json:"sha256"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	GitSHA      string    `json:"git_sha,omitempty"`
	GitBranch   string    `json:"git_branch,omitempty"`
	CIProvider  string    `json:"ci_provider,omitempty"`
	CIRunID     string    `json:"ci_run_id,omitempty"`
	CommitURL   string    `json:"commit_url,omitempty"`
	RunURL      string    `json:"run_url,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateUploadCapability issues a single-use token binding the artifact
// metadata a later registration must present.
func (s *BuildService) CreateUploadCapability(ctx context.Context, req UploadCapabilityRequest) (UploadCapabilityView, error) {
	if err := s.guardrails.RequireMutationsEnabled(); err != nil {
		return UploadCapabilityView{}, err
	}
	if req.Service == "" || req.Version == "" {
		return UploadCapabilityView{}, deploy.ErrInvalidRequest("service and version are required")
	}
	if err := s.guardrails.ValidateService(ctx, req.Service); err != nil {
		return UploadCapabilityView{}, err
	}
	if err := s.guardrails.ValidateVersion(req.Version); err != nil {
		return UploadCapabilityView{}, err
	}
	if err := s.guardrails.ValidateArtifact(req.SizeBytes, req.SHA256, req.ContentType); err != nil {
		return UploadCapabilityView{}, err
	}
	grant := builds.UploadCapability{
		Token:       uuid.NewString(),
		Service:     req.Service,
		Version:     req.Version,
		SHA256:      strings.ToLower(req.SHA256),
		SizeBytes:   req.SizeBytes,
		ContentType: req.ContentType,
		ExpiresAt:   s.Clock().UTC().Add(builds.CapabilityTTL),
	}
	if err := s.capabilities.Create(ctx, grant); err != nil {
		return UploadCapabilityView{}, err
	}
	return UploadCapabilityView{Token: grant.Token, ExpiresAt: grant.ExpiresAt}, nil
}

// Register records a CI-produced build. The registration must match an
// unexpired, unconsumed capability; a duplicate (service, version) with
// different provenance is a conflict, never an overwrite.
func (s *BuildService) Register(ctx context.Context, principal deploy.Principal, req RegisterBuildRequest) (BuildView, error) {
	if err := s.guardrails.RequireMutationsEnabled(); err != nil {
		return BuildView{}, err
	}
	if req.Service == "" || req.Version == "" || req.ArtifactRef == "" {
		return BuildView{}, deploy.ErrInvalidRequest("service, version, and artifact_ref are required")
	}
	if err := s.guardrails.ValidateService(ctx, req.Service); err != nil {
		return BuildView{}, err
	}
	if err := s.guardrails.ValidateVersion(req.Version); err != nil {
		return BuildView{}, err
	}
	if err := s.guardrails.ValidateArtifact(req.SizeBytes, req.SHA256, req.ContentType); err != nil {
		return BuildView{}, err
	}
	if err := s.guardrails.ValidateArtifactSource(req.ArtifactRef); err != nil {
		return BuildView{}, err
	}
	reg := builds.Registration{
		ID:          uuid.NewString(),
		Service:     req.Service,
		Version:     req.Version,
		ArtifactRef: req.ArtifactRef,
		SHA256:      strings.ToLower(req.SHA256),
		SizeBytes:   req.SizeBytes,
		ContentType: req.ContentType,
		GitSHA:      req.GitSHA,
		GitBranch:   req.GitBranch,
		CIProvider:  req.CIProvider,
		CIRunID:     req.CIRunID,
		CommitURL:   req.CommitURL,
		RunURL:      req.RunURL,
		CreatedAt:   s.Clock().UTC(),
	}
	grant, err := s.matchCapability(ctx, req.CapabilityToken, reg)
	if err != nil {
		return BuildView{}, err
	}
	if group, err := s.groups.GroupForService(ctx, req.Service); err == nil {
		if err := s.admission.CheckDaily(ctx, group.ID, admission.QuotaBuildRegister, group.Guardrails.EffectiveDeployQuota()); err != nil {
			return BuildView{}, err
		}
	} else if !errors.Is(err, deploy.ErrNotFound) {
		return BuildView{}, err
	}
	reg.Publisher = s.attributePublisher(ctx, principal)
	created, err := s.builds.Create(ctx, reg)
	if err != nil {
		return BuildView{}, err
	}
	if !created {
		stored, err := s.builds.Get(ctx, req.Service, req.Version)
		if err != nil {
			return BuildView{}, err
		}
		if stored.GitSHA != reg.GitSHA || stored.SHA256 != reg.SHA256 || stored.ArtifactRef != reg.ArtifactRef {
			return BuildView{}, deploy.ErrBuildRegistrationConflict(req.Service, req.Version)
		}
		return buildView(stored), nil
	}
	if err := s.capabilities.Consume(ctx, grant.Token, s.Clock().UTC()); err != nil {
		log.Printf("consuming capability %s failed: %v", grant.Token, err)
	}
	return buildView(reg), nil
}

// matchCapability loads and checks the presented capability token.
func (s *BuildService) matchCapability(ctx context.Context, token string, reg builds.Registration) (builds.UploadCapability, error) {
	if token == "" {
		return builds.UploadCapability{}, deploy.ErrInvalidRequest("capability_token is required")
	}
	grant, err := s.capabilities.Get(ctx, token)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return builds.UploadCapability{}, deploy.ErrInvalidRequest("capability token is not recognized")
		}
		return builds.UploadCapability{}, err
	}
	if !grant.Live(s.Clock().UTC()) {
		return builds.UploadCapability{}, deploy.ErrInvalidRequest("capability token is expired or already used")
	}
	if !grant.Matches(reg) {
		return builds.UploadCapability{}, deploy.ErrInvalidRequest("registration does not match the upload capability")
	}
	return grant, nil
}

// attributePublisher matches verified claims against the configured CI
// publishers. No match leaves the registration unattributed.
func (s *BuildService) attributePublisher(ctx context.Context, principal deploy.Principal) string {
	if len(principal.Claims) == 0 {
		return ""
	}
	publishers, err := s.publishers.List(ctx)
	if err != nil {
		log.Printf("publisher list unavailable, registration unattributed: %v", err)
		return ""
	}
	return builds.MatchPublisher(principal.Claims, publishers)
}

// Get returns one registered build.
func (s *BuildService) Get(ctx context.Context, service, version string) (BuildView, error) {
	reg, err := s.builds.Get(ctx, service, version)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return BuildView{}, deploy.ErrRecordNotFound()
		}
		return BuildView{}, err
	}
	return buildView(reg), nil
}

func buildView(reg builds.Registration) BuildView {
	return BuildView{
		ID:          reg.ID,
		Service:     reg.Service,
		Version:     reg.Version,
		ArtifactRef: reg.ArtifactRef,
		SHA256:      reg.SHA256,
		SizeBytes:   reg.SizeBytes,
		ContentType: reg.ContentType,
		GitSHA:      reg.GitSHA,
		GitBranch:   reg.GitBranch,
		CIProvider:  reg.CIProvider,
		CIRunID:     reg.CIRunID,
		CommitURL:   reg.CommitURL,
		RunURL:      reg.RunURL,
		Publisher:   reg.Publisher,
		CreatedAt:   reg.CreatedAt,
	}
}
