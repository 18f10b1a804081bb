package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/domain/deploy"
	"drydock/internal/guardrail"
)

// DeploymentService is the orchestrator: it runs every mutation through
// admission and guardrail checks, drives the execution engine, and keeps
// records fresh on read.
type DeploymentService struct {
	deployments DeploymentRepository
	groups      GroupRepository
	recipes     RecipeRepository
	builds      BuildRepository
	guardrails  *guardrail.Engine
	admission   *admission.Controller
	engine      EngineAdapter
	artifacts   ArtifactChecker // nil disables the preflight probe
	runtime     *config.Runtime
	allowJumps  bool

	Clock func() time.Time
}

func NewDeploymentService(
	deployments DeploymentRepository,
	groups GroupRepository,
	recipes RecipeRepository,
	builds BuildRepository,
	guardrails *guardrail.Engine,
	adm *admission.Controller,
	engine EngineAdapter,
	artifacts ArtifactChecker,
	runtime *config.Runtime,
	allowJumps bool,
) *DeploymentService {
	return &DeploymentService{
		deployments: deployments,
		groups:      groups,
		recipes:     recipes,
		builds:      builds,
		guardrails:  guardrails,
		admission:   adm,
		engine:      engine,
		artifacts:   artifacts,
		runtime:     runtime,
		allowJumps:  allowJumps,
		Clock:       time.Now,
	}
}

type CreateDeploymentRequest struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	RecipeID    string `json:"recipe_id"`
}

type PromotionRequest struct {
	Service           string `json:"service"`
	Version           string `json:"version"`
	SourceEnvironment string `json:"source_environment"`
	TargetEnvironment string `json:"target_environment"`
	RecipeID          string `json:"recipe_id"`
}

// DeploymentView is the caller-facing projection of a record. Outcome is
// derived at read time; execution URL and failure detail obey the UI
// exposure policy.
type DeploymentView struct {
	ID             string                     `json:"id"`
	Service        string                     `json:"service"`
	Environment    string                     `json:"environment"`
	Version        string                     `json:"version"`
	RecipeID       string                     `json:"recipe_id"`
	RecipeRevision int                        `json:"recipe_revision,omitempty"`
	State          deploy.State               `json:"state"`
	Kind           deploy.Kind                `json:"deployment_kind"`
	Outcome        deploy.Outcome             `json:"outcome,omitempty"`
	RollbackOf     string                     `json:"rollback_of,omitempty"`
	SourceEnv      string                     `json:"source_environment,omitempty"`
	SupersededBy   string                     `json:"superseded_by,omitempty"`
	ExecutionURL   string                     `json:"execution_url,omitempty"`
	Failures       []deploy.NormalizedFailure `json:"failures,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// PolicySnapshot is the dry-run answer: what the guardrails would let
// this group do right now.
type PolicySnapshot struct {
	Allowed                      bool   `json:"allowed"`
	CurrentConcurrentDeployments int    `json:"current_concurrent_deployments"`
	MaxConcurrentDeployments     int    `json:"max_concurrent_deployments"`
	DeploymentsUsed              int    `json:"deployments_used"`
	DeploymentsRemaining         int    `json:"deployments_remaining"`
	DailyDeployQuota             int    `json:"daily_deploy_quota"`
	ArtifactCheck                string `json:"artifact_check"` // passed | skipped | not_configured | error
}

// Create runs the full roll-forward sequence: kill switch, group
// resolution, guardrail validation, ownership, daily quota, concurrency
// lock, engine trigger, persist.
func (s *DeploymentService) Create(ctx context.Context, principal deploy.Principal, req CreateDeploymentRequest, idempotencyKey string) (DeploymentView, error) {
	if err := s.guardrails.RequireIdempotencyKey(idempotencyKey); err != nil {
		return DeploymentView{}, err
	}
	group, recipe, err := s.admitDeploy(ctx, principal, req)
	if err != nil {
		return DeploymentView{}, err
	}
	if err := s.guardrails.EnforceConcurrencyLock(ctx, group.ID, group.Guardrails.EffectiveMaxConcurrent()); err != nil {
		return DeploymentView{}, err
	}
	intent := EngineIntent{
		Service:     req.Service,
		Environment: req.Environment,
		Version:     req.Version,
		Recipe:      recipe.ID,
		Pipeline:    recipe.DeployPipeline,
	}
	execution, err := s.engine.TriggerDeploy(ctx, intent, idempotencyKey)
	if err != nil {
		return DeploymentView{}, err
	}
	now := s.Clock().UTC()
	rec := deploy.Record{
		ID:             uuid.NewString(),
		Service:        req.Service,
		Environment:    req.Environment,
		Version:        req.Version,
		RecipeID:       recipe.ID,
		RecipeRevision: recipe.Revision,
		State:          deploy.StatePending,
		Kind:           deploy.KindRollForward,
		GroupID:        group.ID,
		ExecutionID:    execution.ID,
		ExecutionURL:   execution.URL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.deployments.Create(ctx, rec); err != nil {
		return DeploymentView{}, err
	}
	return s.view(ctx, rec), nil
}

// Validate is the dry run: every create-path check except the engine
// call and the persist, plus the artifact existence preflight.
func (s *DeploymentService) Validate(ctx context.Context, req CreateDeploymentRequest) (PolicySnapshot, error) {
	group, _, err := s.validateDeploy(ctx, req)
	if err != nil {
		return PolicySnapshot{}, err
	}
	maxConcurrent := group.Guardrails.EffectiveMaxConcurrent()
	current, err := s.deployments.CountActiveForGroup(ctx, group.ID)
	if err != nil {
		return PolicySnapshot{}, err
	}
	quota := group.Guardrails.EffectiveDeployQuota()
	usage, err := s.admission.DailyUsage(ctx, group.ID, admission.QuotaDeploy, quota)
	if err != nil {
		return PolicySnapshot{}, err
	}
	check, err := s.artifactPreflight(ctx, req.Service, req.Version)
	if err != nil {
		return PolicySnapshot{}, err
	}
	return PolicySnapshot{
		Allowed:                      current < maxConcurrent && usage.Remaining > 0,
		CurrentConcurrentDeployments: current,
		MaxConcurrentDeployments:     maxConcurrent,
		DeploymentsUsed:              usage.Used,
		DeploymentsRemaining:         usage.Remaining,
		DailyDeployQuota:             quota,
		ArtifactCheck:                check,
	}, nil
}

// artifactPreflight probes the artifact store when a checker is
// configured. Absence is authoritative and fails. Missing credentials
// skip the check; a probe failure is reported as "error" so the caller
// can tell an unverified artifact from an unverifiable one.
func (s *DeploymentService) artifactPreflight(ctx context.Context, service, version string) (string, error) {
	if s.artifacts == nil {
		return "not_configured", nil
	}
	reg, err := s.builds.Get(ctx, service, version)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return "skipped", nil
		}
		return "", err
	}
	probe, err := s.artifacts.Exists(ctx, reg.ArtifactRef)
	if err != nil {
		log.Printf("artifact preflight error for %s@%s: %s", service, version, deploy.Redact(err.Error()))
		return "error", nil
	}
	switch probe {
	case ArtifactMissing:
		return "", deploy.ErrArtifactNotFound(deploy.Redact(reg.ArtifactRef))
	case ArtifactNoCredentials:
		return "skipped", nil
	}
	return "passed", nil
}

// admitDeploy is validateDeploy plus the ownership check and daily-quota
// consumption. Ownership runs before the quota so a denied actor does
// not burn the group's budget.
func (s *DeploymentService) admitDeploy(ctx context.Context, principal deploy.Principal, req CreateDeploymentRequest) (deploy.DeliveryGroup, deploy.Recipe, error) {
	group, recipe, err := s.validateDeploy(ctx, req)
	if err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.guardrails.EnforceOwnership(principal, group); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.admission.CheckDaily(ctx, group.ID, admission.QuotaDeploy, group.Guardrails.EffectiveDeployQuota()); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	return group, recipe, nil
}

func (s *DeploymentService) validateDeploy(ctx context.Context, req CreateDeploymentRequest) (deploy.DeliveryGroup, deploy.Recipe, error) {
	if err := s.guardrails.RequireMutationsEnabled(); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if req.Service == "" || req.Environment == "" || req.Version == "" {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrInvalidRequest("service, environment, and version are required")
	}
	if req.RecipeID == "" {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrRecipeIDRequired()
	}
	if err := s.guardrails.ValidateService(ctx, req.Service); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	group, err := s.groups.GroupForService(ctx, req.Service)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrServiceNotInGroup(req.Service)
		}
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.guardrails.ValidateEnvironment(req.Environment, group); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.guardrails.ValidateVersion(req.Version); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	registered, err := s.builds.Exists(ctx, req.Service, req.Version)
	if err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if !registered {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrVersionNotFound(req.Service, req.Version)
	}
	recipe, err := s.recipes.Get(ctx, req.RecipeID)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrRecipeNotFound(req.RecipeID)
		}
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.guardrails.ValidateRecipeCompatibility(recipe, group, req.Service); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	return group, recipe, nil
}

// Get returns one record, refreshing it from the engine first when it is
// still in flight.
func (s *DeploymentService) Get(ctx context.Context, id string) (DeploymentView, error) {
	rec, err := s.getFresh(ctx, id)
	if err != nil {
		return DeploymentView{}, err
	}
	return s.view(ctx, rec), nil
}

// Failures returns the normalized failure list of one record.
func (s *DeploymentService) Failures(ctx context.Context, id string) ([]deploy.NormalizedFailure, error) {
	rec, err := s.getFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	failures := rec.Failures
	if failures == nil {
		failures = []deploy.NormalizedFailure{}
	}
	if !s.runtime.UIExposure().ShowFailureDetail {
		failures = stripDetail(failures)
	}
	return failures, nil
}

func (s *DeploymentService) getFresh(ctx context.Context, id string) (deploy.Record, error) {
	rec, err := s.deployments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.Record{}, deploy.ErrRecordNotFound()
		}
		return deploy.Record{}, err
	}
	if rec.State.Terminal() || rec.ExecutionID == "" {
		return rec, nil
	}
	return s.refresh(ctx, rec), nil
}

// refresh polls the engine once and persists any state change. Engine
// trouble on a read path is logged and the stale record returned; reads
// must not fail because the engine is down.
func (s *DeploymentService) refresh(ctx context.Context, rec deploy.Record) deploy.Record {
	status, err := s.engine.GetExecution(ctx, rec.ExecutionID)
	if err != nil {
		log.Printf("refresh of deployment %s skipped: %s", rec.ID, deploy.Redact(err.Error()))
		return rec
	}
	state, ok := deploy.MapEngineState(status.State)
	if !ok {
		log.Printf("refresh of deployment %s: unmapped engine state %q", rec.ID, deploy.Redact(status.State))
		return rec
	}
	changed := state != rec.State
	rec.State = state
	if status.URL != "" {
		rec.ExecutionURL = status.URL
	}
	if len(status.Failures) > 0 {
		rec.Failures = deploy.NormalizeFailures(status.Failures)
		changed = true
	}
	if !changed {
		return rec
	}
	rec.UpdatedAt = s.Clock().UTC()
	if err := s.deployments.Update(ctx, rec); err != nil {
		log.Printf("persisting refresh of deployment %s failed: %v", rec.ID, err)
	}
	if rec.Kind == deploy.KindRollback && rec.State == deploy.StateSucceeded && rec.RollbackOf != "" {
		s.markRolledBack(ctx, rec.RollbackOf, rec.ID)
	}
	return rec
}

// markRolledBack transitions the rollback target once the rollback run
// has succeeded.
func (s *DeploymentService) markRolledBack(ctx context.Context, targetID, rollbackID string) {
	target, err := s.deployments.Get(ctx, targetID)
	if err != nil {
		log.Printf("rollback target %s not loadable: %v", targetID, err)
		return
	}
	if target.State == deploy.StateRolledBack {
		return
	}
	target.State = deploy.StateRolledBack
	target.SupersededBy = rollbackID
	target.UpdatedAt = s.Clock().UTC()
	if err := s.deployments.Update(ctx, target); err != nil {
		log.Printf("marking deployment %s rolled back failed: %v", targetID, err)
	}
}

// List returns records newest first, optionally filtered by service and
// state.
func (s *DeploymentService) List(ctx context.Context, service, state string, limit int) ([]DeploymentView, error) {
	records, err := s.deployments.List(ctx, service, state, limit)
	if err != nil {
		return nil, err
	}
	latest := map[string]string{}
	views := make([]DeploymentView, 0, len(records))
	for _, rec := range records {
		key := rec.Service + "/" + rec.Environment
		if _, ok := latest[key]; !ok {
			id, err := s.deployments.LatestSuccessID(ctx, rec.Service, rec.Environment)
			if err != nil {
				return nil, err
			}
			latest[key] = id
		}
		views = append(views, s.viewWithLatest(rec, latest[key]))
	}
	return views, nil
}

// Rollback creates a ROLLBACK deployment pinned to the most recent
// successful non-rollback version before the target.
func (s *DeploymentService) Rollback(ctx context.Context, principal deploy.Principal, targetID, idempotencyKey string) (DeploymentView, error) {
	if err := s.guardrails.RequireIdempotencyKey(idempotencyKey); err != nil {
		return DeploymentView{}, err
	}
	if err := s.guardrails.RequireMutationsEnabled(); err != nil {
		return DeploymentView{}, err
	}
	target, err := s.deployments.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return DeploymentView{}, deploy.ErrRecordNotFound()
		}
		return DeploymentView{}, err
	}
	group, err := s.groups.GroupForService(ctx, target.Service)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return DeploymentView{}, deploy.ErrServiceNotInGroup(target.Service)
		}
		return DeploymentView{}, err
	}
	if err := s.guardrails.EnforceOwnership(principal, group); err != nil {
		return DeploymentView{}, err
	}
	if err := s.guardrails.ValidateEnvironment(target.Environment, group); err != nil {
		return DeploymentView{}, err
	}
	if target.Kind == deploy.KindRollback {
		return DeploymentView{}, deploy.ErrRollbackOfRollback()
	}
	if err := s.admission.CheckDaily(ctx, group.ID, admission.QuotaRollback, group.Guardrails.EffectiveRollbackQuota()); err != nil {
		return DeploymentView{}, err
	}
	prior, err := s.priorSuccess(ctx, target)
	if err != nil {
		return DeploymentView{}, err
	}
	recipe, err := s.recipes.Get(ctx, target.RecipeID)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return DeploymentView{}, deploy.ErrRecipeNotFound(target.RecipeID)
		}
		return DeploymentView{}, err
	}
	if err := s.guardrails.EnforceConcurrencyLock(ctx, group.ID, group.Guardrails.EffectiveMaxConcurrent()); err != nil {
		return DeploymentView{}, err
	}
	intent := EngineIntent{
		Service:     target.Service,
		Environment: target.Environment,
		Version:     prior.Version,
		Recipe:      recipe.ID,
		Pipeline:    recipe.RollbackPipeline,
	}
	execution, err := s.engine.TriggerRollback(ctx, intent, idempotencyKey)
	if err != nil {
		return DeploymentView{}, err
	}
	now := s.Clock().UTC()
	rec := deploy.Record{
		ID:             uuid.NewString(),
		Service:        target.Service,
		Environment:    target.Environment,
		Version:        prior.Version,
		RecipeID:       recipe.ID,
		RecipeRevision: recipe.Revision,
		State:          deploy.StatePending,
		Kind:           deploy.KindRollback,
		RollbackOf:     target.ID,
		GroupID:        group.ID,
		ExecutionID:    execution.ID,
		ExecutionURL:   execution.URL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.deployments.Create(ctx, rec); err != nil {
		return DeploymentView{}, err
	}
	return s.view(ctx, rec), nil
}

// priorSuccess walks (service, environment) history strictly before the
// target's creation and picks the most recent SUCCEEDED non-rollback
// record. FAILED and rollback records are skipped.
func (s *DeploymentService) priorSuccess(ctx context.Context, target deploy.Record) (deploy.Record, error) {
	history, err := s.deployments.ListByServiceEnv(ctx, target.Service, target.Environment)
	if err != nil {
		return deploy.Record{}, err
	}
	var prior *deploy.Record
	for i := range history {
		rec := history[i]
		if !rec.CreatedAt.Before(target.CreatedAt) || rec.ID == target.ID {
			continue
		}
		if rec.State != deploy.StateSucceeded || rec.Kind == deploy.KindRollback {
			continue
		}
		if prior == nil || rec.CreatedAt.After(prior.CreatedAt) {
			prior = &rec
		}
	}
	if prior == nil {
		return deploy.Record{}, deploy.ErrNoPriorSuccessfulVersion(target.Service, target.Environment)
	}
	return *prior, nil
}

// Promote moves an already-successful (service, version) from a source
// environment to the next environment in the group's promotion order.
func (s *DeploymentService) Promote(ctx context.Context, principal deploy.Principal, req PromotionRequest, idempotencyKey string) (DeploymentView, error) {
	if err := s.guardrails.RequireIdempotencyKey(idempotencyKey); err != nil {
		return DeploymentView{}, err
	}
	group, recipe, err := s.validatePromotion(ctx, req)
	if err != nil {
		return DeploymentView{}, err
	}
	if err := s.guardrails.EnforceOwnership(principal, group); err != nil {
		return DeploymentView{}, err
	}
	if err := s.admission.CheckDaily(ctx, group.ID, admission.QuotaDeploy, group.Guardrails.EffectiveDeployQuota()); err != nil {
		return DeploymentView{}, err
	}
	if err := s.guardrails.EnforceConcurrencyLock(ctx, group.ID, group.Guardrails.EffectiveMaxConcurrent()); err != nil {
		return DeploymentView{}, err
	}
	intent := EngineIntent{
		Service:     req.Service,
		Environment: req.TargetEnvironment,
		Version:     req.Version,
		Recipe:      recipe.ID,
		Pipeline:    recipe.DeployPipeline,
	}
	execution, err := s.engine.TriggerDeploy(ctx, intent, idempotencyKey)
	if err != nil {
		return DeploymentView{}, err
	}
	now := s.Clock().UTC()
	rec := deploy.Record{
		ID:             uuid.NewString(),
		Service:        req.Service,
		Environment:    req.TargetEnvironment,
		Version:        req.Version,
		RecipeID:       recipe.ID,
		RecipeRevision: recipe.Revision,
		State:          deploy.StatePending,
		Kind:           deploy.KindPromote,
		SourceEnv:      req.SourceEnvironment,
		GroupID:        group.ID,
		ExecutionID:    execution.ID,
		ExecutionURL:   execution.URL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.deployments.Create(ctx, rec); err != nil {
		return DeploymentView{}, err
	}
	return s.view(ctx, rec), nil
}

// ValidatePromotion is the promotion dry run.
func (s *DeploymentService) ValidatePromotion(ctx context.Context, req PromotionRequest) (PolicySnapshot, error) {
	group, _, err := s.validatePromotion(ctx, req)
	if err != nil {
		return PolicySnapshot{}, err
	}
	maxConcurrent := group.Guardrails.EffectiveMaxConcurrent()
	current, err := s.deployments.CountActiveForGroup(ctx, group.ID)
	if err != nil {
		return PolicySnapshot{}, err
	}
	quota := group.Guardrails.EffectiveDeployQuota()
	usage, err := s.admission.DailyUsage(ctx, group.ID, admission.QuotaDeploy, quota)
	if err != nil {
		return PolicySnapshot{}, err
	}
	return PolicySnapshot{
		Allowed:                      current < maxConcurrent && usage.Remaining > 0,
		CurrentConcurrentDeployments: current,
		MaxConcurrentDeployments:     maxConcurrent,
		DeploymentsUsed:              usage.Used,
		DeploymentsRemaining:         usage.Remaining,
		DailyDeployQuota:             quota,
		ArtifactCheck:                "not_configured",
	}, nil
}

func (s *DeploymentService) validatePromotion(ctx context.Context, req PromotionRequest) (deploy.DeliveryGroup, deploy.Recipe, error) {
	if err := s.guardrails.RequireMutationsEnabled(); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if req.Service == "" || req.Version == "" || req.SourceEnvironment == "" || req.TargetEnvironment == "" {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrInvalidRequest("service, version, source_environment, and target_environment are required")
	}
	if req.RecipeID == "" {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrRecipeIDRequired()
	}
	if err := s.guardrails.ValidateService(ctx, req.Service); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	group, err := s.groups.GroupForService(ctx, req.Service)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrServiceNotInGroup(req.Service)
		}
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if _, ok := group.Environment(req.SourceEnvironment); !ok {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrEnvironmentNotAllowed(req.SourceEnvironment)
	}
	if err := s.guardrails.ValidateEnvironment(req.TargetEnvironment, group); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.guardrails.ValidateVersion(req.Version); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	eligible, err := s.versionSucceededIn(ctx, req.Service, req.SourceEnvironment, req.Version)
	if err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if !eligible {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrPromotionVersionIneligible(req.Service, req.Version, req.SourceEnvironment)
	}
	if err := s.checkPromotionPath(group, req.SourceEnvironment, req.TargetEnvironment); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	recipe, err := s.recipes.Get(ctx, req.RecipeID)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return deploy.DeliveryGroup{}, deploy.Recipe{}, deploy.ErrRecipeNotFound(req.RecipeID)
		}
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	if err := s.guardrails.ValidateRecipeCompatibility(recipe, group, req.Service); err != nil {
		return deploy.DeliveryGroup{}, deploy.Recipe{}, err
	}
	return group, recipe, nil
}

func (s *DeploymentService) versionSucceededIn(ctx context.Context, service, environment, version string) (bool, error) {
	history, err := s.deployments.ListByServiceEnv(ctx, service, environment)
	if err != nil {
		return false, err
	}
	for _, rec := range history {
		if rec.Version == version && rec.State == deploy.StateSucceeded {
			return true, nil
		}
	}
	return false, nil
}

// checkPromotionPath requires the target to be exactly the next rank
// after the source. With jumps allowed any strictly later rank passes.
func (s *DeploymentService) checkPromotionPath(group deploy.DeliveryGroup, source, target string) error {
	srcRank := group.PromotionRank(source)
	tgtRank := group.PromotionRank(target)
	if srcRank < 0 || tgtRank < 0 || tgtRank <= srcRank {
		return deploy.ErrPromotionPathNotAllowed(source, target)
	}
	if s.allowJumps {
		return nil
	}
	next := -1
	for _, env := range group.Environments {
		rank := group.PromotionRank(env.Name)
		if rank <= srcRank {
			continue
		}
		if next == -1 || rank < next {
			next = rank
		}
	}
	if tgtRank != next {
		return deploy.ErrPromotionPathNotAllowed(source, target)
	}
	return nil
}

func (s *DeploymentService) view(ctx context.Context, rec deploy.Record) DeploymentView {
	latest, err := s.deployments.LatestSuccessID(ctx, rec.Service, rec.Environment)
	if err != nil {
		log.Printf("latest-success lookup for %s/%s failed: %v", rec.Service, rec.Environment, err)
	}
	return s.viewWithLatest(rec, latest)
}

func (s *DeploymentService) viewWithLatest(rec deploy.Record, latestSuccessID string) DeploymentView {
	view := DeploymentView{
		ID:             rec.ID,
		Service:        rec.Service,
		Environment:    rec.Environment,
		Version:        rec.Version,
		RecipeID:       rec.RecipeID,
		RecipeRevision: rec.RecipeRevision,
		State:          rec.State,
		Kind:           rec.Kind,
		RollbackOf:     rec.RollbackOf,
		SourceEnv:      rec.SourceEnv,
		SupersededBy:   rec.SupersededBy,
		Failures:       rec.Failures,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if outcome, ok := deploy.DeriveOutcome(rec, latestSuccessID); ok {
		view.Outcome = outcome
	}
	exposure := s.runtime.UIExposure()
	if exposure.ShowExecutionURL {
		view.ExecutionURL = rec.ExecutionURL
	}
	if !exposure.ShowFailureDetail {
		view.Failures = stripDetail(view.Failures)
	}
	return view
}

func stripDetail(failures []deploy.NormalizedFailure) []deploy.NormalizedFailure {
	if len(failures) == 0 {
		return failures
	}
	out := make([]deploy.NormalizedFailure, len(failures))
	for i, f := range failures {
		f.Detail = ""
		out[i] = f
	}
	return out
}
