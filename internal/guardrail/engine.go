// Package guardrail is the policy engine: a collection of independent
// validators that fail with a classified error on the first violated
// rule. Success is silent.
package guardrail

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"drydock/internal/config"
	"drydock/internal/domain/deploy"
)

var (
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)
	sha256Pattern  = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ServiceRegistry answers whether a service name is known at all.
type ServiceRegistry interface {
	ServiceExists(ctx context.Context, name string) (bool, error)
}

// DeploymentCounter counts ACTIVE/IN_PROGRESS deployments per group.
type DeploymentCounter interface {
	CountActiveForGroup(ctx context.Context, groupID string) (int, error)
}

type Engine struct {
	registry ServiceRegistry
	counter  DeploymentCounter
	runtime  *config.Runtime

	maxArtifactBytes int64
	contentTypes     []string
	schemes          []string
	sources          []string
}

func NewEngine(cfg config.Config, runtime *config.Runtime, registry ServiceRegistry, counter DeploymentCounter) *Engine {
	return &Engine{
		registry:         registry,
		counter:          counter,
		runtime:          runtime,
		maxArtifactBytes: cfg.MaxArtifactBytes,
		contentTypes:     cfg.ArtifactContentTypes,
		schemes:          cfg.ArtifactSchemes,
		sources:          cfg.ArtifactSources,
	}
}

// RequireMutationsEnabled is the global kill switch check.
func (e *Engine) RequireMutationsEnabled() error {
	if !e.runtime.MutationsEnabled() {
		return deploy.ErrMutationsDisabled()
	}
	return nil
}

func (e *Engine) RequireIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return deploy.ErrIdempotencyKeyRequired()
	}
	return nil
}

func (e *Engine) ValidateService(ctx context.Context, name string) error {
	exists, err := e.registry.ServiceExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return deploy.ErrNotAllowlisted(name)
	}
	return nil
}

func (e *Engine) ValidateEnvironment(name string, group deploy.DeliveryGroup) error {
	env, ok := group.Environment(name)
	if !ok {
		return deploy.ErrEnvironmentNotAllowed(name)
	}
	if !env.Enabled {
		return deploy.ErrEnvironmentDisabled(name)
	}
	return nil
}

func (e *Engine) ValidateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return deploy.ErrInvalidRequest("version must be MAJOR.MINOR.PATCH with an optional prerelease")
	}
	return nil
}

func (e *Engine) ValidateArtifact(sizeBytes int64, sha256, contentType string) error {
	if sizeBytes <= 0 || sizeBytes > e.maxArtifactBytes {
		return deploy.ErrInvalidArtifact("artifact size is outside the allowed range")
	}
	if !sha256Pattern.MatchString(strings.ToLower(sha256)) {
		return deploy.ErrInvalidArtifact("sha256 must be 64 hex characters")
	}
	for _, allowed := range e.contentTypes {
		if contentType == allowed {
			return nil
		}
	}
	return deploy.ErrInvalidArtifact("content type is not allowed")
}

func (e *Engine) ValidateArtifactSource(artifactRef string) error {
	parsed, err := url.Parse(artifactRef)
	if err != nil || parsed.Scheme == "" {
		return deploy.ErrInvalidArtifact("artifact_ref must be a URI")
	}
	schemeOK := false
	for _, s := range e.schemes {
		if parsed.Scheme == s {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return deploy.ErrInvalidArtifact("artifact_ref scheme is not recognized")
	}
	if len(e.sources) == 0 {
		return nil
	}
	for _, prefix := range e.sources {
		if strings.HasPrefix(artifactRef, prefix) {
			return nil
		}
	}
	return deploy.ErrInvalidArtifact("artifact_ref is not from an allowed source")
}

// ValidateRecipeCompatibility runs the permission check and the
// compatibility check separately so callers can tell them apart: a
// recipe outside the group's allowlist is RECIPE_NOT_ALLOWED, a service
// outside the group is SERVICE_NOT_IN_DELIVERY_GROUP, and a permitted
// pairing with an inactive recipe is RECIPE_INCOMPATIBLE.
func (e *Engine) ValidateRecipeCompatibility(recipe deploy.Recipe, group deploy.DeliveryGroup, service string) error {
	if !group.HasRecipe(recipe.ID) {
		return deploy.ErrRecipeNotAllowed(recipe.ID)
	}
	if !group.HasService(service) {
		return deploy.ErrServiceNotInGroup(service)
	}
	if recipe.Status != deploy.RecipeActive {
		return deploy.ErrRecipeIncompatible(recipe.ID, service)
	}
	return nil
}

// EnforceOwnership restricts mutations on owner-listed groups to the
// listed owners. Unowned groups are open; admins always pass.
func (e *Engine) EnforceOwnership(principal deploy.Principal, group deploy.DeliveryGroup) error {
	if !group.Owned() {
		return nil
	}
	if principal.Role == deploy.RoleAdmin {
		return nil
	}
	if group.IsOwner(principal.Email) {
		return nil
	}
	return deploy.ErrNotGroupOwner(group.ID)
}

// EnforceConcurrencyLock is a read-then-decide check against the
// repository. There is a race window between the count and the insert;
// that is an accepted limitation for human/CI-triggered mutation rates.
func (e *Engine) EnforceConcurrencyLock(ctx context.Context, groupID string, maxConcurrent int) error {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	count, err := e.counter.CountActiveForGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if count >= maxConcurrent {
		return deploy.ErrConcurrencyLimitReached(groupID, maxConcurrent)
	}
	return nil
}
