package deploy

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
)

// FailureCause classifies who or what caused a rejected request.
type FailureCause string

const (
	CauseUserError    FailureCause = "USER_ERROR"
	CausePolicyChange FailureCause = "POLICY_CHANGE"
	CauseUnknown      FailureCause = "UNKNOWN"
)

// GovernanceError is a classified policy/guardrail failure. Every
// guardrail, admission, and orchestrator rejection is one of these so
// callers can map it to a stable envelope without inspecting free text.
type GovernanceError struct {
	Code         string
	Status       int
	Cause        FailureCause
	Message      string
	OperatorHint string
	Details      map[string]any
}

func (e *GovernanceError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

// AsGovernance unwraps a GovernanceError if err carries one.
func AsGovernance(err error) (*GovernanceError, bool) {
	var ge *GovernanceError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func newErr(code string, status int, cause FailureCause, message string) *GovernanceError {
	return &GovernanceError{Code: code, Status: status, Cause: cause, Message: message}
}

// 400 USER_ERROR
func ErrInvalidRequest(message string) *GovernanceError {
	return newErr("INVALID_REQUEST", http.StatusBadRequest, CauseUserError, message)
}

func ErrInvalidArtifact(message string) *GovernanceError {
	return newErr("INVALID_ARTIFACT", http.StatusBadRequest, CauseUserError, message)
}

func ErrVersionNotFound(service, version string) *GovernanceError {
	e := newErr("VERSION_NOT_FOUND", http.StatusBadRequest, CauseUserError,
		"no registered build for the requested version")
	e.Details = map[string]any{"service": service, "version": version}
	return e
}

func ErrRecipeIDRequired() *GovernanceError {
	return newErr("RECIPE_ID_REQUIRED", http.StatusBadRequest, CauseUserError, "recipe_id is required")
}

func ErrIdempotencyKeyRequired() *GovernanceError {
	return newErr("IDMP_KEY_REQUIRED", http.StatusBadRequest, CauseUserError, "Idempotency-Key is required")
}

func ErrRollbackOfRollback() *GovernanceError {
	return newErr("ROLLBACK_OF_ROLLBACK", http.StatusBadRequest, CauseUserError,
		"cannot roll back a rollback deployment")
}

// 400/403 POLICY_CHANGE
func ErrRecipeIncompatible(recipeID, service string) *GovernanceError {
	e := newErr("RECIPE_INCOMPATIBLE", http.StatusBadRequest, CausePolicyChange,
		"recipe is not compatible with this service")
	e.Details = map[string]any{"recipe_id": recipeID, "service": service}
	return e
}

func ErrServiceNotInGroup(service string) *GovernanceError {
	e := newErr("SERVICE_NOT_IN_DELIVERY_GROUP", http.StatusBadRequest, CausePolicyChange,
		"service is not assigned to the delivery group")
	e.Details = map[string]any{"service": service}
	return e
}

func ErrPromotionVersionIneligible(service, version, sourceEnv string) *GovernanceError {
	e := newErr("PROMOTION_VERSION_INELIGIBLE", http.StatusBadRequest, CausePolicyChange,
		"version has no successful deployment in the source environment")
	e.Details = map[string]any{"service": service, "version": version, "source_environment": sourceEnv}
	return e
}

func ErrPromotionPathNotAllowed(sourceEnv, targetEnv string) *GovernanceError {
	e := newErr("PROMOTION_PATH_NOT_ALLOWED", http.StatusForbidden, CausePolicyChange,
		"target environment is not the next step in the promotion order")
	e.Details = map[string]any{"source_environment": sourceEnv, "target_environment": targetEnv}
	return e
}

// 403 POLICY_CHANGE
func ErrRoleForbidden(role string) *GovernanceError {
	e := newErr("ROLE_FORBIDDEN", http.StatusForbidden, CausePolicyChange, "role does not permit this operation")
	e.Details = map[string]any{"role": role}
	return e
}

func ErrNotGroupOwner(groupID string) *GovernanceError {
	e := newErr("NOT_GROUP_OWNER", http.StatusForbidden, CausePolicyChange,
		"actor is not an owner of the delivery group")
	e.Details = map[string]any{"delivery_group_id": groupID}
	return e
}

func ErrNotAllowlisted(service string) *GovernanceError {
	e := newErr("NOT_ALLOWLISTED", http.StatusForbidden, CausePolicyChange, "service is not allowlisted")
	e.Details = map[string]any{"service": service}
	return e
}

func ErrRecipeNotAllowed(recipeID string) *GovernanceError {
	e := newErr("RECIPE_NOT_ALLOWED", http.StatusForbidden, CausePolicyChange,
		"recipe is not allowed for this delivery group")
	e.Details = map[string]any{"recipe_id": recipeID}
	return e
}

func ErrEnvironmentNotAllowed(env string) *GovernanceError {
	e := newErr("ENVIRONMENT_NOT_ALLOWED", http.StatusForbidden, CausePolicyChange,
		"environment is not allowed for this delivery group")
	e.Details = map[string]any{"environment": env}
	return e
}

func ErrEnvironmentDisabled(env string) *GovernanceError {
	e := newErr("ENVIRONMENT_DISABLED", http.StatusForbidden, CausePolicyChange, "environment is disabled")
	e.Details = map[string]any{"environment": env}
	return e
}

// 404
func ErrRecipeNotFound(recipeID string) *GovernanceError {
	e := newErr("RECIPE_NOT_FOUND", http.StatusNotFound, CauseUserError, "recipe not found")
	e.Details = map[string]any{"recipe_id": recipeID}
	return e
}

func ErrRecordNotFound() *GovernanceError {
	return newErr("NOT_FOUND", http.StatusNotFound, CauseUserError, "not found")
}

// 409 POLICY_CHANGE
func ErrConcurrencyLimitReached(groupID string, max int) *GovernanceError {
	e := newErr("CONCURRENCY_LIMIT_REACHED", http.StatusConflict, CausePolicyChange,
		"delivery group is at its concurrent deployment limit")
	e.Details = map[string]any{"delivery_group_id": groupID, "max_concurrent_deployments": max}
	return e
}

func ErrDeploymentLocked(groupID string) *GovernanceError {
	e := newErr("DEPLOYMENT_LOCKED", http.StatusConflict, CausePolicyChange,
		"another deployment is in progress for this delivery group")
	e.Details = map[string]any{"delivery_group_id": groupID}
	return e
}

func ErrBuildRegistrationConflict(service, version string) *GovernanceError {
	e := newErr("BUILD_REGISTRATION_CONFLICT", http.StatusConflict, CausePolicyChange,
		"a different build is already registered for this version")
	e.Details = map[string]any{"service": service, "version": version}
	return e
}

func ErrArtifactNotFound(ref string) *GovernanceError {
	e := newErr("ARTIFACT_NOT_FOUND", http.StatusConflict, CausePolicyChange,
		"artifact does not exist at the referenced location")
	e.Details = map[string]any{"artifact_ref": ref}
	return e
}

func ErrNoPriorSuccessfulVersion(service, env string) *GovernanceError {
	e := newErr("NO_PRIOR_SUCCESSFUL_VERSION", http.StatusConflict, CausePolicyChange,
		"no earlier successful deployment exists to roll back to")
	e.Details = map[string]any{"service": service, "environment": env}
	return e
}

// 429 POLICY_CHANGE
func ErrRateLimited() *GovernanceError {
	return newErr("RATE_LIMITED", http.StatusTooManyRequests, CausePolicyChange, "rate limit exceeded")
}

func ErrQuotaExceeded(scope, quota string) *GovernanceError {
	e := newErr("QUOTA_EXCEEDED", http.StatusTooManyRequests, CausePolicyChange, "daily quota exceeded")
	e.Details = map[string]any{"scope": scope, "quota": quota}
	return e
}

// 503 POLICY_CHANGE
func ErrMutationsDisabled() *GovernanceError {
	return newErr("MUTATIONS_DISABLED", http.StatusServiceUnavailable, CausePolicyChange,
		"mutations are temporarily disabled")
}

// 502 UNKNOWN. Detail text must already be redacted.
func ErrEngineUnavailable(hint string) *GovernanceError {
	e := newErr("ENGINE_UNAVAILABLE", http.StatusBadGateway, CauseUnknown,
		"deployment engine request failed")
	e.OperatorHint = hint
	return e
}

func ErrEngineUnauthorized(hint string) *GovernanceError {
	e := newErr("ENGINE_UNAUTHORIZED", http.StatusBadGateway, CauseUnknown,
		"deployment engine rejected our credentials")
	e.OperatorHint = hint
	return e
}
