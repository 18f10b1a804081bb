package deploy

import (
	"strings"
	"time"
)

// State is the lifecycle state of a deployment record.
type State string

const (
	StatePending    State = "PENDING"
	StateActive     State = "ACTIVE"
	StateInProgress State = "IN_PROGRESS"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
	StateCanceled   State = "CANCELED"
	StateRolledBack State = "ROLLED_BACK"
)

// Terminal reports whether a record in this state can still change from
// engine refreshes.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateRolledBack:
		return true
	}
	return false
}

// Kind distinguishes how a deployment was initiated.
type Kind string

const (
	KindRollForward Kind = "ROLL_FORWARD"
	KindRollback    Kind = "ROLLBACK"
	KindPromote     Kind = "PROMOTE"
)

// Outcome is the derived, read-time result of a deployment.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "SUCCEEDED"
	OutcomeFailed     Outcome = "FAILED"
	OutcomeRolledBack Outcome = "ROLLED_BACK"
	OutcomeCanceled   Outcome = "CANCELED"
	OutcomeSuperseded Outcome = "SUPERSEDED"
)

// EnvironmentType separates production from everything else.
type EnvironmentType string

const (
	EnvNonProd EnvironmentType = "non_prod"
	EnvProd    EnvironmentType = "prod"
)

// Record is a single deployment attempt. Created on submission, mutated
// only by engine refresh and by a later rollback/promotion that
// supersedes it.
type Record struct {
	ID             string
	Service        string
	Environment    string
	Version        string
	RecipeID       string
	RecipeRevision int
	State          State
	Kind           Kind
	RollbackOf     string // target record id, back-reference only
	SourceEnv      string // set for PROMOTE
	SupersededBy   string
	GroupID        string
	ExecutionID    string
	ExecutionURL   string
	Failures       []NormalizedFailure
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Guardrails are the per-group resource limits. Zero or negative values
// fall back to 1.
type Guardrails struct {
	MaxConcurrentDeployments int
	DailyDeployQuota         int
	DailyRollbackQuota       int
}

func (g Guardrails) EffectiveMaxConcurrent() int { return atLeastOne(g.MaxConcurrentDeployments) }
func (g Guardrails) EffectiveDeployQuota() int   { return atLeastOne(g.DailyDeployQuota) }
func (g Guardrails) EffectiveRollbackQuota() int { return atLeastOne(g.DailyRollbackQuota) }

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// DeliveryGroup is the tenant-like scope sharing guardrails, environments,
// recipes, and quota/concurrency limits.
type DeliveryGroup struct {
	ID           string
	Services     []string
	Environments []Environment // order implies promotion order
	Recipes      []string
	Guardrails   Guardrails
	Owners       string // comma-separated emails, matched case-insensitively
}

// Owned reports whether the group restricts deployments to a named
// owner list. An empty list leaves the group open to any authorized
// actor.
func (g DeliveryGroup) Owned() bool {
	for _, owner := range strings.Split(g.Owners, ",") {
		if strings.TrimSpace(owner) != "" {
			return true
		}
	}
	return false
}

// IsOwner matches an actor email against the owner list, ignoring case
// and surrounding whitespace.
func (g DeliveryGroup) IsOwner(email string) bool {
	if email == "" {
		return false
	}
	for _, owner := range strings.Split(g.Owners, ",") {
		if strings.EqualFold(strings.TrimSpace(owner), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func (g DeliveryGroup) HasService(name string) bool {
	for _, s := range g.Services {
		if s == name {
			return true
		}
	}
	return false
}

func (g DeliveryGroup) HasRecipe(id string) bool {
	for _, r := range g.Recipes {
		if r == id {
			return true
		}
	}
	return false
}

func (g DeliveryGroup) Environment(name string) (Environment, bool) {
	for _, e := range g.Environments {
		if e.Name == name {
			return e, true
		}
	}
	return Environment{}, false
}

// PromotionRank resolves the effective promotion position of an
// environment: the explicit PromotionOrder when set, otherwise the
// positional index in the group's environment sequence. Returns -1 when
// the environment is not part of the group.
func (g DeliveryGroup) PromotionRank(name string) int {
	for i, e := range g.Environments {
		if e.Name != name {
			continue
		}
		if e.PromotionOrder != nil {
			return *e.PromotionOrder
		}
		return i
	}
	return -1
}

// Environment is scoped to a delivery group.
type Environment struct {
	ID             string
	Name           string
	Type           EnvironmentType
	PromotionOrder *int
	Enabled        bool
}

// RecipeStatus marks whether a recipe may still be used for new deploys.
type RecipeStatus string

const (
	RecipeActive     RecipeStatus = "active"
	RecipeDeprecated RecipeStatus = "deprecated"
)

// Recipe names a deploy/rollback pipeline pair.
type Recipe struct {
	ID               string
	DeployPipeline   string
	RollbackPipeline string
	Status           RecipeStatus
	Revision         int
	Summary          string
}

// DeriveOutcome computes the effective outcome of a record at read time.
// latestSuccessID is the id of the most recent SUCCEEDED record for the
// same (service, environment); a SUCCEEDED record that is not the latest
// success reads as SUPERSEDED. Non-terminal records have no outcome yet.
func DeriveOutcome(r Record, latestSuccessID string) (Outcome, bool) {
	switch r.State {
	case StateSucceeded:
		if latestSuccessID != "" && r.ID != latestSuccessID {
			return OutcomeSuperseded, true
		}
		return OutcomeSucceeded, true
	case StateFailed:
		return OutcomeFailed, true
	case StateCanceled:
		return OutcomeCanceled, true
	case StateRolledBack:
		return OutcomeRolledBack, true
	}
	return "", false
}
