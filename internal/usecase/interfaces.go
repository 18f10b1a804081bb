package usecase

import (
	"context"
	"time"

	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
)

// DeploymentRepository persists deployment records and answers the
// concurrency and supersession queries.
type DeploymentRepository interface {
	Create(ctx context.Context, rec deploy.Record) error
	Get(ctx context.Context, id string) (deploy.Record, error)
	Update(ctx context.Context, rec deploy.Record) error
	List(ctx context.Context, service, state string, limit int) ([]deploy.Record, error)
	ListByServiceEnv(ctx context.Context, service, environment string) ([]deploy.Record, error)
	CountActiveForGroup(ctx context.Context, groupID string) (int, error)
	LatestSuccessID(ctx context.Context, service, environment string) (string, error)
}

type GroupRepository interface {
	Get(ctx context.Context, id string) (deploy.DeliveryGroup, error)
	GroupForService(ctx context.Context, service string) (deploy.DeliveryGroup, error)
	ServiceExists(ctx context.Context, service string) (bool, error)
}

type RecipeRepository interface {
	Get(ctx context.Context, id string) (deploy.Recipe, error)
}

type BuildRepository interface {
	Create(ctx context.Context, reg builds.Registration) (bool, error)
	Get(ctx context.Context, service, version string) (builds.Registration, error)
	Exists(ctx context.Context, service, version string) (bool, error)
}

type CapabilityRepository interface {
	Create(ctx context.Context, cap builds.UploadCapability) error
	Get(ctx context.Context, token string) (builds.UploadCapability, error)
	Consume(ctx context.Context, token string, at time.Time) error
}

type PublisherRepository interface {
	List(ctx context.Context) ([]builds.Publisher, error)
	Get(ctx context.Context, name string) (builds.Publisher, error)
	Create(ctx context.Context, p builds.Publisher) error
	Delete(ctx context.Context, name string) error
}

// EngineIntent is what the control plane asks the execution engine to
// run.
type EngineIntent struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Recipe      string `json:"recipe"`
	Pipeline    string `json:"pipeline"`
}

// EngineExecution identifies a triggered run.
type EngineExecution struct {
	ID  string
	URL string
}

// EngineStatus is the polled state of a run; State uses the engine's
// raw vocabulary.
type EngineStatus struct {
	State    string
	URL      string
	Failures []deploy.RawFailure
}

// EngineAdapter is the external deployment-execution engine. Failures
// surface as ENGINE_* governance errors with redacted detail.
type EngineAdapter interface {
	TriggerDeploy(ctx context.Context, intent EngineIntent, idempotencyKey string) (EngineExecution, error)
	TriggerRollback(ctx context.Context, intent EngineIntent, idempotencyKey string) (EngineExecution, error)
	GetExecution(ctx context.Context, executionID string) (EngineStatus, error)
}

// ArtifactProbe is the outcome of an artifact existence check. Missing
// credentials are not a failure; the preflight skips instead.
type ArtifactProbe int

const (
	ArtifactExists ArtifactProbe = iota
	ArtifactMissing
	ArtifactNoCredentials
)

type ArtifactChecker interface {
	Exists(ctx context.Context, artifactRef string) (ArtifactProbe, error)
}

// AuditSink records governance actions. Write failures must never block
// the governed operation.
type AuditSink interface {
	Append(ctx context.Context, event deploy.AuditEvent) error
}
