package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"drydock/internal/domain/deploy"
	"drydock/internal/usecase"
)

type DeploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

func (r *DeploymentRepository) Create(ctx context.Context, rec deploy.Record) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := deploymentModelFromDomain(rec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *DeploymentRepository) Get(ctx context.Context, id string) (deploy.Record, error) {
	if r.db == nil {
		return deploy.Record{}, errDBUnavailable
	}
	var model DeploymentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return deploy.Record{}, deploy.ErrNotFound
		}
		return deploy.Record{}, err
	}
	return deploymentModelToDomain(model)
}

func (r *DeploymentRepository) Update(ctx context.Context, rec deploy.Record) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model, err := deploymentModelFromDomain(rec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

// List returns newest-first records, optionally filtered by service and
// state.
func (r *DeploymentRepository) List(ctx context.Context, service, state string, limit int) ([]deploy.Record, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&DeploymentModel{}).Order("created_at DESC").Limit(limit)
	if service != "" {
		query = query.Where("service = ?", service)
	}
	if state != "" {
		query = query.Where("state = ?", state)
	}
	var models []DeploymentModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return deploymentModelsToDomain(models)
}

// ListByServiceEnv returns the full history for one (service,
// environment), oldest first, so callers can walk it for rollback
// selection.
func (r *DeploymentRepository) ListByServiceEnv(ctx context.Context, service, environment string) ([]deploy.Record, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []DeploymentModel
	err := r.db.WithContext(ctx).
		Where("service = ? AND environment = ?", service, environment).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return deploymentModelsToDomain(models)
}

// CountActiveForGroup counts ACTIVE and IN_PROGRESS deployments scoped
// to one delivery group. Used by the concurrency lock.
func (r *DeploymentRepository) CountActiveForGroup(ctx context.Context, groupID string) (int, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&DeploymentModel{}).
		Where("group_id = ? AND state IN ?", groupID, []string{string(deploy.StateActive), string(deploy.StateInProgress)}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// LatestSuccessID returns the id of the most recent SUCCEEDED record for
// a (service, environment), or "" when none exists. Feeds the derived
// SUPERSEDED outcome.
func (r *DeploymentRepository) LatestSuccessID(ctx context.Context, service, environment string) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var model DeploymentModel
	err := r.db.WithContext(ctx).
		Where("service = ? AND environment = ? AND state = ?", service, environment, string(deploy.StateSucceeded)).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.ID, nil
}

func deploymentModelFromDomain(rec deploy.Record) (DeploymentModel, error) {
	var failuresJSON []byte
	if len(rec.Failures) > 0 {
		raw, err := json.Marshal(rec.Failures)
		if err != nil {
			return DeploymentModel{}, err
		}
		failuresJSON = raw
	}
	return DeploymentModel{
		ID:             rec.ID,
		Service:        rec.Service,
		Environment:    rec.Environment,
		Version:        rec.Version,
		RecipeID:       rec.RecipeID,
		RecipeRevision: rec.RecipeRevision,
		State:          string(rec.State),
		Kind:           string(rec.Kind),
		RollbackOf:     rec.RollbackOf,
		SourceEnv:      rec.SourceEnv,
		SupersededBy:   rec.SupersededBy,
		GroupID:        rec.GroupID,
		ExecutionID:    rec.ExecutionID,
		ExecutionURL:   rec.ExecutionURL,
		FailuresJSON:   failuresJSON,
		CreatedAt:      rec.CreatedAt.UTC().Truncate(time.Microsecond),
		UpdatedAt:      rec.UpdatedAt.UTC().Truncate(time.Microsecond),
	}, nil
}

func deploymentModelToDomain(model DeploymentModel) (deploy.Record, error) {
	var failures []deploy.NormalizedFailure
	if len(model.FailuresJSON) > 0 {
		if err := json.Unmarshal(model.FailuresJSON, &failures); err != nil {
			return deploy.Record{}, err
		}
	}
	return deploy.Record{
		ID:             model.ID,
		Service:        model.Service,
		Environment:    model.Environment,
		Version:        model.Version,
		RecipeID:       model.RecipeID,
		RecipeRevision: model.RecipeRevision,
		State:          deploy.State(model.State),
		Kind:           deploy.Kind(model.Kind),
		RollbackOf:     model.RollbackOf,
		SourceEnv:      model.SourceEnv,
		SupersededBy:   model.SupersededBy,
		GroupID:        model.GroupID,
		ExecutionID:    model.ExecutionID,
		ExecutionURL:   model.ExecutionURL,
		Failures:       failures,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}, nil
}

func deploymentModelsToDomain(models []DeploymentModel) ([]deploy.Record, error) {
	out := make([]deploy.Record, 0, len(models))
	for _, m := range models {
		rec, err := deploymentModelToDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ usecase.DeploymentRepository = (*DeploymentRepository)(nil)
