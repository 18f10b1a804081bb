package db

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"gorm.io/gorm"

	"drydock/internal/domain/deploy"
	"drydock/internal/usecase"
)

type DeliveryGroupRepository struct {
	db *gorm.DB
}

func NewDeliveryGroupRepository(db *gorm.DB) *DeliveryGroupRepository {
	return &DeliveryGroupRepository{db: db}
}

func (r *DeliveryGroupRepository) Get(ctx context.Context, id string) (deploy.DeliveryGroup, error) {
	if r.db == nil {
		return deploy.DeliveryGroup{}, errDBUnavailable
	}
	var model DeliveryGroupModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return deploy.DeliveryGroup{}, deploy.ErrNotFound
		}
		return deploy.DeliveryGroup{}, err
	}
	return r.toDomain(ctx, model)
}

// GroupForService resolves the delivery group a service belongs to. A
// service belongs to at most one relevant group per deployment decision.
func (r *DeliveryGroupRepository) GroupForService(ctx context.Context, service string) (deploy.DeliveryGroup, error) {
	if r.db == nil {
		return deploy.DeliveryGroup{}, errDBUnavailable
	}
	var models []DeliveryGroupModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return deploy.DeliveryGroup{}, err
	}
	for _, model := range models {
		var services []string
		if err := json.Unmarshal(model.ServicesJSON, &services); err != nil {
			continue
		}
		for _, s := range services {
			if s == service {
				return r.toDomain(ctx, model)
			}
		}
	}
	return deploy.DeliveryGroup{}, deploy.ErrNotFound
}

// ServiceExists reports whether any delivery group claims the service;
// the group tables double as the service registry.
func (r *DeliveryGroupRepository) ServiceExists(ctx context.Context, service string) (bool, error) {
	_, err := r.GroupForService(ctx, service)
	if errors.Is(err, deploy.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *DeliveryGroupRepository) toDomain(ctx context.Context, model DeliveryGroupModel) (deploy.DeliveryGroup, error) {
	var envModels []EnvironmentModel
	err := r.db.WithContext(ctx).
		Where("group_id = ?", model.ID).
		Order("position ASC").
		Find(&envModels).Error
	if err != nil {
		return deploy.DeliveryGroup{}, err
	}
	sort.SliceStable(envModels, func(i, j int) bool { return envModels[i].Position < envModels[j].Position })
	envs := make([]deploy.Environment, 0, len(envModels))
	for _, e := range envModels {
		envs = append(envs, deploy.Environment{
			ID:             e.ID,
			Name:           e.Name,
			Type:           deploy.EnvironmentType(e.Type),
			PromotionOrder: e.PromotionOrder,
			Enabled:        e.Enabled,
		})
	}
	return deploy.DeliveryGroup{
		ID:           model.ID,
		Services:     unmarshalList(model.ServicesJSON),
		Environments: envs,
		Recipes:      unmarshalList(model.RecipesJSON),
		Guardrails: deploy.Guardrails{
			MaxConcurrentDeployments: model.MaxConcurrentDeployments,
			DailyDeployQuota:         model.DailyDeployQuota,
			DailyRollbackQuota:       model.DailyRollbackQuota,
		},
		Owners: model.Owners,
	}, nil
}

type RecipeRepository struct {
	db *gorm.DB
}

func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

func (r *RecipeRepository) Get(ctx context.Context, id string) (deploy.Recipe, error) {
	if r.db == nil {
		return deploy.Recipe{}, errDBUnavailable
	}
	var model RecipeModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return deploy.Recipe{}, deploy.ErrNotFound
		}
		return deploy.Recipe{}, err
	}
	return deploy.Recipe{
		ID:               model.ID,
		DeployPipeline:   model.DeployPipeline,
		RollbackPipeline: model.RollbackPipeline,
		Status:           deploy.RecipeStatus(model.Status),
		Revision:         model.Revision,
		Summary:          model.Summary,
	}, nil
}

var (
	_ usecase.GroupRepository  = (*DeliveryGroupRepository)(nil)
	_ usecase.RecipeRepository = (*RecipeRepository)(nil)
)
