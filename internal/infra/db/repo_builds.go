package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
	"drydock/internal/usecase"
)

type BuildRepository struct {
	db *gorm.DB
}

func NewBuildRepository(db *gorm.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// Create inserts a registration; inserting a second registration for the
// same (service, version) reports created=false so the caller can run
// its conflict comparison.
func (r *BuildRepository) Create(ctx context.Context, reg builds.Registration) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	model := buildModelFromDomain(reg)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service"}, {Name: "version"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *BuildRepository) Get(ctx context.Context, service, version string) (builds.Registration, error) {
	if r.db == nil {
		return builds.Registration{}, errDBUnavailable
	}
	var model BuildModel
	err := r.db.WithContext(ctx).
		Where("service = ? AND version = ?", service, version).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return builds.Registration{}, deploy.ErrNotFound
		}
		return builds.Registration{}, err
	}
	return buildModelToDomain(model), nil
}

func (r *BuildRepository) Exists(ctx context.Context, service, version string) (bool, error) {
	_, err := r.Get(ctx, service, version)
	if errors.Is(err, deploy.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type CapabilityRepository struct {
	db *gorm.DB
}

func NewCapabilityRepository(db *gorm.DB) *CapabilityRepository {
	return &CapabilityRepository{db: db}
}

func (r *CapabilityRepository) Create(ctx context.Context, cap builds.UploadCapability) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := UploadCapabilityModel{
		Token:       cap.Token,
		Service:     cap.Service,
		Version:     cap.Version,
		SHA256:      cap.SHA256,
		SizeBytes:   cap.SizeBytes,
		ContentType: cap.ContentType,
		ExpiresAt:   cap.ExpiresAt.UTC().Truncate(time.Microsecond),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CapabilityRepository) Get(ctx context.Context, token string) (builds.UploadCapability, error) {
	if r.db == nil {
		return builds.UploadCapability{}, errDBUnavailable
	}
	var model UploadCapabilityModel
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return builds.UploadCapability{}, deploy.ErrNotFound
		}
		return builds.UploadCapability{}, err
	}
	return builds.UploadCapability{
		Token:       model.Token,
		Service:     model.Service,
		Version:     model.Version,
		SHA256:      model.SHA256,
		SizeBytes:   model.SizeBytes,
		ContentType: model.ContentType,
		ExpiresAt:   model.ExpiresAt,
		ConsumedAt:  model.ConsumedAt,
	}, nil
}

func (r *CapabilityRepository) Consume(ctx context.Context, token string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	at = at.UTC().Truncate(time.Microsecond)
	return r.db.WithContext(ctx).Model(&UploadCapabilityModel{}).
		Where("token = ? AND consumed_at IS NULL", token).
		Update("consumed_at", at).Error
}

func buildModelFromDomain(reg builds.Registration) BuildModel {
	return BuildModel{
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
		CreatedAt:   reg.CreatedAt.UTC().Truncate(time.Microsecond),
	}
}

func buildModelToDomain(model BuildModel) builds.Registration {
	return builds.Registration{
		ID:          model.ID,
		Service:     model.Service,
		Version:     model.Version,
		ArtifactRef: model.ArtifactRef,
		SHA256:      model.SHA256,
		SizeBytes:   model.SizeBytes,
		ContentType: model.ContentType,
		GitSHA:      model.GitSHA,
		GitBranch:   model.GitBranch,
		CIProvider:  model.CIProvider,
		CIRunID:     model.CIRunID,
		CommitURL:   model.CommitURL,
		RunURL:      model.RunURL,
		Publisher:   model.Publisher,
		CreatedAt:   model.CreatedAt,
	}
}

var (
	_ usecase.BuildRepository      = (*BuildRepository)(nil)
	_ usecase.CapabilityRepository = (*CapabilityRepository)(nil)
)
