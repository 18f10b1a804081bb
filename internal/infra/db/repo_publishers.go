package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"drydock/internal/domain/builds"
	"drydock/internal/domain/deploy"
	"drydock/internal/usecase"
)

type PublisherRepository struct {
	db *gorm.DB
}

func NewPublisherRepository(db *gorm.DB) *PublisherRepository {
	return &PublisherRepository{db: db}
}

func (r *PublisherRepository) List(ctx context.Context) ([]builds.Publisher, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CiPublisherModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]builds.Publisher, 0, len(models))
	for _, m := range models {
		out = append(out, publisherModelToDomain(m))
	}
	return out, nil
}

func (r *PublisherRepository) Get(ctx context.Context, name string) (builds.Publisher, error) {
	if r.db == nil {
		return builds.Publisher{}, errDBUnavailable
	}
	var model CiPublisherModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return builds.Publisher{}, deploy.ErrNotFound
		}
		return builds.Publisher{}, err
	}
	return publisherModelToDomain(model), nil
}

// Create enforces the unique-name invariant via the primary key.
func (r *PublisherRepository) Create(ctx context.Context, p builds.Publisher) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := publisherModelFromDomain(p)
	model.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return mapDuplicate(r.db.WithContext(ctx).Create(&model).Error)
}

func (r *PublisherRepository) Delete(ctx context.Context, name string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).Where("name = ?", name).Delete(&CiPublisherModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return deploy.ErrNotFound
	}
	return nil
}

func publisherModelFromDomain(p builds.Publisher) CiPublisherModel {
	return CiPublisherModel{
		Name:                p.Name,
		Provider:            p.Provider,
		IssuersJSON:         marshalList(p.Issuers),
		AudiencesJSON:       marshalList(p.Audiences),
		AuthorizedPartyJSON: marshalList(p.AuthorizedParty),
		SubjectsJSON:        marshalList(p.Subjects),
		SubjectPrefixesJSON: marshalList(p.SubjectPrefixes),
		EmailsJSON:          marshalList(p.Emails),
	}
}

func publisherModelToDomain(m CiPublisherModel) builds.Publisher {
	return builds.Publisher{
		Name:            m.Name,
		Provider:        m.Provider,
		Issuers:         unmarshalList(m.IssuersJSON),
		Audiences:       unmarshalList(m.AudiencesJSON),
		AuthorizedParty: unmarshalList(m.AuthorizedPartyJSON),
		Subjects:        unmarshalList(m.SubjectsJSON),
		SubjectPrefixes: unmarshalList(m.SubjectPrefixesJSON),
		Emails:          unmarshalList(m.EmailsJSON),
	}
}

var _ usecase.PublisherRepository = (*PublisherRepository)(nil)
