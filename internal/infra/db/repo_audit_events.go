package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"drydock/internal/domain/deploy"
	"drydock/internal/usecase"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event deploy.AuditEvent) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	beforeJSON, err := marshalPayload(event.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalPayload(event.After)
	if err != nil {
		return err
	}
	model := AuditEventModel{
		ID:         event.ID,
		Action:     event.Action,
		ActorID:    event.ActorID,
		ActorRole:  event.ActorRole,
		RequestID:  event.RequestID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
		CreatedAt:  event.CreatedAt.UTC().Truncate(time.Microsecond),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

var _ usecase.AuditSink = (*AuditEventRepository)(nil)
