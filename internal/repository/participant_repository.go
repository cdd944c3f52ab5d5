package repository

import (
	"context"

	"event_chat/internal/models"
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	FindByID(ctx context.Context, id string) (*models.Participant, error)
	FindByEventAndUser(ctx context.Context, eventID string, userID uint) (*models.Participant, error)
}

type participantRepository struct {
	baseRepository
}

func (r *participantRepository) Create(ctx context.Context, p *models.Participant) error {
	return r.conn(ctx).Create(p).Error
}

func (r *participantRepository) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	return first[models.Participant](r.conn(ctx), "id = ?", id)
}

func (r *participantRepository) FindByEventAndUser(ctx context.Context, eventID string, userID uint) (*models.Participant, error) {
	return first[models.Participant](r.conn(ctx), "event_id = ? AND user_id = ?", eventID, userID)
}
