package repository

import (
	"context"
	"time"

	"event_chat/internal/models"
)

type ThreadRepository interface {
	Create(ctx context.Context, t *models.Thread) error
	FindByID(ctx context.Context, id string) (*models.Thread, error)
	// FindBetween 不分角色找出兩人之間的私訊串
	FindBetween(ctx context.Context, eventID, a, b string) (*models.Thread, error)
	ListForParticipant(ctx context.Context, eventID, participantID string) ([]models.Thread, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type threadRepository struct {
	baseRepository
}

func (r *threadRepository) Create(ctx context.Context, t *models.Thread) error {
	return r.conn(ctx).Create(t).Error
}

func (r *threadRepository) FindByID(ctx context.Context, id string) (*models.Thread, error) {
	return first[models.Thread](r.conn(ctx), "id = ?", id)
}

func (r *threadRepository) FindBetween(ctx context.Context, eventID, a, b string) (*models.Thread, error) {
	return first[models.Thread](r.conn(ctx).Order("created_at ASC"),
		"event_id = ? AND ((anonymous_participant_id = ? AND exposed_participant_id = ?) OR (anonymous_participant_id = ? AND exposed_participant_id = ?))",
		eventID, a, b, b, a)
}

func (r *threadRepository) ListForParticipant(ctx context.Context, eventID, participantID string) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.conn(ctx).
		Where("event_id = ? AND (anonymous_participant_id = ? OR exposed_participant_id = ?)", eventID, participantID, participantID).
		Order("last_activity_at DESC").
		Find(&threads).Error
	return threads, err
}

// Touch 更新最後活動時間，只會往後推
func (r *threadRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.conn(ctx).Model(&models.Thread{}).
		Where("id = ? AND last_activity_at < ?", id, at).
		Update("last_activity_at", at).Error
}
