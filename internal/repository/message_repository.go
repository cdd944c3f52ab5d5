package repository

import (
	"context"

	"event_chat/internal/models"
)

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	FindByAuthorRef(ctx context.Context, authorID, clientRef string) (*models.Message, error)
	// ListBroadcast 與 ListThread 都由新到舊回傳
	ListBroadcast(ctx context.Context, eventID string, offset, limit int) ([]models.Message, error)
	ListThread(ctx context.Context, threadID string, offset, limit int) ([]models.Message, error)
}

type messageRepository struct {
	baseRepository
}

func (r *messageRepository) Create(ctx context.Context, m *models.Message) error {
	return r.conn(ctx).Create(m).Error
}

func (r *messageRepository) FindByAuthorRef(ctx context.Context, authorID, clientRef string) (*models.Message, error) {
	return first[models.Message](r.conn(ctx), "author_participant_id = ? AND client_ref = ?", authorID, clientRef)
}

func (r *messageRepository) ListBroadcast(ctx context.Context, eventID string, offset, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.conn(ctx).
		Where("event_id = ? AND channel = ?", eventID, models.ChannelBroadcast).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) ListThread(ctx context.Context, threadID string, offset, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.conn(ctx).
		Where("private_thread_id = ? AND channel = ?", threadID, models.ChannelPrivate).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, err
}
