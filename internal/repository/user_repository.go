package repository

import (
	"context"

	"event_chat/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

type userRepository struct {
	baseRepository
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.conn(ctx).Create(user).Error
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return first[models.User](r.conn(ctx), "username = ?", username)
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return first[models.User](r.conn(ctx), "id = ?", id)
}
