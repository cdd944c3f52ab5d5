package repository

import (
	"context"

	"gorm.io/gorm"

	"event_chat/internal/storage"
)

type Repositories struct {
	db          *gorm.DB
	User        UserRepository
	Participant ParticipantRepository
	Thread      ThreadRepository
	Message     MessageRepository
}

func NewRepositories(db *storage.DB) *Repositories {
	return newRepositories(db.DB)
}

func newRepositories(db *gorm.DB) *Repositories {
	base := baseRepository{db: db}
	return &Repositories{
		db:          db,
		User:        &userRepository{base},
		Participant: &participantRepository{base},
		Thread:      &threadRepository{base},
		Message:     &messageRepository{base},
	}
}

// Transaction 在同一個資料庫交易內執行 fn；fn 回傳錯誤時回滾
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}
