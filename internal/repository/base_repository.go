package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 查無資料
var ErrNotFound = errors.New("record not found")

type baseRepository struct {
	db *gorm.DB
}

func (r baseRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// first 查詢單筆資料，查無時回傳 ErrNotFound
func first[T any](tx *gorm.DB, query string, args ...interface{}) (*T, error) {
	var out T
	err := tx.Where(query, args...).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
