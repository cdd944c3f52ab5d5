package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"

	"event_chat/pkg/config"
)

// NewSQLiteDB 開啟 sqlite 資料庫；path 為 ":memory:" 時只存在於記憶體
func NewSQLiteDB(path string) (*DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := Open(sqlite.Open(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// 每條連線都是獨立的記憶體資料庫，只保留一條
		sqlDB, err := db.DB.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// New 依 cfg.Driver 選擇資料庫
func New(cfg config.DBConfig) (*DB, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgresDB(cfg)
	case "sqlite":
		return NewSQLiteDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
