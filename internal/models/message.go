package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ChannelBroadcast = "broadcast"
	ChannelPrivate   = "private"
)

// Message 已確認的訊息；寫入後不再修改
type Message struct {
	ID                  string `gorm:"primaryKey;size:26"`
	EventID             string `gorm:"not null;index:idx_message_scope"`
	Channel             string `gorm:"type:varchar(20);not null;index:idx_message_scope"`
	PrivateThreadID     string `gorm:"index"`
	AuthorParticipantID string `gorm:"not null;uniqueIndex:idx_message_author_ref,where:client_ref <> ''"`
	DisplayAlias        string
	DisplayColor        string    `gorm:"size:16"`
	Content             string    `gorm:"type:text;not null"`
	ClientRef           string    `gorm:"size:64;uniqueIndex:idx_message_author_ref"`
	CreatedAt           time.Time `gorm:"index"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}
