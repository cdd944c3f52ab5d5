package models

import (
	"time"

	"gorm.io/gorm"
)

// Participant 用戶在某個活動中的身份
type Participant struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	EventID     string    `gorm:"not null;uniqueIndex:idx_participant_event_user" json:"event_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_participant_event_user" json:"-"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	Pseudonym   string    `json:"pseudonym"`
	Color       string    `gorm:"size:16" json:"color"`
	CreatedAt   time.Time `json:"-"`
}

func (p *Participant) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}
