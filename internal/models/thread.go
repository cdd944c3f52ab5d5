package models

import (
	"time"

	"gorm.io/gorm"
)

// Thread 兩個參與者之間的私訊串，一方以化名出現
type Thread struct {
	ID                     string    `gorm:"primaryKey;size:26"`
	EventID                string    `gorm:"not null;index"`
	AnonymousParticipantID string    `gorm:"not null;index"`
	ExposedParticipantID   string    `gorm:"not null;index"`
	LastActivityAt         time.Time `gorm:"index"`
	CreatedAt              time.Time
}

func (t *Thread) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.LastActivityAt.IsZero() {
		t.LastActivityAt = time.Now()
	}
	return nil
}

// Involves 判斷參與者是否為串中的一方
func (t *Thread) Involves(participantID string) bool {
	return t.AnonymousParticipantID == participantID || t.ExposedParticipantID == participantID
}

// Counterpart 回傳另一方的參與者 ID
func (t *Thread) Counterpart(participantID string) string {
	if t.AnonymousParticipantID == participantID {
		return t.ExposedParticipantID
	}
	return t.AnonymousParticipantID
}
