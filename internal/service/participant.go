package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"event_chat/internal/chatsync"
	"event_chat/internal/models"
	"event_chat/internal/repository"
)

const maxNameLength = 64

var (
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	palette      = []string{"#e57373", "#64b5f6", "#81c784", "#ffb74d", "#ba68c8", "#4db6ac", "#f06292", "#a1887f"}
)

// JoinInput 加入活動時提供的顯示資料
type JoinInput struct {
	DisplayName string
	Pseudonym   string
	Color       string
}

type ParticipantService struct {
	repo repository.ParticipantRepository
	log  *zap.Logger
}

func NewParticipantService(repo repository.ParticipantRepository, log *zap.Logger) *ParticipantService {
	return &ParticipantService{repo: repo, log: log}
}

// Join 讓用戶加入活動；已加入時回傳既有資料，created 為 false
func (s *ParticipantService) Join(ctx context.Context, eventID string, userID uint, in JoinInput) (p *models.Participant, created bool, err error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, false, invalid("event id is required")
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Pseudonym = strings.TrimSpace(in.Pseudonym)
	if in.DisplayName == "" {
		return nil, false, invalid("display name is required")
	}
	if utf8.RuneCountInString(in.DisplayName) > maxNameLength || utf8.RuneCountInString(in.Pseudonym) > maxNameLength {
		return nil, false, invalid("names are limited to %d characters", maxNameLength)
	}
	if in.Color == "" {
		in.Color = palette[int(userID)%len(palette)]
	} else if !colorPattern.MatchString(in.Color) {
		return nil, false, invalid("color must look like #rrggbb")
	}

	existing, err := s.repo.FindByEventAndUser(ctx, eventID, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	p = &models.Participant{
		EventID:     eventID,
		UserID:      userID,
		DisplayName: in.DisplayName,
		Pseudonym:   in.Pseudonym,
		Color:       in.Color,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, false, err
	}
	s.log.Info("participant joined", zap.String("event_id", eventID), zap.String("participant_id", p.ID))
	return p, true, nil
}

// Lookup 查詢用戶在活動中的參與者資料
func (s *ParticipantService) Lookup(ctx context.Context, eventID string, userID uint) (*models.Participant, error) {
	p, err := s.repo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, notFound(err, "participant")
	}
	return p, nil
}

// Membership 與 Lookup 相同，但非成員時回傳 ErrForbidden
func (s *ParticipantService) Membership(ctx context.Context, eventID string, userID uint) (*models.Participant, error) {
	p, err := s.Lookup(ctx, eventID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrForbidden
	}
	return p, err
}

// ParticipantToWire 轉成 API 回傳格式
func ParticipantToWire(p *models.Participant) chatsync.Participant {
	return chatsync.Participant{
		ID:          p.ID,
		EventID:     p.EventID,
		DisplayName: p.DisplayName,
		Pseudonym:   p.Pseudonym,
		Color:       p.Color,
	}
}

