package service

import (
	"context"

	"event_chat/internal/chatsync"
	"event_chat/internal/models"
	"event_chat/internal/repository"
)

type ThreadService struct {
	repos        *repository.Repositories
	participants *ParticipantService
}

func NewThreadService(repos *repository.Repositories, participants *ParticipantService) *ThreadService {
	return &ThreadService{repos: repos, participants: participants}
}

// List 回傳呼叫者所在的私訊串，最近活動的在前
func (s *ThreadService) List(ctx context.Context, eventID string, userID uint) ([]chatsync.ThreadSummary, error) {
	me, err := s.participants.Membership(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	threads, err := s.repos.Thread.ListForParticipant(ctx, eventID, me.ID)
	if err != nil {
		return nil, err
	}

	out := make([]chatsync.ThreadSummary, 0, len(threads))
	for i := range threads {
		out = append(out, threadSummary(&threads[i], me.ID))
	}
	return out, nil
}

// Authorize 確認參與者屬於該私訊串
func (s *ThreadService) Authorize(ctx context.Context, eventID, threadID, participantID string) (*models.Thread, error) {
	return authorizeThread(ctx, s.repos.Thread, eventID, threadID, participantID)
}

func authorizeThread(ctx context.Context, repo repository.ThreadRepository, eventID, threadID, participantID string) (*models.Thread, error) {
	t, err := repo.FindByID(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	if t.EventID != eventID || !t.Involves(participantID) {
		return nil, ErrForbidden
	}
	return t, nil
}

func threadSummary(t *models.Thread, me string) chatsync.ThreadSummary {
	role := chatsync.RoleExposed
	if t.AnonymousParticipantID == me {
		role = chatsync.RoleAnonymous
	}
	return chatsync.ThreadSummary{
		ID:             t.ID,
		EventID:        t.EventID,
		CounterpartID:  t.Counterpart(me),
		Role:           role,
		LastActivityAt: t.LastActivityAt,
	}
}
