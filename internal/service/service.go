package service

import (
	"go.uber.org/zap"

	"event_chat/internal/chatsync"
	"event_chat/internal/repository"
)

type Services struct {
	User        *UserService
	Participant *ParticipantService
	Thread      *ThreadService
	Message     *MessageService
	Feed        *FeedHub
}

// NewServices notifier 為 nil 時以日誌代替
func NewServices(repos *repository.Repositories, notifier chatsync.Notifier, metrics *Metrics, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}

	feed := NewFeedHub(log.Named("feed"), metrics)
	participants := NewParticipantService(repos.Participant, log)
	return &Services{
		User:        NewUserService(repos.User),
		Participant: participants,
		Thread:      NewThreadService(repos, participants),
		Message:     NewMessageService(repos, participants, feed, notifier, metrics, log),
		Feed:        feed,
	}
}
