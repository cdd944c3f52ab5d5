package service

import (
	"context"

	"go.uber.org/zap"

	"event_chat/internal/chatsync"
)

// LogNotifier 以日誌代替站外通知
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg chatsync.Message) error {
	if msg.Channel != chatsync.ChannelPrivate {
		return nil
	}
	n.log.Info("private message notification",
		zap.String("message_id", msg.ID),
		zap.String("thread_id", msg.PrivateThreadID),
		zap.String("author_participant_id", msg.AuthorParticipantID),
	)
	return nil
}
