package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"event_chat/internal/chatsync"
	"event_chat/internal/models"
	"event_chat/internal/repository"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200

	maxClientRefLength = 64
	notifyTimeout      = 10 * time.Second
)

// ListQuery 一頁歷史訊息的查詢條件
// 私訊可以用 ThreadID 或 RecipientID 指定；收件人尚無私訊串時回傳空頁
type ListQuery struct {
	EventID     string
	UserID      uint
	Channel     chatsync.Channel
	ThreadID    string
	RecipientID string
	Offset      int
	Limit       int
}

// CreateInput 送出一則訊息
type CreateInput struct {
	EventID     string
	UserID      uint
	Channel     chatsync.Channel
	Content     string
	ThreadID    string
	RecipientID string
	Anonymous   bool
	ClientRef   string
}

// CreateResult ThreadID 只有這次送出建立了私訊串時才有值
// Replayed 表示相同 client ref 已寫入過，回傳的是既有訊息
type CreateResult struct {
	Message  chatsync.Message
	ThreadID string
	Replayed bool
}

type MessageService struct {
	repos        *repository.Repositories
	participants *ParticipantService
	hub          *FeedHub
	notifier     chatsync.Notifier
	metrics      *Metrics
	log          *zap.Logger
	now          func() time.Time
}

func NewMessageService(repos *repository.Repositories, participants *ParticipantService, hub *FeedHub, notifier chatsync.Notifier, metrics *Metrics, log *zap.Logger) *MessageService {
	return &MessageService{
		repos:        repos,
		participants: participants,
		hub:          hub,
		notifier:     notifier,
		metrics:      metrics,
		log:          log,
		now:          time.Now,
	}
}

// List 由新到舊回傳一頁訊息
func (s *MessageService) List(ctx context.Context, q ListQuery) (chatsync.Page, error) {
	if q.Offset < 0 {
		return chatsync.Page{}, invalid("offset must not be negative")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	me, err := s.participants.Membership(ctx, q.EventID, q.UserID)
	if err != nil {
		return chatsync.Page{}, err
	}

	var rows []models.Message
	switch q.Channel {
	case chatsync.ChannelBroadcast, "":
		rows, err = s.repos.Message.ListBroadcast(ctx, q.EventID, q.Offset, limit+1)
	case chatsync.ChannelPrivate:
		var thread *models.Thread
		thread, err = s.findThread(ctx, q.EventID, me.ID, q.ThreadID, q.RecipientID)
		if errors.Is(err, ErrNotFound) && q.ThreadID == "" {
			return chatsync.Page{Messages: []chatsync.Message{}}, nil
		}
		if err != nil {
			return chatsync.Page{}, err
		}
		rows, err = s.repos.Message.ListThread(ctx, thread.ID, q.Offset, limit+1)
	default:
		return chatsync.Page{}, invalid("unknown channel %q", q.Channel)
	}
	if err != nil {
		return chatsync.Page{}, err
	}

	page := chatsync.Page{HasMore: len(rows) > limit}
	if page.HasMore {
		rows = rows[:limit]
	}
	page.Messages = make([]chatsync.Message, len(rows))
	for i := range rows {
		page.Messages[i] = messageToWire(&rows[i])
	}
	return page, nil
}

// Create 寫入訊息；私訊沒有 thread id 時與收件人建立私訊串
// 相同作者與 client ref 的重送回傳既有訊息
func (s *MessageService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := chatsync.ValidateContent(in.Content); err != nil {
		return nil, invalid("%v", err)
	}
	if len(in.ClientRef) > maxClientRefLength {
		return nil, invalid("client_ref is limited to %d bytes", maxClientRefLength)
	}
	if in.Channel != chatsync.ChannelBroadcast && in.Channel != chatsync.ChannelPrivate {
		return nil, invalid("unknown channel %q", in.Channel)
	}

	me, err := s.participants.Membership(ctx, in.EventID, in.UserID)
	if err != nil {
		return nil, err
	}
	if replay, ok, err := s.replay(ctx, me.ID, in.ClientRef); err != nil || ok {
		return replay, err
	}

	var (
		msg     models.Message
		created *models.Thread
	)
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		msg = models.Message{
			EventID:             in.EventID,
			Channel:             string(in.Channel),
			AuthorParticipantID: me.ID,
			DisplayAlias:        me.DisplayName,
			DisplayColor:        me.Color,
			Content:             in.Content,
			ClientRef:           in.ClientRef,
			CreatedAt:           s.now().UTC(),
		}
		if in.Channel == chatsync.ChannelBroadcast {
			return tx.Message.Create(ctx, &msg)
		}

		thread, isNew, err := s.resolveThread(ctx, tx, me, in, msg.CreatedAt)
		if err != nil {
			return err
		}
		if isNew {
			created = thread
		}
		msg.PrivateThreadID = thread.ID
		msg.DisplayAlias = aliasIn(thread, me)
		if err := tx.Message.Create(ctx, &msg); err != nil {
			return err
		}
		return tx.Thread.Touch(ctx, thread.ID, msg.CreatedAt)
	})
	if err != nil {
		// 並行的重送可能已經以同一個 client ref 寫入
		if replay, ok, rerr := s.replay(ctx, me.ID, in.ClientRef); rerr == nil && ok {
			return replay, nil
		}
		return nil, err
	}

	wire := messageToWire(&msg)
	result := &CreateResult{Message: wire}
	if created != nil {
		result.ThreadID = created.ID
		s.metrics.threadCreated()
	}
	s.metrics.messageCreated(msg.Channel)
	s.log.Debug("message created",
		zap.String("event_id", in.EventID),
		zap.String("message_id", msg.ID),
		zap.String("channel", msg.Channel),
		zap.Bool("thread_created", created != nil),
	)

	s.hub.Publish(in.EventID, wire)
	go s.dispatch(wire)
	return result, nil
}

func (s *MessageService) replay(ctx context.Context, authorID, clientRef string) (*CreateResult, bool, error) {
	if clientRef == "" {
		return nil, false, nil
	}
	existing, err := s.repos.Message.FindByAuthorRef(ctx, authorID, clientRef)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &CreateResult{Message: messageToWire(existing), Replayed: true}, true, nil
}

// resolveThread 找出或建立私訊串；Anonymous 決定建立時寄件人的角色
func (s *MessageService) resolveThread(ctx context.Context, tx *repository.Repositories, me *models.Participant, in CreateInput, at time.Time) (*models.Thread, bool, error) {
	if in.ThreadID != "" {
		t, err := authorizeThread(ctx, tx.Thread, in.EventID, in.ThreadID, me.ID)
		return t, false, err
	}
	if in.RecipientID == "" {
		return nil, false, invalid("private messages need thread_id or recipient_id")
	}
	if in.RecipientID == me.ID {
		return nil, false, invalid("cannot message yourself")
	}

	recipient, err := tx.Participant.FindByID(ctx, in.RecipientID)
	if err != nil {
		return nil, false, notFound(err, "recipient")
	}
	if recipient.EventID != in.EventID {
		return nil, false, ErrNotFound
	}

	existing, err := tx.Thread.FindBetween(ctx, in.EventID, me.ID, recipient.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	t := &models.Thread{EventID: in.EventID, LastActivityAt: at}
	if in.Anonymous {
		t.AnonymousParticipantID, t.ExposedParticipantID = me.ID, recipient.ID
	} else {
		t.AnonymousParticipantID, t.ExposedParticipantID = recipient.ID, me.ID
	}
	if err := tx.Thread.Create(ctx, t); err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *MessageService) findThread(ctx context.Context, eventID, me, threadID, recipientID string) (*models.Thread, error) {
	if threadID != "" {
		return authorizeThread(ctx, s.repos.Thread, eventID, threadID, me)
	}
	if recipientID == "" {
		return nil, invalid("private history needs thread_id or recipient_id")
	}
	t, err := s.repos.Thread.FindBetween(ctx, eventID, me, recipientID)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	return t, nil
}

func (s *MessageService) dispatch(msg chatsync.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn("notification dispatch failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// aliasIn 在私訊串中以化名出現的一方顯示化名
func aliasIn(t *models.Thread, p *models.Participant) string {
	if t.AnonymousParticipantID == p.ID && p.Pseudonym != "" {
		return p.Pseudonym
	}
	return p.DisplayName
}

func messageToWire(m *models.Message) chatsync.Message {
	return chatsync.Message{
		ID:                  m.ID,
		Content:             m.Content,
		AuthorParticipantID: m.AuthorParticipantID,
		DisplayAlias:        m.DisplayAlias,
		DisplayColor:        m.DisplayColor,
		CreatedAt:           m.CreatedAt,
		Channel:             chatsync.Channel(m.Channel),
		PrivateThreadID:     m.PrivateThreadID,
		ClientRef:           m.ClientRef,
		State:               chatsync.StateConfirmed,
	}
}
