package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50

	notifyTimeout = 10 * time.Second
)

// View 目前可見狀態的快照
type View struct {
	Scope    Scope
	Messages []Message
	Loading  bool
	HasMore  bool
	// FetchErr 抓取失敗時的可恢復錯誤，列表保持空的或舊的內容
	FetchErr error
	// Blocked 收到 ErrUnauthorized 後暫停送出，直到 ResumeSending
	Blocked bool
}

type EngineConfig struct {
	Store        Store
	Feed         Feed
	Participants *ParticipantResolver
	Threads      *ThreadResolver
	Session      Session
	Notifier     Notifier
	Logger       *zap.Logger
	Metrics      *Metrics
	PageSize     int
	// OnChange 每次可見列表改變後以新快照呼叫，呼叫彼此不會重疊
	// 回呼內不可同步呼叫 Engine 的方法
	OnChange func(View)
}

// Engine 協調抓取、樂觀送出與即時推送，所有列表修改都經過 mu 串行化
type Engine struct {
	store        Store
	feed         Feed
	participants *ParticipantResolver
	threads      *ThreadResolver
	session      Session
	notifier     Notifier
	log          *zap.Logger
	metrics      *Metrics
	pageSize     int
	onChange     func(View)
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	guard  *EpochGuard

	notifyMu sync.Mutex

	mu       sync.Mutex
	selected bool
	scope    Scope
	token    Token
	epochCtx context.Context
	list     *MessageList
	loading  bool
	hasMore  bool
	fetchErr error
	blocked  bool
	sub      *lease
}

func NewEngine(cfg EngineConfig) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:        cfg.Store,
		feed:         cfg.Feed,
		participants: cfg.Participants,
		threads:      cfg.Threads,
		session:      cfg.Session,
		notifier:     cfg.Notifier,
		log:          cfg.Logger,
		metrics:      cfg.Metrics,
		pageSize:     cfg.PageSize,
		onChange:     cfg.OnChange,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		guard:        NewEpochGuard(),
		list:         NewMessageList(),
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.threads == nil {
		e.threads = NewThreadResolver()
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.pageSize <= 0 {
		e.pageSize = DefaultPageSize
	}
	return e
}

// Threads 回傳引擎使用的 ThreadResolver
func (e *Engine) Threads() *ThreadResolver {
	return e.threads
}

// RefreshThreads 從伺服器取得私訊串列表並預先填入 ThreadResolver
func (e *Engine) RefreshThreads(ctx context.Context, eventID string) ([]ThreadSummary, error) {
	if _, _, ok := e.session.Credentials(); !ok {
		return nil, ErrNotReady
	}
	threads, err := e.store.ListThreads(ctx, eventID)
	if err != nil {
		return nil, err
	}
	e.threads.Prime(threads)
	return threads, nil
}

// Select 切換到新的頻道：開始新世代、釋放舊訂閱、開啟新訂閱並抓取最新一頁
// 尚未建立私訊串的新收件人不會抓取也不會訂閱
func (e *Engine) Select(ctx context.Context, scope Scope) error {
	token, epochCtx := e.guard.Begin(e.ctx)

	_, identity, ready := e.session.Credentials()
	resolved, known := e.threads.Resolve(scope)

	e.mu.Lock()
	if !e.guard.IsCurrent(token) {
		e.mu.Unlock()
		return ErrCancelled
	}
	old := e.sub
	e.sub = nil
	e.selected = true
	e.scope = resolved
	e.token = token
	e.epochCtx = epochCtx
	e.list.Reset()
	e.hasMore = false
	e.fetchErr = nil
	e.loading = ready && known
	e.mu.Unlock()

	old.Release()
	e.publish()

	if !ready {
		return ErrNotReady
	}
	if !known {
		e.log.Debug("new recipient, history is empty until first send",
			zap.String("event_id", scope.EventID),
			zap.String("recipient_id", scope.RecipientID),
		)
		return nil
	}

	// 預先暖好參與者快取，讓第一次送出不必等待
	go func() {
		_, _ = e.participants.Lookup(epochCtx, resolved.EventID, identity)
	}()

	e.subscribe(epochCtx, token, resolved)
	return e.fetch(ctx, epochCtx, token, resolved, 0)
}

// LoadMore 抓取更舊的一頁
func (e *Engine) LoadMore(ctx context.Context) error {
	e.mu.Lock()
	if !e.selected || !e.hasMore || e.loading {
		e.mu.Unlock()
		return nil
	}
	token, scope, epochCtx := e.token, e.scope, e.epochCtx
	offset := e.list.ConfirmedCount()
	e.loading = true
	e.mu.Unlock()

	e.publish()
	return e.fetch(ctx, epochCtx, token, scope, offset)
}

func (e *Engine) fetch(ctx, epochCtx context.Context, token Token, scope Scope, offset int) error {
	fetchCtx, cancel := context.WithCancel(epochCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	page, err := e.store.FetchPage(fetchCtx, scope, offset, e.pageSize)

	e.mu.Lock()
	if !e.guard.IsCurrent(token) {
		e.mu.Unlock()
		e.metrics.stale()
		e.log.Debug("dropping stale fetch result", zap.Uint64("epoch", uint64(token)))
		return nil
	}
	e.loading = false
	if err != nil {
		if IsCancelled(err) || errors.Is(ctx.Err(), context.Canceled) {
			e.mu.Unlock()
			e.publish()
			return nil
		}
		e.fetchErr = err
		if errors.Is(err, ErrUnauthorized) {
			e.blocked = true
		}
		e.mu.Unlock()
		e.log.Warn("fetch page failed",
			zap.String("event_id", scope.EventID),
			zap.String("thread_id", scope.ThreadID),
			zap.Int("offset", offset),
			zap.Error(err),
		)
		e.publish()
		return err
	}
	// 頁面由新到舊，倒序合併讓相同時間的訊息保持伺服器順序
	for i := len(page.Messages) - 1; i >= 0; i-- {
		e.mergeLocked(page.Messages[i], "fetch")
	}
	e.hasMore = page.HasMore
	e.fetchErr = nil
	e.mu.Unlock()

	e.publish()
	return nil
}

func (e *Engine) subscribe(epochCtx context.Context, token Token, scope Scope) {
	if e.feed == nil {
		return
	}
	sub, err := e.feed.Subscribe(epochCtx, filterFor(scope), func(msg Message) {
		e.handleIncoming(token, msg)
	})
	if err != nil {
		if !IsCancelled(err) {
			e.log.Warn("feed subscribe failed",
				zap.String("event_id", scope.EventID),
				zap.String("thread_id", scope.ThreadID),
				zap.Error(err),
			)
		}
		return
	}

	l := newLease(sub, e.log)
	e.mu.Lock()
	if !e.guard.IsCurrent(token) || e.sub != nil {
		e.mu.Unlock()
		l.Release()
		return
	}
	e.sub = l
	e.mu.Unlock()
}

func (e *Engine) handleIncoming(token Token, msg Message) {
	e.mu.Lock()
	if !e.guard.IsCurrent(token) {
		e.mu.Unlock()
		e.metrics.stale()
		return
	}
	if !e.inScopeLocked(msg) {
		e.mu.Unlock()
		return
	}
	changed := e.mergeLocked(msg, "feed") != MergeDuplicate
	e.mu.Unlock()

	if changed {
		e.publish()
	}
}

func (e *Engine) inScopeLocked(msg Message) bool {
	if msg.Channel != e.scope.Channel {
		return false
	}
	if e.scope.IsPrivate() {
		return msg.PrivateThreadID == e.scope.ThreadID
	}
	return true
}

func (e *Engine) mergeLocked(msg Message, source string) MergeResult {
	res := e.list.Merge(msg)
	switch res {
	case MergeDuplicate:
		e.metrics.duplicate()
	case MergeReconciled:
		e.metrics.reconcile(source)
	}
	return res
}

// Send 立即在列表尾端加入待確認訊息，然後送到伺服器
// 成功時以確認訊息原地取代；失敗時標記為 failed 並回傳錯誤
func (e *Engine) Send(ctx context.Context, content string) (Message, error) {
	if err := ValidateContent(content); err != nil {
		return Message{}, err
	}
	return e.send(ctx, content, uuid.NewString())
}

// Retry 把失敗的訊息改回待確認並以相同內容重新送出
// client ref 沿用上一次，伺服器可藉此辨認重複送出；無法重送時失敗的訊息保持原狀
func (e *Engine) Retry(ctx context.Context, tempID string) (Message, error) {
	_, identity, ok := e.session.Credentials()
	if !ok {
		return Message{}, ErrNotReady
	}

	e.mu.Lock()
	if e.blocked {
		e.mu.Unlock()
		return Message{}, ErrUnauthorized
	}
	failed, ok := e.list.Get(tempID)
	if !ok || failed.State != StateFailed {
		e.mu.Unlock()
		return Message{}, ErrUnknownMessage
	}
	if errors.Is(failed.Err, ErrValidation) {
		e.mu.Unlock()
		return failed, failed.Err
	}
	pending, err := e.list.Requeue(tempID, e.now())
	if err != nil {
		e.mu.Unlock()
		return failed, err
	}
	token, scope, epochCtx := e.token, e.scope, e.epochCtx
	e.mu.Unlock()

	e.publish()
	return e.submit(ctx, epochCtx, token, scope, identity, pending)
}

// Discard 移除失敗的訊息，不再重試
func (e *Engine) Discard(tempID string) bool {
	e.mu.Lock()
	_, ok := e.list.RemoveFailed(tempID)
	e.mu.Unlock()
	if ok {
		e.publish()
	}
	return ok
}

// ResumeSending 重新驗證後解除送出暫停
func (e *Engine) ResumeSending() {
	e.mu.Lock()
	e.blocked = false
	e.mu.Unlock()
	e.publish()
}

func (e *Engine) send(ctx context.Context, content, clientRef string) (Message, error) {
	_, identity, ok := e.session.Credentials()
	if !ok {
		return Message{}, ErrNotReady
	}

	e.mu.Lock()
	if e.blocked {
		e.mu.Unlock()
		return Message{}, ErrUnauthorized
	}
	if !e.selected {
		e.mu.Unlock()
		return Message{}, ErrNoScope
	}
	token, scope, epochCtx := e.token, e.scope, e.epochCtx
	e.mu.Unlock()

	// 待確認訊息不等待網路：作者先用快取裡的資料，沒有時留空由 submit 補上
	me, fresh, known := e.participants.Known(scope.EventID, identity)
	pending := Message{
		ID:              "tmp-" + uuid.NewString(),
		Content:         content,
		Channel:         scope.Channel,
		PrivateThreadID: scope.ThreadID,
		ClientRef:       clientRef,
	}
	if known {
		e.applyAuthor(&pending, me, scope)
	}

	e.mu.Lock()
	if !e.guard.IsCurrent(token) {
		e.mu.Unlock()
		return Message{}, ErrCancelled
	}
	pending, err := e.list.AddPending(pending, e.now())
	e.mu.Unlock()
	if err != nil {
		return Message{}, err
	}
	e.publish()

	if known && !fresh {
		go e.refreshAuthor(epochCtx, token, scope, identity, pending.ID)
	}
	return e.submit(ctx, epochCtx, token, scope, identity, pending)
}

// submit 將已在列表中的待確認訊息送到伺服器
// 作者尚未解析時先查詢；查詢失敗同樣把訊息標記為 failed
func (e *Engine) submit(ctx, epochCtx context.Context, token Token, scope Scope, identity string, pending Message) (Message, error) {
	if pending.AuthorParticipantID == "" {
		me, err := e.participants.Lookup(ctx, scope.EventID, identity)
		if err != nil {
			return e.failSend(token, pending, err)
		}
		e.applyAuthor(&pending, me, scope)
		e.patchPending(token, pending.ID, me, scope)
	}

	res, err := e.store.Submit(ctx, scope, pending.Content, pending.ClientRef)
	if err != nil {
		return e.failSend(token, pending, err)
	}
	return e.confirmSend(epochCtx, token, scope, pending, res), nil
}

// refreshAuthor 在背景更新過期的作者資料，訊息仍未確認時才套用
func (e *Engine) refreshAuthor(ctx context.Context, token Token, scope Scope, identity, tempID string) {
	me, err := e.participants.Lookup(ctx, scope.EventID, identity)
	if err != nil {
		if !IsCancelled(err) {
			e.log.Warn("refresh participant failed",
				zap.String("event_id", scope.EventID),
				zap.String("temp_id", tempID),
				zap.Error(err),
			)
		}
		return
	}
	e.patchPending(token, tempID, me, scope)
}

func (e *Engine) patchPending(token Token, tempID string, me Participant, scope Scope) {
	e.mu.Lock()
	changed := e.guard.IsCurrent(token) && e.list.Patch(tempID, func(m *Message) {
		e.applyAuthor(m, me, scope)
	})
	e.mu.Unlock()
	if changed {
		e.publish()
	}
}

func (e *Engine) applyAuthor(m *Message, me Participant, scope Scope) {
	m.AuthorParticipantID = me.ID
	m.DisplayAlias = e.aliasFor(me, scope)
	m.DisplayColor = me.Color
}

func (e *Engine) aliasFor(me Participant, scope Scope) string {
	if !scope.IsPrivate() || me.Pseudonym == "" {
		return me.DisplayName
	}
	if scope.ThreadID != "" {
		if role, ok := e.threads.Role(scope.ThreadID); ok {
			if role == RoleAnonymous {
				return me.Pseudonym
			}
			return me.DisplayName
		}
	}
	if scope.Anonymous {
		return me.Pseudonym
	}
	return me.DisplayName
}

func (e *Engine) failSend(token Token, pending Message, err error) (Message, error) {
	e.metrics.sendFailed()
	e.log.Warn("send failed",
		zap.String("temp_id", pending.ID),
		zap.Bool("retryable", Retryable(err)),
		zap.Error(err),
	)

	e.mu.Lock()
	if errors.Is(err, ErrUnauthorized) {
		e.blocked = true
	}
	if e.guard.IsCurrent(token) {
		e.list.Fail(pending.ID, err)
	}
	e.mu.Unlock()
	e.publish()

	pending.State = StateFailed
	pending.Err = err
	return pending, err
}

func (e *Engine) confirmSend(epochCtx context.Context, token Token, scope Scope, pending Message, res SubmitResult) Message {
	confirmed := res.Message
	confirmed.State = StateConfirmed
	if confirmed.ClientRef == "" {
		confirmed.ClientRef = pending.ClientRef
	}

	threadID := res.ThreadID
	if threadID == "" {
		threadID = confirmed.PrivateThreadID
	}
	if scope.IsPrivate() && scope.RecipientID != "" && threadID != "" {
		e.threads.Remember(scope.EventID, scope.RecipientID, threadID)
		if res.ThreadID != "" {
			role := RoleExposed
			if scope.Anonymous {
				role = RoleAnonymous
			}
			e.threads.RememberRole(res.ThreadID, role)
		}
	}

	var discovered *Scope
	e.mu.Lock()
	if e.guard.IsCurrent(token) {
		switch e.list.Confirm(pending.ID, confirmed) {
		case MergeDuplicate:
			e.metrics.duplicate()
		case MergeReconciled:
			e.metrics.reconcile("submit")
		}
		if e.scope.IsPrivate() && e.scope.ThreadID == "" && threadID != "" {
			e.scope.ThreadID = threadID
			s := e.scope
			discovered = &s
		}
	}
	e.mu.Unlock()

	// 新建立的私訊串現在才有 thread id 可訂閱
	if discovered != nil {
		e.subscribe(epochCtx, token, *discovered)
	}
	e.publish()

	go e.dispatch(confirmed)
	return confirmed
}

func (e *Engine) dispatch(msg Message) {
	ctx, cancel := context.WithTimeout(e.ctx, notifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(ctx, msg); err != nil {
		e.log.Warn("notification dispatch failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// View 回傳目前狀態的快照
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	return View{
		Scope:    e.scope,
		Messages: e.list.Messages(),
		Loading:  e.loading,
		HasMore:  e.hasMore,
		FetchErr: e.fetchErr,
		Blocked:  e.blocked,
	}
}

func (e *Engine) publish() {
	if e.onChange == nil {
		return
	}
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.onChange(e.View())
}

// Close 作廢目前世代並釋放訂閱
func (e *Engine) Close() {
	e.guard.Stop()

	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.selected = false
	e.mu.Unlock()

	sub.Release()
	e.cancel()
}
