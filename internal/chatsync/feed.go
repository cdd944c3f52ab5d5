package chatsync

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// FeedFilter 推送過濾條件；ThreadID 為空時只接收廣播頻道
type FeedFilter struct {
	EventID  string
	ThreadID string
}

func filterFor(scope Scope) FeedFilter {
	f := FeedFilter{EventID: scope.EventID}
	if scope.IsPrivate() {
		f.ThreadID = scope.ThreadID
	}
	return f
}

// Feed 即時推送新訊息；送達保證為 at-least-once，與抓取路徑之間沒有順序保證
type Feed interface {
	Subscribe(ctx context.Context, filter FeedFilter, handler func(Message)) (Subscription, error)
}

type Subscription interface {
	Close() error
}

// lease 持有一個訂閱，保證 Release 只關閉一次
type lease struct {
	once sync.Once
	sub  Subscription
	log  *zap.Logger
}

func newLease(sub Subscription, log *zap.Logger) *lease {
	return &lease{sub: sub, log: log}
}

func (l *lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if err := l.sub.Close(); err != nil {
			l.log.Warn("feed unsubscribe failed", zap.Error(err))
		}
	})
}
