package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	feedPongWait  = 60 * time.Second
	feedWriteWait = 10 * time.Second

	DefaultReconnectBackoff = 2 * time.Second
	maxReconnectBackoff     = 30 * time.Second
)

// FeedEvent 推送連線上的一個訊框
type FeedEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

const FeedEventMessage = "message"

// WebSocketFeed 以 websocket 連到伺服器的推送端點，斷線後自動重連
type WebSocketFeed struct {
	baseURL string
	session Session
	dialer  *websocket.Dialer
	backoff time.Duration
	log     *zap.Logger
}

func NewWebSocketFeed(baseURL string, session Session, backoff time.Duration, log *zap.Logger) *WebSocketFeed {
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		dialer:  websocket.DefaultDialer,
		backoff: backoff,
		log:     log,
	}
}

func (f *WebSocketFeed) feedURL(filter FeedFilter) (string, error) {
	u, err := url.Parse(f.baseURL + "/api/events/" + url.PathEscape(filter.EventID) + "/feed")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	if filter.ThreadID != "" {
		q := u.Query()
		q.Set("thread_id", filter.ThreadID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Subscribe 開啟推送；第一次連線失敗只記錄，之後在背景重試
func (f *WebSocketFeed) Subscribe(ctx context.Context, filter FeedFilter, handler func(Message)) (Subscription, error) {
	if _, _, ok := f.session.Credentials(); !ok {
		return nil, ErrNotReady
	}
	target, err := f.feedURL(filter)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log := f.log.With(zap.String("event_id", filter.EventID), zap.String("thread_id", filter.ThreadID))
	go f.run(subCtx, sub, target, handler, log)
	return sub, nil
}

func (f *WebSocketFeed) run(ctx context.Context, sub *wsSubscription, target string, handler func(Message), log *zap.Logger) {
	defer close(sub.done)

	backoff := f.backoff
	for {
		conn, err := f.dial(ctx, target)
		if err == nil {
			backoff = f.backoff
			if !sub.attach(conn) {
				conn.Close()
				return
			}
			err = f.readLoop(conn, handler, log)
			sub.detach()
			conn.Close()
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn("feed connection lost, reconnecting", zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxReconnectBackoff)
	}
}

func (f *WebSocketFeed) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	token, _, ok := f.session.Credentials()
	if !ok {
		return nil, ErrNotReady
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := f.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: feed handshake %s", ErrUnauthorized, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return conn, nil
}

func (f *WebSocketFeed) readLoop(conn *websocket.Conn, handler func(Message), log *zap.Logger) error {
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(feedWriteWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var evt FeedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			log.Warn("feed frame parse error", zap.Error(err))
			continue
		}
		if evt.Type != FeedEventMessage {
			continue
		}
		evt.Message.State = StateConfirmed
		handler(evt.Message)
	}
}

type wsSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	once   sync.Once
}

func (s *wsSubscription) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *wsSubscription) detach() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// Close 停止重連並關閉目前連線，等待背景 goroutine 結束
func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.closed = true
		if s.conn != nil {
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(feedWriteWait))
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	<-s.done
	return nil
}
