package service

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"event_chat/internal/chatsync"
)

const (
	feedReadLimit    = 4096
	feedPongWait     = 60 * time.Second
	feedPingInterval = 54 * time.Second
	feedWriteWait    = 10 * time.Second
	feedQueueSize    = 256
)

// FeedClient 一條推送連線；threadID 為空時只接收廣播頻道
type FeedClient struct {
	Conn          *websocket.Conn
	EventID       string
	ThreadID      string
	ParticipantID string
	SendChan      chan chatsync.FeedEvent // 消息發送通道，用於異步傳送消息
}

// FeedHub 管理所有推送連線，依活動分組
type FeedHub struct {
	clients    map[string]map[*FeedClient]struct{} // eventID -> client
	clientsMux sync.RWMutex
	log        *zap.Logger
	metrics    *Metrics
}

func NewFeedHub(log *zap.Logger, metrics *Metrics) *FeedHub {
	return &FeedHub{
		clients: make(map[string]map[*FeedClient]struct{}),
		log:     log,
		metrics: metrics,
	}
}

// HandleConnection 接管已升級的連線直到斷線
func (h *FeedHub) HandleConnection(conn *websocket.Conn, eventID, threadID, participantID string) {
	client := &FeedClient{
		Conn:          conn,
		EventID:       eventID,
		ThreadID:      threadID,
		ParticipantID: participantID,
		SendChan:      make(chan chatsync.FeedEvent, feedQueueSize),
	}

	h.addClient(client)
	defer h.removeClient(client)

	go h.writePump(client)
	h.readPump(client)
}

// readPump 只處理控制訊框；客戶端送來的資料一律忽略
func (h *FeedHub) readPump(client *FeedClient) {
	client.Conn.SetReadLimit(feedReadLimit)
	client.Conn.SetReadDeadline(time.Now().Add(feedPongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("feed unexpected close", zap.String("participant_id", client.ParticipantID), zap.Error(err))
			}
			return
		}
	}
}

// writePump 把佇列中的事件寫到連線並定期發送心跳
func (h *FeedHub) writePump(client *FeedClient) {
	ticker := time.NewTicker(feedPingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.Conn.WriteJSON(evt); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish 把新訊息推給同一活動中過濾條件相符的連線
func (h *FeedHub) Publish(eventID string, msg chatsync.Message) {
	evt := chatsync.FeedEvent{Type: chatsync.FeedEventMessage, Message: msg}

	var slow []*FeedClient
	h.clientsMux.RLock()
	for client := range h.clients[eventID] {
		if client.ThreadID != msg.PrivateThreadID {
			continue
		}
		select {
		case client.SendChan <- evt:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMux.RUnlock()

	// 佇列已滿的客戶端直接斷線，讓它重連後重新抓取
	for _, client := range slow {
		h.log.Warn("feed client too slow, disconnecting", zap.String("participant_id", client.ParticipantID))
		h.metrics.clientDropped()
		h.removeClient(client)
	}
}

func (h *FeedHub) addClient(client *FeedClient) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if h.clients[client.EventID] == nil {
		h.clients[client.EventID] = make(map[*FeedClient]struct{})
	}
	h.clients[client.EventID][client] = struct{}{}
	h.metrics.clientConnected()
}

// removeClient 只在第一次呼叫時關閉發送通道
func (h *FeedHub) removeClient(client *FeedClient) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	clients, ok := h.clients[client.EventID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.EventID)
	}
	close(client.SendChan)
	h.metrics.clientDisconnected()
}

// ClientCount 獲取指定活動的在線連線數量
func (h *FeedHub) ClientCount(eventID string) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	return len(h.clients[eventID])
}

// Close 關閉所有連線，伺服器關機時使用
func (h *FeedHub) Close() {
	h.clientsMux.RLock()
	var all []*FeedClient
	for _, clients := range h.clients {
		for client := range clients {
			all = append(all, client)
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range all {
		h.removeClient(client)
	}
}
