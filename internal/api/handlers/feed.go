package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"event_chat/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 驗證靠 Authorization header 而非 cookie，不檢查 origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedHandler 處理即時推送連線
type FeedHandler struct {
	participants *service.ParticipantService
	threads      *service.ThreadService
	hub          *service.FeedHub
	log          *zap.Logger
}

func NewFeedHandler(participants *service.ParticipantService, threads *service.ThreadService, hub *service.FeedHub, log *zap.Logger) *FeedHandler {
	return &FeedHandler{participants: participants, threads: threads, hub: hub, log: log}
}

// Subscribe 先驗證成員資格再升級連線；帶 thread_id 時只推送該私訊串
func (h *FeedHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	eventID := c.Param("eventID")
	threadID := c.Query("thread_id")
	ctx := c.Request.Context()

	me, err := h.participants.Membership(ctx, eventID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if threadID != "" {
		if _, err := h.threads.Authorize(ctx, eventID, threadID, me.ID); err != nil {
			respondError(c, h.log, err)
			return
		}
	}

	// 升級 HTTP 連接為 WebSocket 連接；失敗時 Upgrade 已寫入回應
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", zap.Error(err))
		return
	}

	h.hub.HandleConnection(conn, eventID, threadID, me.ID)
}
