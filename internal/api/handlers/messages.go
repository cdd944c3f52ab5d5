package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"event_chat/internal/chatsync"
	"event_chat/internal/service"
)

// 請求本體上限，內容本身另外以 UTF-16 長度檢查
const maxMessageBody = 64 << 10

type MessageHandler struct {
	messages *service.MessageService
	log      *zap.Logger
}

func NewMessageHandler(messages *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

type listParams struct {
	Channel     string `form:"channel"`
	ThreadID    string `form:"thread_id"`
	RecipientID string `form:"recipient_id"`
	Offset      int    `form:"offset"`
	Limit       int    `form:"limit"`
}

type createInput struct {
	Channel     string `json:"channel" binding:"required"`
	Content     string `json:"content"`
	ThreadID    string `json:"thread_id"`
	RecipientID string `json:"recipient_id"`
	Anonymous   bool   `json:"anonymous"`
	ClientRef   string `json:"client_ref"`
}

// List 由新到舊回傳一頁訊息
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var params listParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.messages.List(c.Request.Context(), service.ListQuery{
		EventID:     c.Param("eventID"),
		UserID:      userID,
		Channel:     chatsync.Channel(params.Channel),
		ThreadID:    params.ThreadID,
		RecipientID: params.RecipientID,
		Offset:      params.Offset,
		Limit:       params.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": page.Messages, "has_more": page.HasMore})
}

// Create 送出訊息；新寫入回 201，相同 client ref 的重送回 200
func (h *MessageHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageBody)

	var input createInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.messages.Create(c.Request.Context(), service.CreateInput{
		EventID:     c.Param("eventID"),
		UserID:      userID,
		Channel:     chatsync.Channel(input.Channel),
		Content:     input.Content,
		ThreadID:    input.ThreadID,
		RecipientID: input.RecipientID,
		Anonymous:   input.Anonymous,
		ClientRef:   input.ClientRef,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	body := gin.H{"message": res.Message}
	if res.ThreadID != "" {
		body["thread_id"] = res.ThreadID
	}
	c.JSON(status, body)
}
