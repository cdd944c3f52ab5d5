package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"event_chat/internal/service"
)

type ThreadHandler struct {
	threads *service.ThreadService
	log     *zap.Logger
}

func NewThreadHandler(threads *service.ThreadService, log *zap.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, log: log}
}

// List 回傳呼叫者在活動中的私訊串
func (h *ThreadHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	threads, err := h.threads.List(c.Request.Context(), c.Param("eventID"), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}
