package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"event_chat/internal/service"
)

type ParticipantHandler struct {
	participants *service.ParticipantService
	log          *zap.Logger
}

func NewParticipantHandler(participants *service.ParticipantService, log *zap.Logger) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, log: log}
}

type JoinInput struct {
	DisplayName string `json:"display_name" binding:"required"`
	Pseudonym   string `json:"pseudonym"`
	Color       string `json:"color"`
}

// Join 加入活動；重複加入回傳 200 與既有資料
func (h *ParticipantHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input JoinInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, created, err := h.participants.Join(c.Request.Context(), c.Param("eventID"), userID, service.JoinInput{
		DisplayName: input.DisplayName,
		Pseudonym:   input.Pseudonym,
		Color:       input.Color,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, service.ParticipantToWire(p))
}

// Lookup 以穩定身份查詢參與者；"me" 代表呼叫者自己
// 只有同一活動的成員可以查詢
func (h *ParticipantHandler) Lookup(c *gin.Context) {
	callerID, ok := currentUser(c)
	if !ok {
		return
	}
	eventID := c.Param("eventID")
	ctx := c.Request.Context()

	target := callerID
	if raw := c.Param("userID"); raw != "me" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "錯誤的用戶ID"})
			return
		}
		target = uint(id)
	}

	if target != callerID {
		if _, err := h.participants.Membership(ctx, eventID, callerID); err != nil {
			respondError(c, h.log, err)
			return
		}
	}
	p, err := h.participants.Lookup(ctx, eventID, target)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, service.ParticipantToWire(p))
}
