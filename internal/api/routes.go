package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"event_chat/internal/api/handlers"
	"event_chat/internal/middleware"
	"event_chat/internal/service"
	"event_chat/internal/utils"
)

// Deps 路由需要的共用元件
type Deps struct {
	Services *service.Services
	Tokens   *utils.JWTManager
	Limiter  *middleware.RateLimiter
	Log      *zap.Logger
	// Metrics 為 nil 時不掛載 /metrics
	Metrics http.Handler
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	services := deps.Services

	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User, deps.Tokens, log)
	participantHandler := handlers.NewParticipantHandler(services.Participant, log)
	threadHandler := handlers.NewThreadHandler(services.Thread, log)
	messageHandler := handlers.NewMessageHandler(services.Message, log)
	feedHandler := handlers.NewFeedHandler(services.Participant, services.Thread, services.Feed, log)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	var sendLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		sendLimit = deps.Limiter.Middleware()
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		events := authorized.Group("/events/:eventID")
		{
			// 參與者
			events.POST("/participants", participantHandler.Join)
			events.GET("/participants/:userID", participantHandler.Lookup)

			// 私訊串與訊息
			events.GET("/threads", threadHandler.List)
			events.GET("/messages", messageHandler.List)
			events.POST("/messages", sendLimit, messageHandler.Create)

			// WebSocket 推送
			events.GET("/feed", feedHandler.Subscribe)
		}
	}
}

// MetricsHandler 預設 registry 的 Prometheus 匯出
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
