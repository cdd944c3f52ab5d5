package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"event_chat/internal/api"
	"event_chat/internal/logging"
	"event_chat/internal/middleware"
	"event_chat/internal/models"
	"event_chat/internal/repository"
	"event_chat/internal/service"
	"event_chat/internal/storage"
	"event_chat/internal/utils"
	"event_chat/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 載入應用程式配置
	// 從配置文件與環境變數中讀取設置，如數據庫連接信息和服務器地址等
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is required (EVENTCHAT_AUTH_JWT_SECRET)")
	}

	// 初始化資料庫連接
	db, err := storage.New(cfg.DB)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to auto migrate database", zap.Error(err))
	}

	// 初始化 repositories 與 services
	repos := repository.NewRepositories(db)
	metrics := service.NewMetrics(prometheus.DefaultRegisterer)
	services := service.NewServices(repos, nil, metrics, logger)

	limiter := middleware.NewRateLimiter(cfg.Limits.SendRPS, cfg.Limits.SendBurst)
	defer limiter.Close()

	// 設置 Gin 路由
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(logger.Named("http")))
	api.SetupRoutes(r, api.Deps{
		Services: services,
		Tokens:   utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:  limiter,
		Log:      logger,
		Metrics:  api.MetricsHandler(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// 先關閉推送連線，Shutdown 不會等待已劫持的連線
	services.Feed.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
