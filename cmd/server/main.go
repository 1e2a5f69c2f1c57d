// Package main runs the classroom polling server: a gin HTTP server with the
// WebSocket event channel, PostgreSQL poll history, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classpulse/backend/config"
	"github.com/classpulse/backend/internal/chat"
	"github.com/classpulse/backend/internal/history"
	"github.com/classpulse/backend/internal/middleware"
	"github.com/classpulse/backend/internal/poll"
	"github.com/classpulse/backend/internal/realtime"
	"github.com/classpulse/backend/internal/registry"
	"github.com/classpulse/backend/pkg/clock"
	"github.com/classpulse/backend/pkg/database"
	"github.com/classpulse/backend/pkg/redis"
	"github.com/classpulse/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// A configured but unreachable database is fatal: without it no poll
	// history can be guaranteed. An unconfigured database falls back to
	// in-memory stores for development.
	var historyStore history.Store
	var chatStore chat.Store
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		historyStore = history.NewPostgresStore(pool)
		chatStore = chat.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, poll history and chat are in-memory only")
		historyStore = history.NewMemoryStore()
		chatStore = chat.NewMemoryStore()
	}

	var pub realtime.Publisher
	var sub realtime.Subscriber
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = pubsub, pubsub
	}

	hub := realtime.NewHub(uuid.New().String(), logger, pub, sub)
	defer hub.Close()

	reg := registry.New(logger)
	engine := poll.NewEngine(historyStore, clock.New(), logger)
	router := realtime.NewRouter(reg, engine, historyStore, chatStore, hub, logger)

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	ginRouter.Use(middleware.Logger(logger))

	historyHandler := history.NewHandler(historyStore, logger)

	ginRouter.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	ginRouter.GET("/polls/history", historyHandler.ListByCreator)
	ginRouter.GET("/ws", realtime.ServeWs(hub, router, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      ginRouter,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
