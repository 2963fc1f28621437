package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"reze-chat/internal/config"
	"reze-chat/internal/gateway"
	apihttp "reze-chat/internal/http"
	"reze-chat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, nil, logger)
	exchangeSvc := service.NewExchangeService(gw, logger, cfg.ExchangeTimeout, cfg.HistoryPushTimeout, cfg.MaxMessageLength)
	sessionSvc := service.NewSessionService(gw, exchangeSvc, logger)
	registry := service.NewConversationRegistry(sessionSvc, exchangeSvc, logger, cfg.ConversationTTL)
	go registry.Run(ctx, time.Minute)

	limiter := service.NewMemoryExchangeRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limiter", zap.Error(err))
		} else {
			limiter = service.NewRedisExchangeRateLimiter(redisClient, logger, cfg.RateLimitWindow, cfg.RateLimitMax)
		}
		cancel()
	}

	chatHandler := apihttp.NewChatHandler(logger, registry, cfg.MaxMessageLength)
	siteHandler := apihttp.NewSiteHandler(logger, cfg.SiteBaseURL)
	router := apihttp.NewRouter(logger, chatHandler, siteHandler, limiter)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HistoryPushTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("gateway", cfg.GatewayBaseURL),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}

	// los pushes de historial en vuelo tienen su propio timeout
	exchangeSvc.WaitPushes()
	logger.Info("server stopped")
}
