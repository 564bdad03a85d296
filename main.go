package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"crmapi/internal/authz"
	"crmapi/internal/cache"
	"crmapi/internal/config"
	"crmapi/internal/database"
	"crmapi/internal/handlers"
	"crmapi/internal/logger"
	"crmapi/internal/middleware"
	"crmapi/internal/org"
	"crmapi/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Server.Env); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	if err := database.InitDB(&cfg.DB); err != nil {
		logger.Get().Fatal("database init failed", zap.Error(err))
	}
	defer database.CloseDB()

	if err := database.RunMigrations("migrations"); err != nil {
		logger.Get().Fatal("migrations failed", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Wire auth and middleware shared state
	handlers.Rdb = rdb
	handlers.InitAuth(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	middleware.PublicKey = handlers.PublicKey
	middleware.Rdb = rdb
	middleware.AllowedOrigins = cfg.Server.AllowedOrigins

	// Wire the authorization core
	store := org.NewStore(database.DB)
	resolver := org.NewResolver(store)
	handlers.OrgStore = store
	handlers.Resolver = resolver
	handlers.Guard = authz.NewGuard(resolver, store)
	handlers.Views = cache.NewViews(rdb, cfg.Cache.TTL)

	r := routes.SetupRoutes()

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Get().Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Get().Fatal("listen error", zap.Error(err))
		}
	}()

	// Stop on Ctrl+C, docker stop, kill
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.Get().Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Get().Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Get().Info("server exited gracefully")
}
