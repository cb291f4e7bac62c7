package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/xela07ax/finagent-gateway/internal/console/handler"
	"github.com/xela07ax/finagent-gateway/internal/console/server"
	"github.com/xela07ax/finagent-gateway/internal/console/service"
	"github.com/xela07ax/finagent-gateway/internal/infra"
	"github.com/xela07ax/finagent-gateway/internal/infra/auth"
	"github.com/xela07ax/finagent-gateway/internal/repository/postgres"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Инициализация ресурсов
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	repo, err := postgres.NewRepo(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres pool", zap.Error(err))
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()
	defer repo.Close()

	// 3. Ключи RS256: консоль и подписывает (private), и проверяет (public)
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("invalid RS256 public key", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("invalid RS256 private key", zap.Error(err))
	}

	// 4. Инициализация слоев (Dependency Injection)
	authService := service.NewAuthService(repo, auth.NewBaseValidator(pubKey), privKey, cfg.Auth.TokenTTL)
	registryService := service.NewRegistryService(repo, rdb, logger)
	approvalService := service.NewApprovalService(repo, rdb, logger)
	auditService := service.NewAuditService(repo)

	srv := server.NewConsoleServer(
		cfg,
		logger,
		authService,
		handler.NewAuthHandler(authService),
		handler.NewRolesHandler(registryService),
		handler.NewWhitelistHandler(registryService),
		handler.NewApprovalHandler(approvalService),
		handler.NewDashboardHandler(auditService),
		handler.NewAuditHandler(auditService),
	)

	// 5. Запуск сервера
	httpSrv := &http.Server{
		Addr:         ":8000",
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("console API started", zap.String("addr", httpSrv.Addr))
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Fatal("console server stopped", zap.Error(err))
	}
}
