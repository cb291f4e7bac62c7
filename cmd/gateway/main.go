package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xela07ax/finagent-gateway/internal/audit"
	"github.com/xela07ax/finagent-gateway/internal/authority"
	"github.com/xela07ax/finagent-gateway/internal/connectors"
	"github.com/xela07ax/finagent-gateway/internal/gate"
	"github.com/xela07ax/finagent-gateway/internal/infra"
	"github.com/xela07ax/finagent-gateway/internal/infra/auth"
	"github.com/xela07ax/finagent-gateway/internal/repository/postgres"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
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

	// Контекст для управления жизненным циклом фоновых горутин
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	repo, err := postgres.NewRepo(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres pool", zap.Error(err))
	}
	defer repo.Close()

	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// 3. Холодная загрузка реестров. Пустая БД заполняется seed-данными:
	// шлюз никогда не стартует с пустыми правилами (deny-by-default для всех).
	profiles, err := repo.GetAllProfiles(appCtx)
	if err != nil {
		logger.Fatal("failed to load role profiles", zap.Error(err))
	}
	if len(profiles) == 0 {
		profiles = authority.SeedRoleProfiles()
		if err := repo.SeedProfiles(appCtx, profiles); err != nil {
			logger.Warn("failed to seed role profiles", zap.Error(err))
		}
		logger.Info("role profiles seeded from defaults", zap.Int("count", len(profiles)))
	}

	domains, err := repo.GetAllDomains(appCtx)
	if err != nil {
		logger.Fatal("failed to load whitelist", zap.Error(err))
	}
	if len(domains) == 0 {
		domains = authority.SeedWhitelist()
		if err := repo.SeedDomains(appCtx, domains); err != nil {
			logger.Warn("failed to seed whitelist", zap.Error(err))
		}
		logger.Info("whitelist seeded from defaults", zap.Int("count", len(domains)))
	}

	roles := authority.NewRoleAuthority(profiles, logger)
	whitelist := authority.NewWhitelistAuthority(domains, logger)

	// 4. Живое обновление: сигнал из консоли -> полная перезагрузка снапшота
	go gate.ListenRegistryResilient(appCtx, rdb, logger, infra.RedisChanRolesUpdate, func(ctx context.Context) error {
		fresh, err := repo.GetAllProfiles(ctx)
		if err != nil {
			return err
		}
		if len(fresh) > 0 {
			roles.Replace(fresh)
		}
		return nil
	})
	go gate.ListenRegistryResilient(appCtx, rdb, logger, infra.RedisChanWhitelistUpdate, func(ctx context.Context) error {
		fresh, err := repo.GetAllDomains(ctx)
		if err != nil {
			return err
		}
		if len(fresh) > 0 {
			whitelist.Replace(fresh)
		}
		return nil
	})

	// 5. Метрики
	reg := prometheus.NewRegistry()
	metrics := gate.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 6. Decision Trail (пакетная запись вердиктов в Postgres)
	trail := audit.NewTrail(repo, logger)
	trail.SetFillGauge(metrics.AuditBufferFill.Set)
	trail.Start()

	// 7. Сборка ядра
	core := gate.New(roles, whitelist, logger)
	approvals := gate.NewApprovalStore(repo)
	gateMW := gate.NewMiddleware(core, gate.DefaultActions(), trail, metrics, approvals, logger)

	// Исполнение разрешенных действий: Retries + Circuit Breaker + Rate Limit
	executor := gate.NewReliabilityWrapper(&connectors.MockSystemsConnector{})
	execute := gate.NewExecuteHandler(executor, logger)

	// 8. HTTP Server. Порядок защиты: Trace -> Recoverer -> Auth -> Gate
	var authMW func(http.Handler) http.Handler
	if pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey); err == nil {
		authMW = auth.NewMiddleware(auth.NewBaseValidator(pubKey), logger)
	} else {
		// Без ключа токены не проверяются: роль берется из тела запроса.
		// Допустимо только в закрытом контуре разработки.
		logger.Warn("RS256 public key not configured, token verification disabled", zap.Error(err))
		authMW = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Use(gate.TracingMiddleware)
	r.Use(chimw.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(authMW)
		r.With(gateMW.Authorize).Post("/v1/actions/{action}", execute.ServeHTTP)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("authorization gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("authorization gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Останавливаем фоновые горутины и дожимаем буфер аудита в БД
	cancel()
	trail.Stop()

	logger.Info("authorization gateway stopped")
}
