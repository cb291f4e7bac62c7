package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/finagent-gateway/internal/console/handler"
	"github.com/xela07ax/finagent-gateway/internal/console/service"
	"github.com/xela07ax/finagent-gateway/internal/infra"
	"github.com/xela07ax/finagent-gateway/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// AuthService реализует auth.TokenValidator (RS256)
	// через embedding BaseValidator
	authService *service.AuthService

	// Обработчики бизнес-доменов
	authHandler      *handler.AuthHandler      // /auth/token
	rolesHandler     *handler.RolesHandler     // /v1/roles
	whitelistHandler *handler.WhitelistHandler // /v1/whitelist
	approvalHandler  *handler.ApprovalHandler  // /v1/approvals (HITL)
	dashHandler      *handler.DashboardHandler // /api/v1/dashboard
	auditHandler     *handler.AuditHandler     // /v1/audit (Decision Trail)
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	authService *service.AuthService,
	authH *handler.AuthHandler,
	rolesH *handler.RolesHandler,
	whitelistH *handler.WhitelistHandler,
	approvalH *handler.ApprovalHandler,
	dashH *handler.DashboardHandler,
	auditH *handler.AuditHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:           chi.NewRouter(),
		logger:           logger.Named("console-api"),
		cfg:              cfg,
		authService:      authService,
		authHandler:      authH,
		rolesHandler:     rolesH,
		whitelistHandler: whitelistH,
		approvalHandler:  approvalH,
		dashHandler:      dashH,
		auditHandler:     auditH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authService, s.logger))

		// Dashboard & Stats
		r.Get("/api/v1/dashboard/stats", s.dashHandler.GetStats)

		// Профили ролей (источник истины для RoleAuthority)
		r.Route("/v1/roles", func(r chi.Router) {
			r.Get("/", s.rolesHandler.List) // Все роли с лимитами
			r.Route("/{role}", func(r chi.Router) {
				r.Get("/", s.rolesHandler.Get)                // Детали профиля
				r.Put("/limits", s.rolesHandler.UpdateLimits) // Патч лимитов + Redis Publish
			})
		})

		// Белый список доменов (источник истины для WhitelistAuthority)
		r.Route("/v1/whitelist", func(r chi.Router) {
			r.Get("/", s.whitelistHandler.List)
			r.Post("/", s.whitelistHandler.Add)      // Upsert (domain, category)
			r.Delete("/", s.whitelistHandler.Remove) // ?domain=...&category=...
			r.Get("/stats", s.whitelistHandler.Stats)
		})

		// Human-in-the-loop (Approvals)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Get("/", s.approvalHandler.List) // Очередь приостановленных действий
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.approvalHandler.GetDetails)
				r.Post("/decide", s.approvalHandler.Decide) // Approve/Reject + Redis Publish
			})
		})

		// Аудит вердиктов (Observability)
		r.Get("/v1/audit", s.auditHandler.GetDecisions)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
