package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/finagent-gateway/internal/audit"
	"github.com/xela07ax/finagent-gateway/internal/domain"
	"github.com/xela07ax/finagent-gateway/internal/infra/auth"
	"go.uber.org/zap"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const (
	traceIDKey  ctxKey = "trace_id"
	decisionKey ctxKey = "gate_decision"
)

// TracingMiddleware инициализирует Trace-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Пытаемся достать ID из заголовка (если пришел от агента/прокси)
		traceID := r.Header.Get("X-Trace-ID")

		// 2. Если его нет — генерируем новый
		if traceID == "" {
			traceID = uuid.New().String()
		}

		// 3. Кладем в контекст
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)

		// 4. Добавляем в ответ, чтобы клиент тоже знал ID своего запроса
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractTraceID помогает безопасно достать ID в любом месте кода
func ExtractTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return "00000000-0000-0000-0000-000000000000" // Fallback
}

// DecisionFromContext отдает вердикт downstream-обработчику.
// Обработчик ОБЯЗАН уважать RequiresConfirmation: side-effect действие
// не выполняется, пока оператор не подтвердил заявку.
func DecisionFromContext(ctx context.Context) (domain.Decision, bool) {
	d, ok := ctx.Value(decisionKey).(domain.Decision)
	return d, ok
}

// ApprovalGate — контракт HITL-потока для middleware.
// Create регистрирует приостановленное действие, IsApproved проверяет
// решение оператора по ранее выданному ID заявки.
type ApprovalGate interface {
	Create(ctx context.Context, req *domain.ApprovalRequest) error
	IsApproved(ctx context.Context, id string) (bool, error)
}

// actionBody — поля тела запроса, которые потребляет шлюз.
// Контракт держится на смысле полей, не на точном наборе ключей:
// url/source_url/target_url равнозначны.
type actionBody struct {
	UserRole string `json:"user_role"`
	UserID   string `json:"user_id"`

	OrderPayload *struct {
		Qty             float64 `json:"qty"`
		LimitPrice      float64 `json:"limit_price"`
		Symbol          string  `json:"symbol"`
		PositionPercent float64 `json:"position_percent"`
	} `json:"order_payload"`

	URL       string   `json:"url"`
	SourceURL string   `json:"source_url"`
	TargetURL string   `json:"target_url"`
	Sources   []string `json:"sources"`
}

func (b actionBody) targetURL() string {
	switch {
	case b.URL != "":
		return b.URL
	case b.SourceURL != "":
		return b.SourceURL
	default:
		return b.TargetURL
	}
}

// denyResponse — структурированное тело 403 для машинного разбора и аудита
type denyResponse struct {
	Code       domain.DenyCode `json:"code"`
	Reason     string          `json:"reason"`
	Violations []string        `json:"violations,omitempty"`
	Role       domain.Role     `json:"role"`
	Action     string          `json:"action"`
	URL        string          `json:"url,omitempty"`
	TraceID    string          `json:"trace_id"`
}

// Middleware — транспортный адаптер над чистым Gate.Authorize.
// Вся HTTP-специфика (разбор тела, коды, approvals) живет здесь,
// ядро решения остается тестируемым без сервера.
type Middleware struct {
	gate      *Gate
	actions   map[string]ActionSpec
	trail     audit.Auditor
	metrics   *Metrics
	approvals ApprovalGate // nil = HITL-поток выключен (агент сам ждет оператора)
	logger    *zap.Logger
}

func NewMiddleware(g *Gate, actions map[string]ActionSpec, trail audit.Auditor, metrics *Metrics, approvals ApprovalGate, logger *zap.Logger) *Middleware {
	return &Middleware{
		gate:      g,
		actions:   actions,
		trail:     trail,
		metrics:   metrics,
		approvals: approvals,
		logger:    logger.Named("gate-http"),
	}
}

// Authorize — сам HTTP-middleware. Ожидает роут вида /v1/actions/{action}.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		action := chi.URLParam(r, "action")

		// Читаем тело и возвращаем его на место для downstream-обработчика
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var body actionBody
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}

		req, deny := m.buildRequest(ctx, action, body)
		if deny != nil {
			m.reject(w, r, req, *deny, raw, start)
			return
		}

		decision := m.gate.Authorize(req)

		if !decision.Allowed {
			m.reject(w, r, req, denyResponse{
				Code:       decision.Code,
				Reason:     firstOr(decision.Violations, "denied"),
				Violations: decision.Violations,
				Role:       req.Role,
				Action:     action,
				URL:        body.targetURL(),
			}, raw, start)
			return
		}

		// Allowed + RequiresConfirmation: действие приостанавливается,
		// пока оператор не решит заявку (HITL)
		if decision.RequiresConfirmation && m.approvals != nil && !m.confirmed(ctx, r) {
			m.suspend(w, r, req, decision, raw, start)
			return
		}

		m.observe(ctx, req, decision, raw, start, "allowed")
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, decisionKey, decision)))
	})
}

// buildRequest собирает ActionRequest из контекста авторизации и тела.
// Отказы уровня транспорта (мусор на входе) возвращаются до вызова ядра —
// у них свои коды, чтобы операторы отличали их от настоящих denial.
func (m *Middleware) buildRequest(ctx context.Context, action string, body actionBody) (domain.ActionRequest, *denyResponse) {
	req := domain.ActionRequest{
		Action: action,
		UserID: body.UserID,
	}
	if req.UserID == "" {
		req.UserID = auth.UserIDFromContext(ctx)
	}

	// Роль: приоритет у токена, затем тело запроса,
	// при отсутствии/мусоре — самая ограниченная роль с пометкой в аудите
	roleStr := auth.RoleFromContext(ctx)
	if roleStr == "" {
		roleStr = body.UserRole
	}
	role, err := domain.ParseRole(roleStr)
	if err != nil {
		role = domain.MostRestrictiveRole
		req.RoleSubstituted = true
		m.metrics.RoleSubstitutions.Inc()
		m.logger.Warn("unknown role substituted",
			zap.String("supplied", roleStr),
			zap.String("effective", string(role)),
			zap.String("action", action),
		)
	}
	req.Role = role

	spec, ok := m.actions[action]
	if !ok {
		// Неизвестное действие дойдет до ядра и упрется в deny-by-default
		spec = ActionSpec{Name: action, Shape: ShapePlain}
	}

	switch spec.Shape {
	case ShapeTrade:
		// Пустой или мусорный payload (qty/limit_price <= 0, нет symbol)
		// дал бы нулевой notional и тривиально прошел все лимиты —
		// отсекаем до ядра
		p := body.OrderPayload
		if p == nil || p.Qty <= 0 || p.LimitPrice <= 0 || p.Symbol == "" {
			return req, &denyResponse{
				Code:   domain.CodeInvalidOrderPayload,
				Reason: "order_payload with positive qty, positive limit_price and symbol is required",
				Role:   role,
				Action: action,
			}
		}
		req.Trade = &domain.TradeAttrs{
			Symbol:          p.Symbol,
			Notional:        p.Qty * p.LimitPrice,
			PositionPercent: p.PositionPercent,
		}

	case ShapeURL:
		target := body.targetURL()
		if target == "" {
			return req, &denyResponse{
				Code:   domain.CodeMissingURL,
				Reason: "url, source_url or target_url is required for this action",
				Role:   role,
				Action: action,
			}
		}
		req.TargetURLs = []string{target}
		req.Category = spec.Category

	case ShapeSources:
		if len(body.Sources) == 0 {
			return req, &denyResponse{
				Code:   domain.CodeInvalidSources,
				Reason: "non-empty sources[] is required for this action",
				Role:   role,
				Action: action,
			}
		}
		if bad := m.invalidSources(body.Sources, spec.Category); len(bad) > 0 {
			return req, &denyResponse{
				Code:       domain.CodeInvalidNewsSources,
				Reason:     "sources not present in the news whitelist",
				Violations: bad,
				Role:       role,
				Action:     action,
			}
		}
	}

	return req, nil
}

// invalidSources сопоставляет голые имена источников ("bloomberg") с доменами
// whitelist категории news ("bloomberg.com")
func (m *Middleware) invalidSources(sources []string, category domain.Category) []string {
	entries := m.gate.whitelist.ListByCategory(category)

	var bad []string
	for _, src := range sources {
		matched := false
		for _, e := range entries {
			if e.Domain == src || hasDomainPrefix(e.Domain, src) {
				matched = true
				break
			}
		}
		if !matched {
			bad = append(bad, src)
		}
	}
	return bad
}

// hasDomainPrefix: "bloomberg" соответствует "bloomberg.com", но не "notbloomberg.com"
func hasDomainPrefix(domainName, src string) bool {
	return len(domainName) > len(src)+1 &&
		domainName[:len(src)] == src &&
		domainName[len(src)] == '.'
}

// confirmed проверяет, что повторный запрос несет ID одобренной заявки
func (m *Middleware) confirmed(ctx context.Context, r *http.Request) bool {
	approvalID := r.Header.Get("X-Approval-ID")
	if approvalID == "" {
		return false
	}
	ok, err := m.approvals.IsApproved(ctx, approvalID)
	if err != nil {
		m.logger.Error("approval lookup failed", zap.String("approval_id", approvalID), zap.Error(err))
		return false
	}
	return ok
}

// suspend регистрирует заявку на подтверждение и отвечает 202
func (m *Middleware) suspend(w http.ResponseWriter, r *http.Request, req domain.ActionRequest, decision domain.Decision, raw []byte, start time.Time) {
	app := &domain.ApprovalRequest{
		ID:          uuid.New().String(),
		ExecutionID: ExtractTraceID(r.Context()),
		UserID:      req.UserID,
		Role:        req.Role,
		Action:      req.Action,
		Payload:     string(raw),
		Status:      domain.ApprovalPending,
	}
	if err := m.approvals.Create(r.Context(), app); err != nil {
		m.logger.Error("failed to create approval request", zap.Error(err))
		http.Error(w, "failed to register approval request", http.StatusInternalServerError)
		return
	}

	m.observe(r.Context(), req, decision, raw, start, "pending_confirmation")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "pending_confirmation",
		"approval_id":  app.ID,
		"execution_id": app.ExecutionID,
		"reason":       "human confirmation required before execution",
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, req domain.ActionRequest, resp denyResponse, raw []byte, start time.Time) {
	resp.TraceID = ExtractTraceID(r.Context())
	// Transport-отказы тоже трафик: иначе деление denials/decisions врет
	m.metrics.DecisionsTotal.WithLabelValues(string(resp.Role), resp.Action).Inc()
	m.metrics.DenialsTotal.WithLabelValues(string(resp.Code)).Inc()

	m.trail.Log(audit.DecisionEvent{
		ID:              uuid.New().String(),
		TraceID:         resp.TraceID,
		UserID:          req.UserID,
		Role:            string(resp.Role),
		Action:          resp.Action,
		Payload:         bytesToMap(raw),
		Allowed:         false,
		Code:            string(resp.Code),
		Violations:      resp.Violations,
		RoleSubstituted: req.RoleSubstituted,
		DurationUs:      time.Since(start).Microseconds(),
	})
	m.metrics.DecisionDuration.
		WithLabelValues(string(resp.Role), resp.Action, "denied").
		Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(resp)
}

func (m *Middleware) observe(ctx context.Context, req domain.ActionRequest, decision domain.Decision, raw []byte, start time.Time, outcome string) {
	m.metrics.DecisionsTotal.WithLabelValues(string(req.Role), req.Action).Inc()
	m.trail.Log(audit.DecisionEvent{
		ID:                   uuid.New().String(),
		TraceID:              ExtractTraceID(ctx),
		UserID:               req.UserID,
		Role:                 string(req.Role),
		Action:               req.Action,
		Payload:              bytesToMap(raw),
		Allowed:              true,
		RequiresConfirmation: decision.RequiresConfirmation,
		RoleSubstituted:      req.RoleSubstituted,
		DurationUs:           time.Since(start).Microseconds(),
	})
	m.metrics.DecisionDuration.
		WithLabelValues(string(req.Role), req.Action, outcome).
		Observe(time.Since(start).Seconds())
}

// Вспомогательный метод для конвертации
func bytesToMap(data []byte) map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(data, &m)
	return m
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}
