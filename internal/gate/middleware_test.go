package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/xela07ax/finagent-gateway/internal/audit"
	"github.com/xela07ax/finagent-gateway/internal/authority"
	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

type memAuditor struct {
	mu     sync.Mutex
	events []audit.DecisionEvent
}

func (a *memAuditor) Log(e audit.DecisionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *memAuditor) last(t *testing.T) audit.DecisionEvent {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return a.events[len(a.events)-1]
}

type memApprovals struct {
	mu       sync.Mutex
	created  []*domain.ApprovalRequest
	approved map[string]bool
}

func newMemApprovals() *memApprovals {
	return &memApprovals{approved: make(map[string]bool)}
}

func (s *memApprovals) Create(_ context.Context, req *domain.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, req)
	return nil
}

func (s *memApprovals) IsApproved(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approved[id], nil
}

type testServer struct {
	router    *chi.Mux
	auditor   *memAuditor
	approvals *memApprovals
	metrics   *Metrics
	executed  *bool
}

func newTestServer(t *testing.T, approvals *memApprovals) *testServer {
	t.Helper()
	logger := zap.NewNop()
	roles := authority.NewRoleAuthority(authority.SeedRoleProfiles(), logger)
	whitelist := authority.NewWhitelistAuthority(authority.SeedWhitelist(), logger)
	g := New(roles, whitelist, logger)

	auditor := &memAuditor{}
	metrics := NewMetrics(nil)
	var mw *Middleware
	if approvals != nil {
		mw = NewMiddleware(g, DefaultActions(), auditor, metrics, approvals, logger)
	} else {
		mw = NewMiddleware(g, DefaultActions(), auditor, metrics, nil, logger)
	}

	executed := false
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executed = true
		d, ok := DecisionFromContext(r.Context())
		if !ok || !d.Allowed {
			t.Error("final handler reached without an allowing decision in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	r := chi.NewRouter()
	r.With(TracingMiddleware, mw.Authorize).Post("/v1/actions/{action}", final)

	return &testServer{router: r, auditor: auditor, approvals: approvals, metrics: metrics, executed: &executed}
}

func doAction(ts *testServer, action string, body map[string]any, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/actions/"+action, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeDeny(t *testing.T, rec *httptest.ResponseRecorder) denyResponse {
	t.Helper()
	var resp denyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode deny response: %v", err)
	}
	return resp
}

func TestMiddleware_ForbiddenAction(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "place_order_ibkr", map[string]any{
		"user_role":     "analysis_only",
		"user_id":       "u-1",
		"order_payload": map[string]any{"qty": 10, "limit_price": 50, "symbol": "SPY"},
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeDeny(t, rec)
	if resp.Code != domain.CodeActionForbidden {
		t.Fatalf("expected ACTION_FORBIDDEN, got %s", resp.Code)
	}
	if resp.TraceID == "" {
		t.Fatal("deny response must carry the trace id")
	}
	if *ts.executed {
		t.Fatal("denied request must not reach the final handler")
	}
	if ev := ts.auditor.last(t); ev.Allowed || ev.Code != string(domain.CodeActionForbidden) {
		t.Fatalf("denial must be audited, got %+v", ev)
	}
}

func TestMiddleware_UnknownRoleSubstituted(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "place_order_ibkr", map[string]any{
		"user_role":     "super_admin",
		"user_id":       "u-2",
		"order_payload": map[string]any{"qty": 1, "limit_price": 100, "symbol": "SPY"},
	}, nil)

	// Мусорная роль деградирует до analysis_only и упирается в запрет ордеров
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	resp := decodeDeny(t, rec)
	if resp.Role != domain.RoleAnalysisOnly {
		t.Fatalf("unknown role must degrade to analysis_only, got %s", resp.Role)
	}
	if ev := ts.auditor.last(t); !ev.RoleSubstituted {
		t.Fatal("substitution must be flagged in the audit event")
	}
}

func TestMiddleware_RiskLimitsDenied(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "place_order_alpaca", map[string]any{
		"user_role":     "auto_execute_with_limits",
		"user_id":       "u-3",
		"order_payload": map[string]any{"qty": 100, "limit_price": 60, "symbol": "SPY"},
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeDeny(t, rec); resp.Code != domain.CodeRiskLimitsExceeded {
		t.Fatalf("expected RISK_LIMITS_EXCEEDED, got %s", resp.Code)
	}
}

func TestMiddleware_MalformedOrderPayload(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "place_order_ibkr", map[string]any{
		"user_role": "auto_execute_with_limits",
		"user_id":   "u-4",
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeDeny(t, rec); resp.Code != domain.CodeInvalidOrderPayload {
		t.Fatalf("expected INVALID_ORDER_PAYLOAD, got %s", resp.Code)
	}
}

// Мусорный payload с нулевым notional проскочил бы все числовые лимиты —
// такие заявки должны умирать на транспорте, не доходя до исполнения
func TestMiddleware_GarbageOrderPayloadRejected(t *testing.T) {
	cases := map[string]map[string]any{
		"empty":          {},
		"zero_qty":       {"qty": 0, "limit_price": 450.0, "symbol": "SPY"},
		"negative_qty":   {"qty": -10, "limit_price": 450.0, "symbol": "SPY"},
		"negative_price": {"qty": 10, "limit_price": -1.0, "symbol": "SPY"},
		"no_symbol":      {"qty": 10, "limit_price": 450.0},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			rec := doAction(ts, "place_order_ibkr", map[string]any{
				"user_role":     "auto_execute_with_limits",
				"user_id":       "u-4",
				"order_payload": payload,
			}, nil)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
			if resp := decodeDeny(t, rec); resp.Code != domain.CodeInvalidOrderPayload {
				t.Fatalf("expected INVALID_ORDER_PAYLOAD, got %s", resp.Code)
			}
			if *ts.executed {
				t.Fatal("garbage order reached the downstream handler")
			}
		})
	}
}

func TestMiddleware_MissingURL(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "fetch_market_data", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-5",
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeDeny(t, rec); resp.Code != domain.CodeMissingURL {
		t.Fatalf("expected MISSING_URL, got %s", resp.Code)
	}
}

func TestMiddleware_URLFieldAliases(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, field := range []string{"url", "source_url", "target_url"} {
		rec := doAction(ts, "fetch_market_data", map[string]any{
			"user_role": "analysis_only",
			"user_id":   "u-6",
			field:       "https://finnhub.io/api/v1/quote",
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("field %q: expected 200, got %d: %s", field, rec.Code, rec.Body.String())
		}
	}
}

func TestMiddleware_InvalidNewsSources(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "fetch_news", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-7",
		"sources":   []string{"bloomberg", "random-blog"},
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	resp := decodeDeny(t, rec)
	if resp.Code != domain.CodeInvalidNewsSources {
		t.Fatalf("expected INVALID_NEWS_SOURCES, got %s", resp.Code)
	}
	if len(resp.Violations) != 1 || resp.Violations[0] != "random-blog" {
		t.Fatalf("only unmatched sources must be reported, got %v", resp.Violations)
	}
}

func TestMiddleware_EmptySources(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "fetch_news", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-8",
		"sources":   []string{},
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if resp := decodeDeny(t, rec); resp.Code != domain.CodeInvalidSources {
		t.Fatalf("expected INVALID_SOURCES, got %s", resp.Code)
	}
}

func TestMiddleware_ValidNewsSourcesPass(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "fetch_news", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-9",
		"sources":   []string{"bloomberg", "reuters.com"},
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !*ts.executed {
		t.Fatal("allowed request must reach the final handler")
	}
}

func TestMiddleware_PendingConfirmationFlow(t *testing.T) {
	approvals := newMemApprovals()
	ts := newTestServer(t, approvals)

	body := map[string]any{
		"user_role":     "confirm_to_execute",
		"user_id":       "u-10",
		"order_payload": map[string]any{"qty": 10, "limit_price": 100, "symbol": "AAPL"},
	}

	// Первый заход: сделка в лимитах, но роль требует подтверждения
	rec := doAction(ts, "place_order_ibkr", body, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var pending struct {
		Status     string `json:"status"`
		ApprovalID string `json:"approval_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("failed to decode pending response: %v", err)
	}
	if pending.Status != "pending_confirmation" || pending.ApprovalID == "" {
		t.Fatalf("unexpected pending response: %+v", pending)
	}
	if len(approvals.created) != 1 || approvals.created[0].Status != domain.ApprovalPending {
		t.Fatalf("approval request must be registered as PENDING, got %+v", approvals.created)
	}
	if *ts.executed {
		t.Fatal("suspended request must not reach the final handler")
	}

	// Повтор без одобрения — снова 202 (новая заявка, решение оператора важнее ретраев)
	rec = doAction(ts, "place_order_ibkr", body, map[string]string{"X-Approval-ID": pending.ApprovalID})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unapproved retry must stay suspended, got %d", rec.Code)
	}

	// Оператор одобрил — повтор с тем же ID проходит насквозь
	approvals.mu.Lock()
	approvals.approved[pending.ApprovalID] = true
	approvals.mu.Unlock()

	rec = doAction(ts, "place_order_ibkr", body, map[string]string{"X-Approval-ID": pending.ApprovalID})
	if rec.Code != http.StatusOK {
		t.Fatalf("approved retry must pass, got %d: %s", rec.Code, rec.Body.String())
	}
	if !*ts.executed {
		t.Fatal("approved request must reach the final handler")
	}
}

func TestMiddleware_PlainActionAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "analyze_portfolio", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-11",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ev := ts.auditor.last(t)
	if !ev.Allowed || ev.Action != "analyze_portfolio" {
		t.Fatalf("allowed decision must be audited, got %+v", ev)
	}
}

func TestMiddleware_UnknownActionDenied(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := doAction(ts, "transfer_funds", map[string]any{
		"user_role": "auto_execute_with_limits",
		"user_id":   "u-12",
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown action must hit deny-by-default, got %d", rec.Code)
	}
	if resp := decodeDeny(t, rec); resp.Code != domain.CodeActionForbidden {
		t.Fatalf("expected ACTION_FORBIDDEN, got %s", resp.Code)
	}
}

// Каждый запрос попадает в gate_decisions_total ровно один раз,
// включая отказы уровня транспорта — иначе соотношение denials/decisions врет
func TestMiddleware_EveryOutcomeCountedAsTraffic(t *testing.T) {
	ts := newTestServer(t, nil)

	// transport-отказ: MISSING_URL до вызова ядра
	doAction(ts, "fetch_market_data", map[string]any{
		"user_role": "confirm_to_execute",
		"user_id":   "u-13",
	}, nil)
	// отказ ядра
	doAction(ts, "place_order_ibkr", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-13",
	}, nil)
	// разрешенный запрос
	doAction(ts, "analyze_portfolio", map[string]any{
		"user_role": "analysis_only",
		"user_id":   "u-13",
	}, nil)

	checks := map[string]prometheus.Counter{
		"transport denial": ts.metrics.DecisionsTotal.WithLabelValues("confirm_to_execute", "fetch_market_data"),
		"core denial":      ts.metrics.DecisionsTotal.WithLabelValues("analysis_only", "place_order_ibkr"),
		"allowed":          ts.metrics.DecisionsTotal.WithLabelValues("analysis_only", "analyze_portfolio"),
	}
	for name, c := range checks {
		if got := testutil.ToFloat64(c); got != 1 {
			t.Errorf("%s: expected 1 decision counted, got %v", name, got)
		}
	}
}
