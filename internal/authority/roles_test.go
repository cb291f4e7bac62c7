package authority

import (
	"reflect"
	"strings"
	"testing"

	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

func newTestRoles(t *testing.T) *RoleAuthority {
	t.Helper()
	return NewRoleAuthority(SeedRoleProfiles(), zap.NewNop())
}

func TestCanExecute_DenyByDefault(t *testing.T) {
	a := newTestRoles(t)

	// Действия, которых нет в allow-list ни одной роли
	for _, action := range []string{"delete_account", "transfer_funds", ""} {
		for _, role := range []domain.Role{
			domain.RoleAnalysisOnly,
			domain.RoleConfirmToExecute,
			domain.RoleAutoExecuteWithLimits,
		} {
			check := a.CanExecute(role, action)
			if check.Allowed {
				t.Errorf("role %s: action %q must be denied by default", role, action)
			}
			if check.Reason == "" {
				t.Errorf("role %s: denial must carry a reason", role)
			}
		}
	}
}

func TestCanExecute_UnknownRole(t *testing.T) {
	a := newTestRoles(t)

	check := a.CanExecute(domain.Role("superuser"), ActionAnalyzePortfolio)
	if check.Allowed {
		t.Fatal("unknown role must be denied")
	}
}

func TestCanExecute_BlockedWinsOverAllowed(t *testing.T) {
	profiles := SeedRoleProfiles()
	// Искусственно кладем одно действие в оба списка
	profiles[1].BlockedActions = append(profiles[1].BlockedActions, ActionPlaceOrderIBKR)

	a := NewRoleAuthority(profiles, zap.NewNop())
	check := a.CanExecute(domain.RoleConfirmToExecute, ActionPlaceOrderIBKR)
	if check.Allowed {
		t.Fatal("blocked action must win over allowed")
	}
}

func TestCanExecute_AnalysisOnlyScenario(t *testing.T) {
	a := newTestRoles(t)

	check := a.CanExecute(domain.RoleAnalysisOnly, ActionPlaceOrderIBKR)
	if check.Allowed {
		t.Fatal("analysis_only must not place orders")
	}

	check = a.CanExecute(domain.RoleAnalysisOnly, ActionFetchMarketData)
	if !check.Allowed {
		t.Fatalf("analysis_only must read market data, got reason %q", check.Reason)
	}
	if check.RequiresConfirmation {
		t.Fatal("analysis_only reads must not require confirmation")
	}
}

func TestCheckRiskLimits_ConfirmationIndependence(t *testing.T) {
	a := newTestRoles(t)

	// AAPL 50 × 150 = 7500: в пределах maxNotional=10000, но выше confirm_above=1000
	check := a.CheckRiskLimits(domain.RoleConfirmToExecute, domain.TradeAttrs{
		Symbol:   "AAPL",
		Notional: 7500,
	})
	if !check.WithinLimits {
		t.Fatalf("trade must be within limits, violations: %v", check.Violations)
	}
	if !check.RequiresConfirmation {
		t.Fatal("notional above threshold must require confirmation")
	}
}

func TestCheckRiskLimits_InstrumentOutsideAllowList(t *testing.T) {
	a := newTestRoles(t)

	// AAPL нет в списке [SPY QQQ IWM TLT] роли auto_execute_with_limits
	check := a.CheckRiskLimits(domain.RoleAutoExecuteWithLimits, domain.TradeAttrs{
		Symbol:   "AAPL",
		Notional: 1500,
	})
	if check.WithinLimits {
		t.Fatal("AAPL must violate the instrument allow-list")
	}
	found := false
	for _, v := range check.Violations {
		if strings.Contains(v, "AAPL") {
			found = true
		}
	}
	if !found {
		t.Fatalf("violation must mention the offending symbol, got %v", check.Violations)
	}
}

func TestCheckRiskLimits_AllViolationsCollected(t *testing.T) {
	a := newTestRoles(t)

	// Сразу три нарушения: нотионал, инструмент, доля позиции
	check := a.CheckRiskLimits(domain.RoleAutoExecuteWithLimits, domain.TradeAttrs{
		Symbol:          "TSLA",
		Notional:        50000,
		PositionPercent: 45,
	})
	if check.WithinLimits {
		t.Fatal("trade must be outside limits")
	}
	if len(check.Violations) != 3 {
		t.Fatalf("expected 3 distinct violations, got %d: %v", len(check.Violations), check.Violations)
	}
}

func TestCheckRiskLimits_Monotonicity(t *testing.T) {
	a := newTestRoles(t)

	limit := 5000.0 // maxNotionalPerTrade роли auto_execute_with_limits
	within := true
	for _, notional := range []float64{100, 4999, 5000, 5001, 9000, 100000} {
		check := a.CheckRiskLimits(domain.RoleAutoExecuteWithLimits, domain.TradeAttrs{
			Symbol:   "SPY",
			Notional: notional,
		})
		if notional <= limit && !check.WithinLimits {
			t.Fatalf("notional %.0f must be within limits", notional)
		}
		if notional > limit && check.WithinLimits {
			t.Fatalf("notional %.0f must violate limits", notional)
		}
		// Однажды вышли за предел — обратно не возвращаемся
		if !within && check.WithinLimits {
			t.Fatal("withinLimits flipped back after exceeding the limit")
		}
		within = check.WithinLimits
	}
}

func TestCanAutoExecute(t *testing.T) {
	a := newTestRoles(t)

	cases := []struct {
		role domain.Role
		want bool
	}{
		{domain.RoleAnalysisOnly, false},         // Исполнение запрещено
		{domain.RoleConfirmToExecute, false},     // Исполнение есть, но всегда с подтверждением
		{domain.RoleAutoExecuteWithLimits, true}, // Оба флага в нужном положении
		{domain.Role("unknown"), false},          // Неизвестная роль
	}
	for _, c := range cases {
		if got := a.CanAutoExecute(c.role); got != c.want {
			t.Errorf("CanAutoExecute(%s) = %v, want %v", c.role, got, c.want)
		}
	}
}

func TestSetCustomRiskLimits(t *testing.T) {
	a := newTestRoles(t)

	newMax := 2500.0
	if err := a.SetCustomRiskLimits(domain.RoleAutoExecuteWithLimits, domain.RiskLimitsPatch{
		MaxNotionalPerTrade: &newMax,
	}); err != nil {
		t.Fatalf("SetCustomRiskLimits: %v", err)
	}

	check := a.CheckRiskLimits(domain.RoleAutoExecuteWithLimits, domain.TradeAttrs{
		Symbol:   "SPY",
		Notional: 3000,
	})
	if check.WithinLimits {
		t.Fatal("3000 must violate the overridden limit 2500")
	}

	// Патч не должен трогать остальные поля
	p, err := a.Profile(domain.RoleAutoExecuteWithLimits)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Limits.RequiresConfirmationAbove != 2000 {
		t.Fatalf("untouched field changed: %v", p.Limits.RequiresConfirmationAbove)
	}

	if err := a.SetCustomRiskLimits(domain.Role("ghost"), domain.RiskLimitsPatch{}); err == nil {
		t.Fatal("patching an unknown role must fail")
	}
}

func TestCanExecute_Idempotent(t *testing.T) {
	a := newTestRoles(t)

	first := a.CanExecute(domain.RoleConfirmToExecute, ActionPlaceOrderAlpaca)
	second := a.CanExecute(domain.RoleConfirmToExecute, ActionPlaceOrderAlpaca)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical input produced different output: %+v vs %+v", first, second)
	}
}
