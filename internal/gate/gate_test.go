package gate

import (
	"strings"
	"testing"

	"github.com/xela07ax/finagent-gateway/internal/authority"
	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	logger := zap.NewNop()
	roles := authority.NewRoleAuthority(authority.SeedRoleProfiles(), logger)
	whitelist := authority.NewWhitelistAuthority(authority.SeedWhitelist(), logger)
	return New(roles, whitelist, logger)
}

func TestAuthorize_RoleForbidden(t *testing.T) {
	g := newTestGate(t)

	d := g.Authorize(domain.ActionRequest{
		Role:   domain.RoleAnalysisOnly,
		Action: authority.ActionPlaceOrderIBKR,
		Trade:  &domain.TradeAttrs{Symbol: "SPY", Notional: 100},
	})

	if d.Allowed {
		t.Fatal("analysis_only must not place orders")
	}
	if d.Code != domain.CodeActionForbidden {
		t.Fatalf("expected ACTION_FORBIDDEN, got %s", d.Code)
	}
	if len(d.Violations) == 0 {
		t.Fatal("expected at least one violation reason")
	}
}

func TestAuthorize_RiskLimitsExceeded(t *testing.T) {
	g := newTestGate(t)

	// auto_execute_with_limits: max notional 5000
	d := g.Authorize(domain.ActionRequest{
		Role:   domain.RoleAutoExecuteWithLimits,
		Action: authority.ActionPlaceOrderIBKR,
		Trade:  &domain.TradeAttrs{Symbol: "SPY", Notional: 6000},
	})

	if d.Allowed {
		t.Fatal("notional above limit must be denied")
	}
	if d.Code != domain.CodeRiskLimitsExceeded {
		t.Fatalf("expected RISK_LIMITS_EXCEEDED, got %s", d.Code)
	}
}

func TestAuthorize_ConfirmationORsAcrossChecks(t *testing.T) {
	g := newTestGate(t)

	// confirm_to_execute: роль сама требует подтверждения,
	// сделка в лимитах, но выше порога confirmAbove (1000)
	d := g.Authorize(domain.ActionRequest{
		Role:   domain.RoleConfirmToExecute,
		Action: authority.ActionPlaceOrderAlpaca,
		Trade:  &domain.TradeAttrs{Symbol: "AAPL", Notional: 7500},
	})

	if !d.Allowed {
		t.Fatalf("trade within limits must be allowed, violations: %v", d.Violations)
	}
	if !d.RequiresConfirmation {
		t.Fatal("confirmation requirement must survive a passing risk check")
	}
}

func TestAuthorize_AutoExecuteSmallTradeNoConfirmation(t *testing.T) {
	g := newTestGate(t)

	d := g.Authorize(domain.ActionRequest{
		Role:   domain.RoleAutoExecuteWithLimits,
		Action: authority.ActionPlaceOrderIBKR,
		Trade:  &domain.TradeAttrs{Symbol: "QQQ", Notional: 1500, PositionPercent: 5},
	})

	if !d.Allowed {
		t.Fatalf("small in-list trade must pass, violations: %v", d.Violations)
	}
	if d.RequiresConfirmation {
		t.Fatal("below-threshold trade for auto role must not require confirmation")
	}
}

func TestAuthorize_URLNotWhitelisted(t *testing.T) {
	g := newTestGate(t)

	d := g.Authorize(domain.ActionRequest{
		Role:       domain.RoleAnalysisOnly,
		Action:     authority.ActionFetchMarketData,
		TargetURLs: []string{"https://evil.example.com/quotes"},
		Category:   domain.CategoryMarketData,
	})

	if d.Allowed {
		t.Fatal("non-whitelisted URL must be denied")
	}
	if d.Code != domain.CodeURLNotWhitelisted {
		t.Fatalf("expected URL_NOT_WHITELISTED, got %s", d.Code)
	}
	if len(d.Violations) != 1 || !strings.Contains(d.Violations[0], "evil.example.com") {
		t.Fatalf("violation must name the offending URL: %v", d.Violations)
	}
}

func TestAuthorize_BulkURLsCollectAllFailures(t *testing.T) {
	g := newTestGate(t)

	d := g.Authorize(domain.ActionRequest{
		Role:   domain.RoleAnalysisOnly,
		Action: authority.ActionLegalResearch,
		TargetURLs: []string{
			"https://www.sec.gov/rules",
			"https://evil.example.com/a",
			"https://bloomberg.com/news", // news, не legal
		},
		Category: domain.CategoryLegal,
	})

	if d.Allowed {
		t.Fatal("batch with invalid URLs must be denied")
	}
	if len(d.Violations) != 2 {
		t.Fatalf("expected 2 violations (valid one excluded), got %v", d.Violations)
	}
}

func TestAuthorize_MatchedEntryAttached(t *testing.T) {
	g := newTestGate(t)

	d := g.Authorize(domain.ActionRequest{
		Role:       domain.RoleAnalysisOnly,
		Action:     authority.ActionLegalResearch,
		TargetURLs: []string{"https://www.sec.gov/rules/proposed"},
		Category:   domain.CategoryLegal,
	})

	if !d.Allowed {
		t.Fatalf("sec.gov legal URL must pass, violations: %v", d.Violations)
	}
	if d.Matched == nil || d.Matched.Domain != "sec.gov" {
		t.Fatalf("expected matched entry sec.gov, got %+v", d.Matched)
	}
}

func TestAuthorize_FailFastSkipsLaterChecks(t *testing.T) {
	g := newTestGate(t)

	// Действие запрещено ролью, URL заведомо мусорный:
	// код отказа должен быть ролевым, не сетевым
	d := g.Authorize(domain.ActionRequest{
		Role:       domain.RoleAnalysisOnly,
		Action:     authority.ActionBrowseWebsite,
		TargetURLs: []string{"://broken"},
		Category:   domain.CategoryComputerUse,
	})

	if d.Allowed {
		t.Fatal("blocked action must be denied")
	}
	if d.Code != domain.CodeActionForbidden {
		t.Fatalf("role-level denial must win, got %s", d.Code)
	}
}

func TestCanAutoExecute(t *testing.T) {
	g := newTestGate(t)

	if g.CanAutoExecute(domain.RoleConfirmToExecute) {
		t.Fatal("confirm_to_execute must not auto-execute")
	}
	if !g.CanAutoExecute(domain.RoleAutoExecuteWithLimits) {
		t.Fatal("auto_execute_with_limits must auto-execute")
	}
}
