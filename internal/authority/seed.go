package authority

import "github.com/xela07ax/finagent-gateway/internal/domain"

// Имена действий — стабильные идентификаторы между деплоями
const (
	ActionAnalyzePortfolio = "analyze_portfolio"
	ActionGenerateReport   = "generate_report"
	ActionFetchMarketData  = "fetch_market_data"
	ActionFetchNews        = "fetch_news"
	ActionLegalResearch    = "legal_research"
	ActionBrowseWebsite    = "browse_website"
	ActionPlaceOrderIBKR   = "place_order_ibkr"
	ActionPlaceOrderAlpaca = "place_order_alpaca"
	ActionChargeCustomer   = "charge_customer"
)

// SeedRoleProfiles — версионируемая код-конфигурация ролей.
// Используется при пустой БД и в тестах; Postgres при наличии данных
// перекрывает её при холодной загрузке.
func SeedRoleProfiles() []domain.RoleProfile {
	return []domain.RoleProfile{
		{
			Role:        domain.RoleAnalysisOnly,
			Description: "Read-only analysis: market data, news, reports. No side effects ever.",
			CanExecute:  false,
			Limits: domain.RiskLimits{
				// Все нули: ни одной сделки, ни одного инструмента
				AllowedInstruments: nil,
			},
			AllowedActions: []string{
				ActionAnalyzePortfolio,
				ActionGenerateReport,
				ActionFetchMarketData,
				ActionFetchNews,
				ActionLegalResearch,
			},
			BlockedActions: []string{
				ActionPlaceOrderIBKR,
				ActionPlaceOrderAlpaca,
				ActionChargeCustomer,
				ActionBrowseWebsite,
			},
		},
		{
			Role:                 domain.RoleConfirmToExecute,
			Description:          "May execute trades and charges, every action pauses for human confirmation.",
			CanExecute:           true,
			RequiresConfirmation: true,
			Limits: domain.RiskLimits{
				MaxNotionalPerTrade:       10000,
				MaxPositionPercent:        20,
				MaxDailyLoss:              500,
				MaxDrawdownPercent:        10,
				AllowedInstruments:        []string{"SPY", "QQQ", "IWM", "TLT", "AAPL", "MSFT", "GOOG"},
				MaxTradesPerDay:           20,
				RequiresConfirmationAbove: 1000,
			},
			AllowedActions: []string{
				ActionAnalyzePortfolio,
				ActionGenerateReport,
				ActionFetchMarketData,
				ActionFetchNews,
				ActionLegalResearch,
				ActionBrowseWebsite,
				ActionPlaceOrderIBKR,
				ActionPlaceOrderAlpaca,
				ActionChargeCustomer,
			},
		},
		{
			Role:        domain.RoleAutoExecuteWithLimits,
			Description: "Autonomous execution inside hard limits on a narrow ETF whitelist.",
			CanExecute:  true,
			Limits: domain.RiskLimits{
				MaxNotionalPerTrade:       5000,
				MaxPositionPercent:        10,
				MaxDailyLoss:              200,
				MaxDrawdownPercent:        5,
				AllowedInstruments:        []string{"SPY", "QQQ", "IWM", "TLT"},
				MaxTradesPerDay:           10,
				RequiresConfirmationAbove: 2000,
			},
			AllowedActions: []string{
				ActionAnalyzePortfolio,
				ActionGenerateReport,
				ActionFetchMarketData,
				ActionFetchNews,
				ActionPlaceOrderIBKR,
				ActionPlaceOrderAlpaca,
			},
			BlockedActions: []string{
				ActionChargeCustomer, // Деньги клиента — только через confirm_to_execute
			},
		},
	}
}

// SeedWhitelist — дефолтный реестр доменов.
// Обратите внимание на bloomberg.com: две независимые записи под news и
// computer_use с РАЗНЫМИ правилами путей — решение обязано использовать
// только запись запрошенной категории, никогда их объединение.
func SeedWhitelist() []domain.WhitelistedDomain {
	return []domain.WhitelistedDomain{
		{
			Domain:       "bloomberg.com",
			Category:     domain.CategoryNews,
			Country:      "US",
			Verified:     true,
			AllowedPaths: []string{"/news", "/markets"},
			BlockedPaths: []string{"/opinion"},
		},
		{
			Domain:       "bloomberg.com",
			Category:     domain.CategoryComputerUse,
			Country:      "US",
			Verified:     true,
			AllowedPaths: []string{"/news"},
		},
		{
			Domain:   "reuters.com",
			Category: domain.CategoryNews,
			Country:  "US",
			Verified: true,
		},
		{
			Domain:       "ft.com",
			Category:     domain.CategoryNews,
			Country:      "GB",
			Verified:     true,
			BlockedPaths: []string{"/video"},
		},
		{
			Domain:   "sec.gov",
			Category: domain.CategoryLegal,
			Country:  "US",
			Verified: true,
		},
		{
			Domain:       "law.cornell.edu",
			Category:     domain.CategoryLegal,
			Country:      "US",
			Verified:     true,
			AllowedPaths: []string{"/uscode", "/cfr"},
		},
		{
			Domain:   "investopedia.com",
			Category: domain.CategoryComputerUse,
			Country:  "US",
			Verified: true,
		},
		{
			Domain:   "api.alpaca.markets",
			Category: domain.CategoryBroker,
			Country:  "US",
			Verified: true,
		},
		{
			Domain:       "interactivebrokers.com",
			Category:     domain.CategoryBroker,
			Country:      "US",
			Verified:     true,
			AllowedPaths: []string{"/api"},
		},
		{
			Domain:   "finnhub.io",
			Category: domain.CategoryMarketData,
			Country:  "US",
			Verified: true,
		},
		{
			Domain:       "polygon.io",
			Category:     domain.CategoryMarketData,
			Country:      "US",
			Verified:     true,
			AllowedPaths: []string{"/v2", "/v3"},
		},
	}
}
