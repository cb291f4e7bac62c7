package gate

import (
	"github.com/xela07ax/finagent-gateway/internal/authority"
	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// ActionShape определяет, какие поля запроса участвуют в решении
type ActionShape int

const (
	// ShapePlain — только проверка роли (аналитика, отчеты)
	ShapePlain ActionShape = iota
	// ShapeTrade — роль + числовые лимиты риска по order_payload
	ShapeTrade
	// ShapeURL — роль + whitelist целевых URL
	ShapeURL
	// ShapeSources — роль + whitelist по списку имен источников (news)
	ShapeSources
)

// ActionSpec — транспортный контракт действия: форма и категория whitelist
type ActionSpec struct {
	Name     string
	Shape    ActionShape
	Category domain.Category // Для ShapeURL/ShapeSources
}

// DefaultActions — каталог действий шлюза. Имена — стабильные идентификаторы,
// по ним же строятся allow/block-списки профилей ролей.
func DefaultActions() map[string]ActionSpec {
	specs := []ActionSpec{
		{Name: authority.ActionAnalyzePortfolio, Shape: ShapePlain},
		{Name: authority.ActionGenerateReport, Shape: ShapePlain},
		{Name: authority.ActionFetchMarketData, Shape: ShapeURL, Category: domain.CategoryMarketData},
		{Name: authority.ActionFetchNews, Shape: ShapeSources, Category: domain.CategoryNews},
		{Name: authority.ActionLegalResearch, Shape: ShapeURL, Category: domain.CategoryLegal},
		{Name: authority.ActionBrowseWebsite, Shape: ShapeURL, Category: domain.CategoryComputerUse},
		{Name: authority.ActionPlaceOrderIBKR, Shape: ShapeTrade},
		{Name: authority.ActionPlaceOrderAlpaca, Shape: ShapeTrade},
		{Name: authority.ActionChargeCustomer, Shape: ShapeTrade},
	}

	m := make(map[string]ActionSpec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}
