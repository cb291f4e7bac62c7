package domain

import (
	"fmt"
	"strings"
)

// Category — назначение, под которое домен внесен в whitelist.
// Набор закрытый; одна и та же запись для news НЕ дает доступ под computer_use.
type Category string

const (
	CategoryNews        Category = "news"
	CategoryLegal       Category = "legal"
	CategoryComputerUse Category = "computer_use"
	CategoryBroker      Category = "broker"
	CategoryMarketData  Category = "market_data"
)

// ParseCategory валидирует тег категории из запроса
func ParseCategory(s string) (Category, error) {
	switch Category(strings.TrimSpace(s)) {
	case CategoryNews:
		return CategoryNews, nil
	case CategoryLegal:
		return CategoryLegal, nil
	case CategoryComputerUse:
		return CategoryComputerUse, nil
	case CategoryBroker:
		return CategoryBroker, nil
	case CategoryMarketData:
		return CategoryMarketData, nil
	default:
		return "", fmt.Errorf("unknown whitelist category %q", s)
	}
}

// WhitelistedDomain — пара (домен, категория) с опциональными правилами путей.
// Домен может встречаться несколько раз под разными категориями,
// каждая запись независима.
type WhitelistedDomain struct {
	Domain   string   `json:"domain"`
	Category Category `json:"category"`
	Country  string   `json:"country,omitempty"`
	Verified bool     `json:"verified"`

	// Префиксные правила по path-компоненте URL (query и fragment не участвуют).
	// BlockedPaths побеждает AllowedPaths; пустой AllowedPaths = любой путь.
	AllowedPaths []string `json:"allowed_paths,omitempty"`
	BlockedPaths []string `json:"blocked_paths,omitempty"`
}

// Clone — глубокая копия для сборки нового снапшота реестра
func (d WhitelistedDomain) Clone() WhitelistedDomain {
	c := d
	c.AllowedPaths = append([]string(nil), d.AllowedPaths...)
	c.BlockedPaths = append([]string(nil), d.BlockedPaths...)
	return c
}

// URLDecision — вердикт по одному URL
type URLDecision struct {
	URL     string             `json:"url,omitempty"`
	Allowed bool               `json:"allowed"`
	Reason  string             `json:"reason,omitempty"`
	Matched *WhitelistedDomain `json:"matched,omitempty"`
}

// InvalidURL — отказ по конкретному URL внутри пакетной проверки
type InvalidURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// BulkURLDecision — результат пакетной проверки. Проверяются ВСЕ URL,
// без short-circuit: аудиту нужен полный список нарушений.
// Valid несет полные вердикты с совпавшими записями, чтобы потребителю
// не приходилось перепроверять URL повторно.
type BulkURLDecision struct {
	AllValid    bool          `json:"all_valid"`
	Valid       []URLDecision `json:"valid"`
	InvalidURLs []InvalidURL  `json:"invalid_urls"`
}

// WhitelistStats — read-only агрегат для observability, в решениях не используется
type WhitelistStats struct {
	TotalDomains int              `json:"total_domains"`
	ByCategory   map[Category]int `json:"by_category"`
	ByCountry    map[string]int   `json:"by_country"`
}
