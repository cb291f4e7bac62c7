package authority

import (
	"net/url"
	"strings"
	"sync"

	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

// WhitelistAuthority отвечает на вопрос «достижим ли этот URL под этой категорией».
// In-memory реестр записей (домен, категория); решение никогда не ходит в сеть
// или БД. Мутации собирают новую мапу в стороне и подменяют её целиком.
type WhitelistAuthority struct {
	mu sync.RWMutex
	// hostname -> все записи для него (разные категории — разные записи)
	entries map[string][]domain.WhitelistedDomain

	logger *zap.Logger
}

func NewWhitelistAuthority(entries []domain.WhitelistedDomain, logger *zap.Logger) *WhitelistAuthority {
	a := &WhitelistAuthority{
		entries: make(map[string][]domain.WhitelistedDomain),
		logger:  logger.Named("whitelist-authority"),
	}
	a.Replace(entries)
	return a
}

// normalizeHost приводит домен к канонической форме: нижний регистр, без www.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// IsAllowed принимает вердикт по одному URL.
// Битый URL — немедленный отказ "invalid URL", никаких паник.
// Порядок правил путей фиксирован: blocked-префикс побеждает всегда,
// затем непустой allow-list без совпадения, иначе allow.
// Категория изолирована: участвуют только записи запрошенной категории.
func (a *WhitelistAuthority) IsAllowed(rawURL string, category domain.Category) domain.URLDecision {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return domain.URLDecision{Reason: "invalid URL"}
	}

	host := normalizeHost(parsed.Hostname())
	path := parsed.Path // Только path-компонента, query и fragment не участвуют

	a.mu.RLock()
	all := a.entries[host]
	a.mu.RUnlock()

	if len(all) == 0 {
		return domain.URLDecision{Reason: "domain not whitelisted"}
	}

	// Фильтр по категории ("" = любая категория)
	candidates := all
	if category != "" {
		candidates = nil
		for _, e := range all {
			if e.Category == category {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			return domain.URLDecision{Reason: "domain not whitelisted for this category"}
		}
	}

	// Шаг 1: blocked-префикс в ЛЮБОЙ записи-кандидате закрывает путь,
	// даже если другая запись его разрешает
	for _, e := range candidates {
		for _, blocked := range e.BlockedPaths {
			if strings.HasPrefix(path, blocked) {
				matched := e.Clone()
				return domain.URLDecision{Reason: "path blocked", Matched: &matched}
			}
		}
	}

	// Шаг 2: ищем запись, которая путь разрешает
	// (пустой AllowedPaths = любой путь)
	for _, e := range candidates {
		if len(e.AllowedPaths) == 0 {
			matched := e.Clone()
			return domain.URLDecision{Allowed: true, Matched: &matched}
		}
		for _, allowed := range e.AllowedPaths {
			if strings.HasPrefix(path, allowed) {
				matched := e.Clone()
				return domain.URLDecision{Allowed: true, Matched: &matched}
			}
		}
	}

	return domain.URLDecision{Reason: "path not in allow-list"}
}

// IsAllURLsAllowed применяет IsAllowed к каждому URL независимо.
// Никогда не останавливается на первом отказе — аудиту нужен полный список.
func (a *WhitelistAuthority) IsAllURLsAllowed(urls []string, category domain.Category) domain.BulkURLDecision {
	result := domain.BulkURLDecision{AllValid: true}

	for _, u := range urls {
		d := a.IsAllowed(u, category)
		d.URL = u
		if d.Allowed {
			result.Valid = append(result.Valid, d)
			continue
		}
		result.AllValid = false
		result.InvalidURLs = append(result.InvalidURLs, domain.InvalidURL{URL: u, Reason: d.Reason})
	}

	return result
}

// ListByCategory — плоский скан всех записей с данным тегом
func (a *WhitelistAuthority) ListByCategory(category domain.Category) []domain.WhitelistedDomain {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.WhitelistedDomain
	for _, list := range a.entries {
		for _, e := range list {
			if e.Category == category {
				out = append(out, e.Clone())
			}
		}
	}
	return out
}

// ListAll возвращает копию всего реестра (для консоли)
func (a *WhitelistAuthority) ListAll() []domain.WhitelistedDomain {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.WhitelistedDomain
	for _, list := range a.entries {
		for _, e := range list {
			out = append(out, e.Clone())
		}
	}
	return out
}

// AddDomain добавляет запись через явный админский путь.
// Запись (домен, категория) уникальна: повторное добавление заменяет правила путей.
func (a *WhitelistAuthority) AddDomain(entry domain.WhitelistedDomain) {
	entry.Domain = normalizeHost(entry.Domain)

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.cloneEntriesLocked()
	list := next[entry.Domain]

	replaced := false
	for i, e := range list {
		if e.Category == entry.Category {
			list[i] = entry.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, entry.Clone())
	}
	next[entry.Domain] = list
	a.entries = next

	a.logger.Info("whitelist domain added",
		zap.String("domain", entry.Domain),
		zap.String("category", string(entry.Category)),
	)
}

// RemoveDomain удаляет записи домена. С категорией — только запись этой категории,
// остальные категории того же домена остаются нетронутыми. Без категории — все.
func (a *WhitelistAuthority) RemoveDomain(host string, category domain.Category) bool {
	host = normalizeHost(host)

	a.mu.Lock()
	defer a.mu.Unlock()

	list, ok := a.entries[host]
	if !ok {
		return false
	}

	next := a.cloneEntriesLocked()
	if category == "" {
		delete(next, host)
		a.entries = next
		a.logger.Info("whitelist domain removed", zap.String("domain", host))
		return true
	}

	kept := make([]domain.WhitelistedDomain, 0, len(list))
	removed := false
	for _, e := range list {
		if e.Category == category {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return false
	}

	if len(kept) == 0 {
		delete(next, host)
	} else {
		next[host] = kept
	}
	a.entries = next

	a.logger.Info("whitelist domain removed",
		zap.String("domain", host),
		zap.String("category", string(category)),
	)
	return true
}

// Stats — read-only агрегат, в решениях не используется
func (a *WhitelistAuthority) Stats() domain.WhitelistStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := domain.WhitelistStats{
		ByCategory: make(map[domain.Category]int),
		ByCountry:  make(map[string]int),
	}
	for _, list := range a.entries {
		stats.TotalDomains++
		for _, e := range list {
			stats.ByCategory[e.Category]++
			if e.Country != "" {
				stats.ByCountry[e.Country]++
			}
		}
	}
	return stats
}

// Replace — холодная загрузка всего реестра (старт или refresh-сигнал)
func (a *WhitelistAuthority) Replace(entries []domain.WhitelistedDomain) {
	next := make(map[string][]domain.WhitelistedDomain, len(entries))
	for _, e := range entries {
		host := normalizeHost(e.Domain)
		c := e.Clone()
		c.Domain = host
		next[host] = append(next[host], c)
	}

	a.mu.Lock()
	a.entries = next
	a.mu.Unlock()

	a.logger.Info("whitelist refreshed", zap.Int("domains", len(next)))
}

// cloneEntriesLocked копирует мапу для copy-on-write мутаций (вызывать под mu.Lock)
func (a *WhitelistAuthority) cloneEntriesLocked() map[string][]domain.WhitelistedDomain {
	next := make(map[string][]domain.WhitelistedDomain, len(a.entries))
	for host, list := range a.entries {
		copied := make([]domain.WhitelistedDomain, len(list))
		copy(copied, list)
		next[host] = copied
	}
	return next
}
