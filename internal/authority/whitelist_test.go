package authority

import (
	"reflect"
	"testing"

	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

func newTestWhitelist(t *testing.T) *WhitelistAuthority {
	t.Helper()
	return NewWhitelistAuthority(SeedWhitelist(), zap.NewNop())
}

func TestIsAllowed_Scenarios(t *testing.T) {
	a := newTestWhitelist(t)

	cases := []struct {
		name     string
		url      string
		category domain.Category
		allowed  bool
		reason   string
	}{
		{
			name:     "blocked path wins",
			url:      "https://www.bloomberg.com/opinion/xyz",
			category: domain.CategoryNews,
			allowed:  false,
			reason:   "path blocked",
		},
		{
			name:     "allowed path, www stripped",
			url:      "https://bloomberg.com/markets/abc",
			category: domain.CategoryNews,
			allowed:  true,
		},
		{
			name:     "domain not whitelisted",
			url:      "https://evil.com/news",
			category: domain.CategoryNews,
			allowed:  false,
			reason:   "domain not whitelisted",
		},
		{
			name:     "category isolation: /markets only under news",
			url:      "https://bloomberg.com/markets/abc",
			category: domain.CategoryComputerUse,
			allowed:  false,
			reason:   "path not in allow-list",
		},
		{
			name:     "wrong category entirely",
			url:      "https://reuters.com/business",
			category: domain.CategoryBroker,
			allowed:  false,
			reason:   "domain not whitelisted for this category",
		},
		{
			name:     "empty allow list permits any path",
			url:      "https://reuters.com/business/finance",
			category: domain.CategoryNews,
			allowed:  true,
		},
		{
			name:     "malformed url",
			url:      "://not-a-url",
			category: domain.CategoryNews,
			allowed:  false,
			reason:   "invalid URL",
		},
		{
			name:     "schemeless url has no hostname",
			url:      "bloomberg.com/markets",
			category: domain.CategoryNews,
			allowed:  false,
			reason:   "invalid URL",
		},
		{
			name:    "no category filters nothing",
			url:     "https://finnhub.io/api/v1/quote",
			allowed: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := a.IsAllowed(c.url, c.category)
			if d.Allowed != c.allowed {
				t.Fatalf("IsAllowed(%q, %q): allowed=%v, want %v (reason %q)",
					c.url, c.category, d.Allowed, c.allowed, d.Reason)
			}
			if !c.allowed && c.reason != "" && d.Reason != c.reason {
				t.Fatalf("reason = %q, want %q", d.Reason, c.reason)
			}
			if c.allowed && d.Matched == nil {
				t.Fatal("allowed decision must carry the matched entry")
			}
		})
	}
}

func TestIsAllowed_MatchedEntryCountry(t *testing.T) {
	a := newTestWhitelist(t)

	d := a.IsAllowed("https://bloomberg.com/markets/abc", domain.CategoryNews)
	if !d.Allowed {
		t.Fatalf("expected allow, got reason %q", d.Reason)
	}
	if d.Matched.Country != "US" {
		t.Fatalf("matched entry country = %q, want US", d.Matched.Country)
	}
}

func TestIsAllowed_BlockedWinsAcrossEntries(t *testing.T) {
	// Две записи одной категории: одна разрешает путь, другая блокирует.
	// Блокировка обязана победить.
	entries := []domain.WhitelistedDomain{
		{Domain: "example.com", Category: domain.CategoryNews, AllowedPaths: []string{"/a"}},
		{Domain: "example.com", Category: domain.CategoryNews, BlockedPaths: []string{"/a/secret"}},
	}
	a := NewWhitelistAuthority(entries, zap.NewNop())

	if d := a.IsAllowed("https://example.com/a/public", domain.CategoryNews); !d.Allowed {
		t.Fatalf("/a/public must be allowed, got %q", d.Reason)
	}
	d := a.IsAllowed("https://example.com/a/secret/x", domain.CategoryNews)
	if d.Allowed || d.Reason != "path blocked" {
		t.Fatalf("blocked prefix must win, got allowed=%v reason=%q", d.Allowed, d.Reason)
	}
}

func TestIsAllURLsAllowed_NoShortCircuit(t *testing.T) {
	a := newTestWhitelist(t)

	urls := []string{
		"https://evil.com/x",
		"https://bloomberg.com/news/today",
		"https://bloomberg.com/opinion/bad",
	}
	bulk := a.IsAllURLsAllowed(urls, domain.CategoryNews)

	if bulk.AllValid {
		t.Fatal("bulk check must fail")
	}
	if len(bulk.Valid) != 1 || len(bulk.InvalidURLs) != 2 {
		t.Fatalf("expected 1 valid / 2 invalid, got %d / %d", len(bulk.Valid), len(bulk.InvalidURLs))
	}
	// Вердикт несет URL и совпавшую запись — потребителю не нужен повторный проход
	ok := bulk.Valid[0]
	if ok.URL != "https://bloomberg.com/news/today" || ok.Matched == nil || ok.Matched.Domain != "bloomberg.com" {
		t.Fatalf("valid verdict must carry the url and the matched entry, got %+v", ok)
	}
	// Причины отказов разные — у операторов разные пути исправления
	if bulk.InvalidURLs[0].Reason == bulk.InvalidURLs[1].Reason {
		t.Fatalf("distinct failures must carry distinct reasons: %+v", bulk.InvalidURLs)
	}
}

func TestListByCategory(t *testing.T) {
	a := newTestWhitelist(t)

	news := a.ListByCategory(domain.CategoryNews)
	for _, e := range news {
		if e.Category != domain.CategoryNews {
			t.Fatalf("foreign category in listing: %+v", e)
		}
	}
	if len(news) != 3 {
		t.Fatalf("expected 3 news entries in seed, got %d", len(news))
	}
}

func TestAddRemoveDomain(t *testing.T) {
	a := newTestWhitelist(t)

	a.AddDomain(domain.WhitelistedDomain{
		Domain:   "WWW.Example.ORG",
		Category: domain.CategoryNews,
	})
	if d := a.IsAllowed("https://example.org/anything", domain.CategoryNews); !d.Allowed {
		t.Fatalf("freshly added domain must be allowed, got %q", d.Reason)
	}

	// Удаление одной категории не трогает другие записи того же домена
	if !a.RemoveDomain("bloomberg.com", domain.CategoryNews) {
		t.Fatal("remove must report success")
	}
	if d := a.IsAllowed("https://bloomberg.com/markets/a", domain.CategoryNews); d.Allowed {
		t.Fatal("news entry must be gone")
	}
	if d := a.IsAllowed("https://bloomberg.com/news/a", domain.CategoryComputerUse); !d.Allowed {
		t.Fatalf("computer_use entry must survive, got %q", d.Reason)
	}

	// Без категории — сносим домен целиком
	if !a.RemoveDomain("bloomberg.com", "") {
		t.Fatal("remove all must report success")
	}
	if d := a.IsAllowed("https://bloomberg.com/news/a", domain.CategoryComputerUse); d.Allowed {
		t.Fatal("all entries must be gone")
	}

	if a.RemoveDomain("never-was-there.com", "") {
		t.Fatal("removing an absent domain must report false")
	}
}

func TestStats(t *testing.T) {
	a := newTestWhitelist(t)

	stats := a.Stats()
	if stats.TotalDomains != 10 {
		t.Fatalf("seed has 10 distinct domains, got %d", stats.TotalDomains)
	}
	if stats.ByCategory[domain.CategoryNews] != 3 {
		t.Fatalf("seed has 3 news entries, got %d", stats.ByCategory[domain.CategoryNews])
	}
	if stats.ByCountry["US"] == 0 {
		t.Fatal("country counts must be populated")
	}
}

func TestIsAllowed_Idempotent(t *testing.T) {
	a := newTestWhitelist(t)

	first := a.IsAllowed("https://bloomberg.com/news/x", domain.CategoryNews)
	second := a.IsAllowed("https://bloomberg.com/news/x", domain.CategoryNews)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical input produced different output: %+v vs %+v", first, second)
	}
}
