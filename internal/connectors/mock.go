package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2" // Используем v2 для Go 1.25
	"time"

	"github.com/google/uuid"
)

// MockSystemsConnector имитирует downstream-системы (брокеры, новостные API)
// для локальной разработки и нагрузочных прогонов без реальных интеграций.
type MockSystemsConnector struct{}

func (c *MockSystemsConnector) Call(ctx context.Context, action string, payload []byte) ([]byte, error) {
	// В v2 используется rand.IntN (с большой N)
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.IntN(250)) * time.Millisecond

	select {
	case <-time.After(latency):
		// Имитация работы
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch action {
	case "place_order_ibkr", "place_order_alpaca":
		resp := map[string]any{
			"status":   "filled",
			"order_id": uuid.NewString(),
			"venue":    action,
		}
		// Эхо символа из заявки, если он есть в payload
		var body struct {
			OrderPayload struct {
				Symbol string `json:"symbol"`
			} `json:"order_payload"`
		}
		if err := json.Unmarshal(payload, &body); err == nil && body.OrderPayload.Symbol != "" {
			resp["symbol"] = body.OrderPayload.Symbol
		}
		return json.Marshal(resp)

	case "fetch_market_data":
		return []byte(`{"status": "success", "quotes": [{"symbol": "SPY", "last": 512.34}]}`), nil

	case "fetch_news":
		return []byte(`{"status": "success", "articles": 12}`), nil

	case "analyze_portfolio":
		return []byte(`{"status": "success", "positions": 7, "exposure_pct": 42.5}`), nil

	case "generate_report":
		return []byte(`{"status": "success", "report": "daily-summary"}`), nil

	case "legal_research", "browse_website":
		return []byte(`{"status": "success", "pages_fetched": 1}`), nil

	case "unstable.service":
		return nil, fmt.Errorf("service internal error")

	case "throttled.service":
		// Имитация 429 с Retry-After от downstream
		return nil, &ThrottleError{
			RetryAfter: 2 * time.Second,
			Cause:      fmt.Errorf("rate limited by upstream"),
		}
	}

	return []byte(`{"status": "success"}`), nil
}
