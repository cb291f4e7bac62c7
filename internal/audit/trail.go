package audit

/*
Файл trail.go реализует Decision Trail — асинхронный сборщик вердиктов шлюза.

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал между Hot Path авторизации и
  воркером записи. Задержки Postgres не влияют на время решения.
- Batching: накопление событий в памяти и пакетная вставка по таймеру
  или при достижении лимита (100 событий).
- Drain Pattern & Graceful Shutdown: при остановке канал закрывается,
  воркер вычитывает остатки и делает финальный flush — вердикты не теряются
  при перезагрузке.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются вердикты
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []DecisionEvent) error
}

type Auditor interface {
	Log(event DecisionEvent)
}

type Trail struct {
	ch     chan DecisionEvent
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Log после Stop
	isClosed int32

	// Gauge заполненности буфера для метрик (может быть nil)
	fillGauge func(n float64)
}

func NewTrail(repo StorageInterface, logger *zap.Logger) *Trail {
	return &Trail{
		ch:     make(chan DecisionEvent, 10000), // Очередь на 10к событий
		repo:   repo,
		logger: logger.With(zap.String("mod", "decision-trail")),
	}
}

// SetFillGauge подключает прометеевский gauge заполненности буфера
func (t *Trail) SetFillGauge(fn func(n float64)) {
	t.fillGauge = fn
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping decision trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("decision trail stopped gracefully")
}

func (t *Trail) Log(event DecisionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("decision event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Стратегия Load Shedding: при переполнении буфера событие уходит
	// в обычный лог, а не блокирует авторизацию
	select {
	case t.ch <- event:
		if t.fillGauge != nil {
			t.fillGauge(float64(len(t.ch)))
		}
	default:
		t.logger.Error("decision_trail_overflow",
			zap.String("user_id", event.UserID),
			zap.String("trace_id", event.TraceID),
			zap.String("action", event.Action),
			zap.Bool("allowed", event.Allowed),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]DecisionEvent, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к моменту финального flush может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("decision trail flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный flush, выходим
				flush()
				t.logger.Info("decision trail worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
