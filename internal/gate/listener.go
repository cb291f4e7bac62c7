package gate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListenRegistryResilient — "живучая" подписка на сигналы обновления реестров.
// Обрабатывает переподключения: при каждом успешном коннекте вызывает полную
// синхронизацию (onSync), чтобы не потерять сигналы, прилетевшие в оффлайне.
// Каждое сообщение в канале — команда перечитать реестр из источника истины.
func ListenRegistryResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onSync func(ctx context.Context) error, // Полная перезагрузка реестра из БД
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Синхронизация при каждом успешном коннекте
		if err := onSync(ctx); err != nil {
			logger.Error("sync failed on reconnect", zap.String("chan", channel), zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				logger.Info("registry update signal received",
					zap.String("chan", channel), zap.String("payload", msg.Payload))

				if err := onSync(ctx); err != nil {
					logger.Error("registry reload failed", zap.String("chan", channel), zap.Error(err))
				}
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}
