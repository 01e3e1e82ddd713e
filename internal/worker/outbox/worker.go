package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/storage"
	"golang.org/x/sync/errgroup"
)

const maxBackoff = 24 * time.Hour

// Publisher отправляет сообщение в брокер
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey, messageID, contentType string, body []byte) error
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	RetryBackoff time.Duration
	// ClaimLease должен превышать время публикации пачки
	ClaimLease time.Duration
}

// Worker переносит события заказов из таблицы outbox в брокер
type Worker struct {
	log       *slog.Logger
	repo      storage.OutboxStorage
	publisher Publisher
	cfg       Config
	now       func() time.Time
}

func NewWorker(log *slog.Logger, repo storage.OutboxStorage, publisher Publisher, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = time.Minute
	}
	return &Worker{
		log:       log.With(slog.String("component", "outbox.Worker")),
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start крутится до отмены контекста
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info("outbox worker started",
		slog.Duration("poll_interval", w.cfg.PollInterval),
		slog.Int("batch_size", w.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("outbox worker stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				w.log.Error("failed to process outbox", slog.Any("error", err))
			}
		}
	}
}

// ProcessOnce обрабатывает одну пачку и возвращает число опубликованных сообщений
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	const op = "worker.outbox.ProcessOnce"
	logger := w.log.With(slog.String("op", op))

	messages, err := w.repo.ClaimPendingMessages(ctx, w.cfg.BatchSize, w.cfg.ClaimLease)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	logger.Debug("processing outbox messages", slog.Int("count", len(messages)))

	// ошибка одного сообщения не отменяет публикацию остальных
	published := make([]bool, len(messages))
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)

	for i, msg := range messages {
		i, msg := i, msg
		g.Go(func() error {
			ok, err := w.handle(ctx, logger, msg)
			published[i] = ok
			return err
		})
	}
	waitErr := g.Wait()

	count := 0
	for _, ok := range published {
		if ok {
			count++
		}
	}
	if waitErr != nil {
		return count, fmt.Errorf("%s: %w", op, waitErr)
	}
	return count, nil
}

// handle возвращает ошибку, только если не удалось записать результат в outbox
func (w *Worker) handle(ctx context.Context, logger *slog.Logger, msg *models.OutboxMessage) (bool, error) {
	err := w.publisher.Publish(ctx, msg.ExchangeName, msg.RoutingKey, msg.EventID, msg.ContentType, msg.Payload)
	if err != nil {
		retry := msg.RetryCount + 1
		next := w.now().Add(w.backoff(retry))

		logger.Warn("failed to publish outbox message, will retry",
			slog.Int64("outbox_id", msg.ID),
			slog.Int("retry_count", retry),
			slog.Time("next_retry", next),
			slog.Any("error", err),
		)
		if retry >= msg.MaxRetries {
			logger.Error("outbox message reached max retries", slog.Int64("outbox_id", msg.ID), slog.String("event_id", msg.EventID))
		}

		if updErr := w.repo.UpdateRetry(ctx, msg.ID, retry, err.Error(), next); updErr != nil {
			logger.Error("failed to update retry information", slog.Int64("outbox_id", msg.ID), slog.Any("error", updErr))
			return false, fmt.Errorf("update retry %d: %w", msg.ID, updErr)
		}
		return false, nil
	}

	if err := w.repo.Delete(ctx, msg.ID); err != nil {
		// сообщение уйдёт повторно после lease, потребитель отсеет дубль по MessageId
		logger.Error("failed to delete published message", slog.Int64("outbox_id", msg.ID), slog.Any("error", err))
		return true, fmt.Errorf("delete %d: %w", msg.ID, err)
	}
	return true, nil
}

// backoff: base, 2*base, 4*base...
func (w *Worker) backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := math.Pow(2, float64(retry-1)) * float64(w.cfg.RetryBackoff)
	if d > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(d)
}
