package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
)

//go:generate mockgen -source=scheduler.go -destination=mocks/mocks.go -package=mocks

// Gateway — внешний источник котировок (CoinGecko).
type Gateway interface {
	FetchTopCoins(ctx context.Context) ([]domain.Coin, error)
}

// Publisher — общее состояние, в которое планировщик публикует результат.
type Publisher interface {
	Commit(coins []domain.Coin, status string, interval time.Duration) domain.Snapshot
	Fail(status string, interval time.Duration)
}

// SnapshotSink — получатель успешных снапшотов (архив, кэш).
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error
}

type Settings struct {
	DefaultInterval time.Duration
	MaxInterval     time.Duration
	SinkTimeout     time.Duration
}

type Scheduler struct {
	gateway Gateway
	state   Publisher
	sinks   []SnapshotSink
	cfg     Settings
	logger  *slog.Logger
}

// NewScheduler — конструктор фонового цикла обновления курсов
func NewScheduler(gateway Gateway, state Publisher, cfg Settings, logger *slog.Logger, sinks ...SnapshotSink) *Scheduler {
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 3 * time.Second
	}
	return &Scheduler{
		gateway: gateway,
		state:   state,
		sinks:   sinks,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start — цикл fetch → публикация → ожидание до остановки контекста.
// Ожидание прерывается отменой контекста, так что выход не ждёт до max_interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		slog.Duration("default_interval", s.cfg.DefaultInterval),
		slog.Duration("max_interval", s.cfg.MaxInterval),
	)

	// первый запуск сразу
	interval := s.cfg.DefaultInterval
	for ctx.Err() == nil {
		interval = s.Tick(ctx, interval)
		if !sleep(ctx, interval) {
			break
		}
	}
	s.logger.Info("scheduler stopped")
}

// sleep — false, если ожидание прервано отменой контекста.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Tick — одна итерация: получить курсы, классифицировать, опубликовать.
// current — интервал, с которым прошла эта итерация; возвращается следующий.
// Блокировка состояния не удерживается во время сетевого запроса.
func (s *Scheduler) Tick(ctx context.Context, current time.Duration) time.Duration {
	s.logger.Debug("tick: running fetch cycle", slog.Duration("interval", current))
	started := time.Now()

	coins, err := s.gateway.FetchTopCoins(ctx)
	if ctx.Err() != nil {
		// остановка во время запроса: результат не публикуем
		s.logger.Debug("tick: cancelled during fetch")
		return current
	}

	outcome := Classify(err)
	next := NextInterval(outcome, current, s.cfg.DefaultInterval, s.cfg.MaxInterval)

	switch outcome {
	case OutcomeSuccess:
		status := fmt.Sprintf("Live data: refreshed every %ds", seconds(current))
		snap := s.state.Commit(coins, status, next)
		s.logger.Info("tick: snapshot updated",
			slog.Int("coins", len(coins)),
			slog.Duration("duration", time.Since(started)),
		)
		s.publish(ctx, snap)
	case OutcomeRateLimited:
		s.state.Fail(fmt.Sprintf("Rate limited by API, retrying in %ds", seconds(next)), next)
		s.logger.Warn("tick: rate limited, backing off",
			slog.Duration("next_interval", next),
			slog.Any("err", err),
		)
	default:
		s.state.Fail("Error: "+err.Error(), next)
		s.logger.Error("tick: fetch failed", slog.Any("err", err), slog.Duration("next_interval", next))
	}
	return next
}

func (s *Scheduler) publish(ctx context.Context, snap domain.Snapshot) {
	for _, sink := range s.sinks {
		sCtx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
		if err := sink.SaveSnapshot(sCtx, snap); err != nil {
			s.logger.Warn("tick: snapshot sink failed", slog.String("sink", fmt.Sprintf("%T", sink)), slog.Any("err", err))
		}
		cancel()
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
