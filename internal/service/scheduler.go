package service

import (
	"context"
	"log/slog"
	"time"
)

// Refresher — то, что нужно планировщику от CacheRefresher
type Refresher interface {
	RefreshAll(ctx context.Context, origin Origin)
}

// Scheduler периодически обновляет кэш независимо от запросов,
// ограничивая устаревание данных интервалом тика
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	log       *slog.Logger
}

func NewScheduler(refresher Refresher, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{refresher: refresher, interval: interval, log: log}
}

// Run сразу прогревает кэш, затем обновляет его на каждом тике
// блокируется до отмены ctx
func (s *Scheduler) Run(ctx context.Context) {
	const op = "service.Scheduler.Run"
	log := s.log.With(slog.String("op", op))

	log.Info("scheduler started", slog.Duration("interval", s.interval))
	s.refresher.RefreshAll(ctx, OriginScheduler)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.refresher.RefreshAll(ctx, OriginScheduler)
		}
	}
}
