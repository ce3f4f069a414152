package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dealscope/config"
	"dealscope/logging"
)

// Sweeper is a periodic job
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Scheduler struct {
	cfg    config.SchedulerConfig
	job    Sweeper
	logger *zap.Logger
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	stopOnce sync.Once
}

func New(cfg config.SchedulerConfig, job Sweeper, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		job:    job,
		logger: logging.Named(logger, "scheduler"),
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// Start schedules the job by cron expression when one is set, otherwise on
// the fixed interval. With neither the job only runs when triggered.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		s.logger.Info("starting scheduler", zap.String("cron", s.cfg.Cron))
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.run(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.logger.Info("starting scheduler", zap.Duration("interval", s.cfg.Interval))
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.run(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.logger.Info("no schedule configured, deadline sweeps run only on trigger")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs the job synchronously
func (s *Scheduler) TriggerNow(ctx context.Context) (int, error) {
	return s.job.Sweep(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	n, err := s.job.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduled sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled sweep finished", zap.Int("reminders", n))
}
