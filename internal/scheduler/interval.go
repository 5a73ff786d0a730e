// Package scheduler runs a task on a fixed interval until its context is
// done. The paper market feed ticks on it.
package scheduler

import (
	"context"
	"time"

	"keel/internal/logger"
)

type Interval struct {
	Every          time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewInterval(ctx context.Context, every time.Duration) *Interval {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Interval{
		Every: every,
		ctx:   ctx,
		nowFn: time.Now,
	}
}

// Start blocks, invoking task every interval. It returns when the context
// is canceled.
func (s *Interval) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Every <= 0 {
		logger.Warnf("scheduler: invalid interval=%s, exit", s.Every)
		return
	}

	logger.Infof("scheduler: started interval=%s run_immediately=%v", s.Every, s.RunImmediately)
	if s.RunImmediately {
		task()
	}

	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("scheduler: ctx done, exit")
			return
		case <-ticker.C:
			task()
		}
	}
}
