package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named periodic task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler runs jobs on cron specs. A job still running when its next
// tick arrives is skipped rather than overlapped.
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
	logger  *zap.Logger
}

func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	logger := c.logger.With(zap.String("job", job.Name()), zap.String("spec", spec))
	entryID, err := c.cron.AddFunc(spec, c.wrap(job))
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.entries[job.Name()] = entryID
	logger.Info("job scheduled")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) wrap(job Job) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			c.logger.Info("job skipped: still running", zap.String("job", job.Name()))
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := c.logger.With(zap.String("job", job.Name()))
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		logger.Debug("job finished", zap.Duration("duration", time.Since(start)))
	}
}
