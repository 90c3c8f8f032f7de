package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StartHealthChecks checks every backend once per interval until Stop.
// A non-positive interval disables the scheduler.
func (o *Orchestrator) StartHealthChecks(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.scheduler != nil {
		return errors.New("health checks already running")
	}

	c := cron.New()
	_, err := c.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.checkTimeout+time.Second)
		defer cancel()
		o.CheckHealth(ctx)
	})
	if err != nil {
		return err
	}
	c.Start()
	o.scheduler = c

	o.logger.Debug("health checks started", zap.Duration("interval", interval))
	return nil
}

// Stop halts the health-check scheduler and waits for a running check to
// finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	c := o.scheduler
	o.scheduler = nil
	o.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// CheckHealth checks all backends concurrently and updates their health
// flags. A failed check never removes a backend from rotation; it only
// moves it behind the healthy ones.
func (o *Orchestrator) CheckHealth(ctx context.Context) {
	o.mu.RLock()
	entries := make([]*entry, len(o.entries))
	copy(entries, o.entries)
	o.mu.RUnlock()

	results := make([]bool, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, o.checkTimeout)
			defer cancel()
			results[i] = e.provider.HealthCheck(checkCtx)
			return nil
		})
	}
	_ = g.Wait()

	checked := o.now()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range entries {
		if e.healthy != results[i] {
			o.logger.Info("provider health changed",
				zap.String("provider", e.name),
				zap.Bool("healthy", results[i]))
		}
		e.healthy = results[i]
		e.lastCheck = checked
	}
}
