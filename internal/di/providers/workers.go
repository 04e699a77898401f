package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/reading-server/internal/config"
	"github.com/listenupapp/reading-server/internal/logger"
	"github.com/listenupapp/reading-server/internal/ratelimit"
	"github.com/listenupapp/reading-server/internal/service"
)

// IdleSessionSweepJob periodically closes sessions abandoned without an
// explicit end.
type IdleSessionSweepJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *IdleSessionSweepJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideIdleSessionSweepJob starts the idle session sweep. A zero
// interval disables it.
func ProvideIdleSessionSweepJob(i do.Injector) (*IdleSessionSweepJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &IdleSessionSweepJob{cancel: cancel, done: make(chan struct{})}

	interval := cfg.Tracking.SweepInterval
	if interval <= 0 {
		log.Info("Idle session sweep disabled")
		close(job.done)
		return job, nil
	}

	go func() {
		defer close(job.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweep := func() {
			if _, err := sessions.CloseIdleSessions(ctx); err != nil && ctx.Err() == nil {
				log.Warn("Idle session sweep failed", "error", err)
			}
		}

		sweep()
		for {
			select {
			case <-ticker.C:
				sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Idle session sweep started", "interval", interval)

	return job, nil
}

// ProgressLimiterHandle wraps the per-user progress rate limiter.
type ProgressLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *ProgressLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideProgressLimiter provides the rate limiter for progress pushes.
func ProvideProgressLimiter(i do.Injector) (*ProgressLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return &ProgressLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.RateLimit.ProgressRPS, cfg.RateLimit.ProgressBurst),
	}, nil
}
