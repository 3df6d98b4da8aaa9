// Package maintenance runs the periodic housekeeping jobs: expiring session
// rows out of the store and dropping elapsed rate-limit windows.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/scomapp/scom-be/internal/ratelimit"
	"github.com/scomapp/scom-be/internal/session"
)

// Sweeper owns the cron schedule for store-level TTL enforcement.
type Sweeper struct {
	cron     *cron.Cron
	sessions *session.Manager
	limiters []*ratelimit.Limiter
	interval time.Duration
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(sessions *session.Manager, interval time.Duration, limiters ...*ratelimit.Limiter) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		sessions: sessions,
		limiters: limiters,
		interval: interval,
	}
}

// Start schedules the sweep and runs one immediately so restarts do not leave
// a backlog of expired rows until the first tick.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.sweep); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.cron.Start()
	go s.sweep()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Sweeper: failed to delete expired sessions")
	} else if n > 0 {
		log.Info().Int64("sessions", n).Msg("Sweeper: removed expired sessions")
	}

	for _, l := range s.limiters {
		l.Sweep()
	}
}
