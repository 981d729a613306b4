package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SessionSweeper interface {
	DeactivateExpired(ctx context.Context) (int64, error)
	PurgeInactive(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler runs the session housekeeping: expired sessions are tombstoned
// every few minutes, and old tombstones are purged once a day. Nothing else
// in the system deletes session rows.
type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionSweeper
	retention time.Duration
	log       zerolog.Logger
}

func NewScheduler(sessions SessionSweeper, retention time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		sessions:  sessions,
		retention: retention,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.sessions == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 */5 * * * *", s.sweepExpired); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.purgeTombstones); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for in-flight jobs, up to a small grace period.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweepExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.sessions.DeactivateExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("sessions", n).Msg("expired sessions tombstoned")
	}
}

func (s *Scheduler) purgeTombstones() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sessions.PurgeInactive(ctx, s.retention)
	if err != nil {
		s.log.Error().Err(err).Msg("session purge failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("sessions", n).Msg("old sessions purged")
	}
}
