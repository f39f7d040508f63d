package auth

import (
	"context"
	"time"

	"github.com/cameronmore/go-members/logging"
	"github.com/cameronmore/go-members/sessions"
	"github.com/robfig/cron/v3"
)

// Sweeper removes expired session rows. Reads already reject expired sessions,
// so sweeping only keeps the table small.
type Sweeper struct {
	store sessions.ExpiringSessionStore
	log   logging.Logger
	now   func() time.Time
}

func NewSweeper(store sessions.ExpiringSessionStore, log logging.Logger) *Sweeper {
	return &Sweeper{store: store, log: log, now: time.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.log.Error(ctx, "session sweep failed", "error", err)
		return 0, err
	}
	s.log.Info(ctx, "session sweep finished", "removed", n)
	return n, nil
}

// Schedule registers the sweep on c using a standard cron spec or a descriptor such as "@every 1h".
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		_, _ = s.Sweep(ctx)
	})
}
