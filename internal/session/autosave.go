package session

import (
	"context"
	"time"

	"github.com/tphakala/linewalk/internal/logger"
)

// AutoSaver periodically saves the session's form while it has unsaved changes
type AutoSaver struct {
	session  *Session
	interval time.Duration
	log      logger.Logger
}

// NewAutoSaver creates an auto-saver. An interval of 0 disables it.
func NewAutoSaver(s *Session, interval time.Duration) *AutoSaver {
	return &AutoSaver{
		session:  s,
		interval: interval,
		log:      s.log.Module("autosave"),
	}
}

// Run ticks until ctx is cancelled. Save errors are logged and toasted, never returned.
func (a *AutoSaver) Run(ctx context.Context) error {
	if a.interval <= 0 {
		a.log.Debug("auto-save disabled")
		return nil
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Info("auto-save started", logger.Duration("interval", a.interval))
	for {
		select {
		case <-ctx.Done():
			a.log.Debug("auto-save stopped")
			return nil
		case <-ticker.C:
			if err := a.session.AutoSave(ctx); err != nil {
				a.log.Warn("auto-save failed", logger.Error(err))
			}
		}
	}
}
