package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type expiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically removes expired sessions. Lookups already
// ignore expired rows, so sweeping only reclaims storage.
type SessionSweeper struct {
	sessions expiredSessionDeleter
	interval time.Duration
}

func NewSessionSweeper(sessions expiredSessionDeleter, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{sessions: sessions, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweeps run on this goroutine only, so they never overlap.
func (s *SessionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	removed, err := s.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logrus.WithError(err).Error("failed to sweep expired sessions")
		}
		return
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("expired sessions swept")
	}
}
