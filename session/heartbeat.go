package session

import (
	"context"
	"time"
)

// Expirer is implemented by *refresh.Coordinator.
type Expirer interface {
	RefreshIfExpiring(ctx context.Context, leeway time.Duration) (bool, error)
}

// Heartbeat checks the access token now and every interval, refreshing it
// when it expires within leeway. Errors are logged and the loop keeps
// going. It blocks until ctx is done.
func (m *Manager) Heartbeat(ctx context.Context, e Expirer, interval, leeway time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.beat(ctx, e, leeway)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) beat(ctx context.Context, e Expirer, leeway time.Duration) {
	snap := m.Snapshot()
	if snap.Tokens == nil || snap.Tokens.AccessToken == "" {
		return
	}
	refreshed, err := e.RefreshIfExpiring(ctx, leeway)
	if err != nil {
		m.logger.Err(err).Msg("[Manager Heartbeat] proactive refresh failed")
		return
	}
	if refreshed {
		m.logger.Debug().Msg("access token refreshed ahead of expiry")
	}
}
