package config

import "time"

type SessionConfig interface {
	GetHeartbeatInterval() time.Duration
	GetRefreshLeeway() time.Duration
	GetTokenStorage() string
	GetLoginPath() string
	GetTelegramBotUsername() string
	GetRealtimeURL() string
}

type Session struct{ source }

var _ SessionConfig = Session{}

func (s Session) GetHeartbeatInterval() time.Duration {
	return s.getDuration("HEARTBEAT_INTERVAL", 5*time.Minute)
}

// GetRefreshLeeway is how close to expiry an access token may get before it
// is refreshed proactively.
func (s Session) GetRefreshLeeway() time.Duration {
	return s.getDuration("REFRESH_LEEWAY", 60*time.Second)
}

// GetTokenStorage selects the interactive storage backend: file, keyring or memory.
func (s Session) GetTokenStorage() string {
	return s.get("TOKEN_STORAGE", "file")
}

func (s Session) GetLoginPath() string {
	return s.get("LOGIN_PATH", "/login")
}

func (s Session) GetTelegramBotUsername() string {
	return s.get("TELEGRAM_BOT_USERNAME", "osonifybot")
}

func (s Session) GetRealtimeURL() string {
	return s.get("REALTIME_URL", "")
}
