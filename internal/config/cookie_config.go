package config

import "time"

type CookieConfig interface {
	GetAccessTokenMaxAge() time.Duration
	GetRefreshTokenMaxAge() time.Duration
	GetSecureCookies() bool
}

type Cookies struct{ source }

var _ CookieConfig = Cookies{}

func (Cookies) GetAccessTokenMaxAge() time.Duration {
	return 1 * time.Hour
}

func (Cookies) GetRefreshTokenMaxAge() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

// GetSecureCookies is true in production unless COOKIE_SECURE overrides it.
func (c Cookies) GetSecureCookies() bool {
	return c.getBool("COOKIE_SECURE", EnvVars(c).IsProduction())
}
