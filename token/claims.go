package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/osonify-auth/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ExpiresAt reads the "exp" claim of an access token without verifying its
// signature. Verification is the backend's job; the client only needs to
// know when to refresh.
func ExpiresAt(rawToken string) (time.Time, error) {
	if strings.TrimSpace(rawToken) == "" {
		return time.Time{}, errors.ErrMalformedToken
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrMalformedToken, "parse: %v", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrMalformedToken, "exp claim: %v", err)
	}
	if exp == nil {
		return time.Time{}, errors.ErrTokenExpiryMiss
	}
	return exp.Time, nil
}

// ExpiresWithin reports whether the token expires within leeway of now.
// Tokens whose expiry cannot be read are reported as not expiring.
func ExpiresWithin(rawToken string, leeway time.Duration) bool {
	exp, err := ExpiresAt(rawToken)
	if err != nil {
		return false
	}
	return exp.Sub(NowTimeFunc()) < leeway
}
