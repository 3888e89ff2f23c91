package token

import (
	"github.com/jrsteele09/osonify-auth/authmodel"
)

// Store persists the token pair for one execution context.
// Get returns (nil, nil) when nothing is stored. Set and Clear replace the
// whole pair; readers never observe one old and one new token.
type Store interface {
	Get() (*authmodel.TokenPair, error)
	Set(pair authmodel.TokenPair) error
	Clear() error
}

// ProfileStore is implemented by stores that also cache the user profile so
// a session can be restored without a round trip.
type ProfileStore interface {
	GetUser() (*authmodel.UserProfile, error)
	SetUser(user authmodel.UserProfile) error
}

// AccessToken returns the stored access token or "".
func AccessToken(s Store) string {
	pair, err := s.Get()
	if err != nil || pair == nil {
		return ""
	}
	return pair.AccessToken
}

// RefreshToken returns the stored refresh token or "".
func RefreshToken(s Store) string {
	pair, err := s.Get()
	if err != nil || pair == nil {
		return ""
	}
	return pair.RefreshToken
}
