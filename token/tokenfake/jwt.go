// Package tokenfake holds test helpers for tokens and token stores.
package tokenfake

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testKey = []byte("tokenfake-signing-key")

// AccessToken returns an HS256 JWT for subject that expires at exp.
func AccessToken(subject string, exp time.Time) string {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// AccessTokenWithoutExpiry returns an HS256 JWT with no exp claim.
func AccessTokenWithoutExpiry(subject string) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).SignedString(testKey)
	if err != nil {
		panic(err)
	}
	return signed
}
