package authmodel

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/osonify-auth/internal/errors"
)

// TokenPair is the access/refresh token pair issued by the backend.
// Both values are opaque bearer strings to this module; the access token is
// expected to be a JWT carrying an "exp" claim.
type TokenPair struct {
	// AccessToken is the short-lived credential sent as "Authorization: Bearer <access_token>".
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived credential used only against the refresh endpoint.
	RefreshToken string `json:"refresh_token"`
}

// IsZero reports whether neither token is set.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// AuthResponse is returned by the webapp, telegram and refresh endpoints.
type AuthResponse struct {
	ID    string    `json:"id"`
	Token TokenPair `json:"token"`
}

// Validate checks the response carries a usable access token.
func (r AuthResponse) Validate() error {
	if strings.TrimSpace(r.Token.AccessToken) == "" {
		return errors.Wrapf(errors.ErrMalformedToken, "auth response for %q has no access token", r.ID)
	}
	return nil
}

// LogoutRequest is posted to the logout endpoint; the tokens travel in the body.
type LogoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LogoutResponse is the logout endpoint acknowledgement.
type LogoutResponse struct {
	Message string `json:"message"`
}

// TelegramLoginData is the signed identity payload produced by the Telegram
// login widget. It is forwarded to the backend unchanged; the hash is
// verified there.
type TelegramLoginData struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name,omitempty"`
	Username  *string `json:"username,omitempty"`
	PhotoURL  *string `json:"photo_url,omitempty"`
	AuthDate  int64   `json:"auth_date"`
	Hash      string  `json:"hash"`
}

// Validate checks the fields the backend requires for signature verification.
func (d TelegramLoginData) Validate() error {
	var missing []string
	if d.ID == 0 {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(d.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if d.AuthDate == 0 {
		missing = append(missing, "auth_date")
	}
	if strings.TrimSpace(d.Hash) == "" {
		missing = append(missing, "hash")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errors.ErrInvalidTelegramData, strings.Join(missing, ", "))
	}
	return nil
}
