//go:build !production

package login

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
	"github.com/jrsteele09/osonify-auth/internal/utils"
)

// DebugAvailable reports whether the debug flow is compiled in.
const DebugAvailable = true

// Debug logs in with a manually entered bearer token. The token is stored
// as both access and refresh token. With skipValidation no request is
// made and a placeholder profile is used; otherwise the token is checked
// against the profile endpoint and the placeholder is used if that fails.
func (f *Flows) Debug(ctx context.Context, bearer string, skipValidation bool) (err error) {
	defer func() { f.observe(FlowDebug, err) }()

	if !f.debugEnabled {
		return &Error{Flow: FlowDebug, Err: errors.ErrDebugLoginDisabled}
	}
	if bearer == "" {
		return &Error{Flow: FlowDebug, Err: errors.ErrMalformedToken}
	}

	pair := authmodel.TokenPair{AccessToken: bearer, RefreshToken: bearer}
	profile := debugProfile(time.Now())
	if !skipValidation {
		validated, err := f.service.ProfileWithToken(ctx, bearer)
		if err != nil {
			f.logger.Warn().Err(err).Msg("debug token did not validate, using placeholder profile")
		} else {
			profile = *validated
		}
	}

	if err := f.session.SetAuth(authmodel.AuthResponse{ID: profile.ID, Token: pair}, profile); err != nil {
		return &Error{Flow: FlowDebug, Err: err}
	}
	f.logger.Warn().Str("user_id", profile.ID).Msg("logged in with debug token")
	return nil
}

func debugProfile(now time.Time) authmodel.UserProfile {
	created := now.UTC().Format(time.RFC3339)
	return authmodel.UserProfile{
		ID:              "debug-user",
		FirstName:       "Debug",
		LastName:        "User",
		Username:        "debug_user",
		TelegramID:      utils.Ptr(int64(123456789)),
		Language:        "en",
		InterfaceLang:   "en",
		Balance:         utils.Ptr(int64(100)),
		Points:          utils.Ptr(int64(50)),
		IsUsedFreeTrial: utils.Ptr(false),
		ReferCount:      utils.Ptr(int64(0)),
		PolicyAccepted:  utils.Ptr(true),
		IsAdmin:         utils.Ptr(true),
		CreatedAt:       created,
		UpdatedAt:       created,
		Plan: &authmodel.Plan{
			ID:         "debug-plan",
			UserID:     "debug-user",
			Plan:       "free",
			PlanType:   "trial",
			Expenses:   []json.RawMessage{},
			CreatedAt:  created,
			ExpireDate: now.Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339),
		},
	}
}
