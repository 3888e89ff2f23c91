package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/osonify-auth/token"
	"golang.org/x/oauth2"
)

// TokenSource adapts the coordinator to oauth2.TokenSource so the stored
// session can drive an oauth2.Client. Tokens within leeway of expiry are
// refreshed through the same single-flight path.
func (c *Coordinator) TokenSource(leeway time.Duration) oauth2.TokenSource {
	return &tokenSource{c: c, leeway: leeway}
}

type tokenSource struct {
	c      *Coordinator
	leeway time.Duration
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	ctx := context.Background()
	access := token.AccessToken(s.c.store)
	if access == "" {
		var err error
		if access, err = s.c.Refresh(ctx, ""); err != nil {
			return nil, err
		}
	} else if _, err := s.c.RefreshIfExpiring(ctx, s.leeway); err != nil {
		return nil, err
	} else {
		access = token.AccessToken(s.c.store)
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: token.RefreshToken(s.c.store),
	}
	if exp, err := token.ExpiresAt(access); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}
