package session

import (
	"github.com/jrsteele09/osonify-auth/authmodel"
)

type State string

const (
	StateEmpty         State = "empty"
	StateLoading       State = "loading"
	StateAuthenticated State = "authenticated"
	StateRefreshing    State = "refreshing"
)

// Session is a read-only snapshot of the session. IsAuthenticated implies
// Tokens != nil.
type Session struct {
	User            *authmodel.UserProfile `json:"user"`
	Tokens          *authmodel.TokenPair   `json:"-"`
	IsAuthenticated bool                   `json:"is_authenticated"`
	IsLoading       bool                   `json:"is_loading"`
	IsRefreshing    bool                   `json:"is_refreshing"`
}

func (s Session) State() State {
	switch {
	case s.IsLoading:
		return StateLoading
	case s.IsAuthenticated && s.IsRefreshing:
		return StateRefreshing
	case s.IsAuthenticated:
		return StateAuthenticated
	default:
		return StateEmpty
	}
}

func (s Session) clone() Session {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Tokens != nil {
		t := *s.Tokens
		out.Tokens = &t
	}
	return out
}

type EventKind int

const (
	// TokensUpdated is sent after login, hydration and every refresh.
	TokensUpdated EventKind = iota
	// Cleared is sent after logout or a failed refresh.
	Cleared
)

func (k EventKind) String() string {
	if k == Cleared {
		return "cleared"
	}
	return "tokens_updated"
}

// Event is delivered to subscribers. Old is nil when there were no tokens.
type Event struct {
	Kind EventKind
	Old  *authmodel.TokenPair
	New  *authmodel.TokenPair
}

type Listener func(Event)
