package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jrsteele09/osonify-auth/api"
	"github.com/jrsteele09/osonify-auth/authapi"
	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/jrsteele09/osonify-auth/login"
	"github.com/jrsteele09/osonify-auth/metrics"
	"github.com/jrsteele09/osonify-auth/session"
	"github.com/jrsteele09/osonify-auth/token/clientstore"
	"github.com/jrsteele09/osonify-auth/token/refresh"
	"github.com/jrsteele09/osonify-auth/transport"
)

// initDataEnvVar carries Mini-App init data when the process is launched
// by a Mini-App host.
const initDataEnvVar = "TELEGRAM_INIT_DATA"

// interactiveSession is the per-process wiring used by the client commands.
type interactiveSession struct {
	config      config.Config
	storage     clientstore.Storage
	store       *clientstore.Store
	coordinator *refresh.Coordinator
	service     *authapi.Service
	manager     *session.Manager
	flows       *login.Flows
}

func newInteractiveSession(c config.Config) (*interactiveSession, error) {
	storage, err := openStorage(c)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("[newInteractiveSession] cookie jar: %w", err)
	}
	baseURL, err := url.Parse(c.GetAPIBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[newInteractiveSession] base url: %w", err)
	}

	m := metrics.New()
	store := clientstore.New(storage,
		clientstore.WithCookieFallback(jar, baseURL),
		clientstore.WithCookieMaxAge(c.GetAccessTokenMaxAge(), c.GetRefreshTokenMaxAge()),
	)
	raw := transport.NewFromConfig(c, transport.ModeInteractive,
		transport.WithHTTPClient(&http.Client{Jar: jar}),
		transport.WithMetrics(m),
	)
	prefix := c.GetAPIPrefix()
	coordinator := refresh.NewCoordinator(store, authapi.New(raw, prefix),
		refresh.WithMetrics(m),
		refresh.WithRedirector(refresh.RedirectorFunc(func(context.Context) {
			fmt.Fprintln(os.Stderr, "Session expired. Run `osonify-auth login` to sign in again.")
		})),
	)
	service := authapi.New(api.New(raw, store, coordinator), prefix)

	s := &interactiveSession{config: c, storage: storage, store: store, coordinator: coordinator, service: service}
	s.manager = session.NewManager(store,
		session.WithBackend(service),
		session.WithMiniApp(
			func() string { return os.Getenv(initDataEnvVar) },
			func(ctx context.Context, initData string) error { return s.flows.MiniApp(ctx, initData) },
		),
	)
	s.manager.Bind(coordinator)
	s.flows = login.New(service, store, s.manager,
		login.WithMetrics(m),
		login.WithDebugMode(c.GetDebugMode()),
	)
	return s, nil
}

func openStorage(c config.Config) (clientstore.Storage, error) {
	switch c.GetTokenStorage() {
	case "memory":
		return clientstore.NewMemoryStorage(), nil
	case "keyring":
		return clientstore.NewKeyringStorage(clientstore.DefaultKeyringService), nil
	case "file":
		return clientstore.NewFileStorage(sessionFile(c))
	default:
		return nil, fmt.Errorf("[openStorage] unknown TOKEN_STORAGE %q", c.GetTokenStorage())
	}
}

func sessionFile(c config.Config) string {
	return filepath.Join(c.GetDataFolder(), "session.json")
}

// watchPath is the file other processes write tokens to, or "" when the
// storage is not file backed.
func (s *interactiveSession) watchPath() string {
	if fs, ok := s.storage.(*clientstore.FileStorage); ok {
		return fs.Path()
	}
	return ""
}
