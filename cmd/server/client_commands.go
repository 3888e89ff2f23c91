package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/login"
	"github.com/jrsteele09/osonify-auth/realtime"
	"github.com/jrsteele09/osonify-auth/session"
	"github.com/jrsteele09/osonify-auth/token/clientstore"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func loginCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
	}

	var initData string
	miniApp := &cobra.Command{
		Use:   "miniapp",
		Short: "Sign in with Mini-App init data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initData == "" {
				initData = os.Getenv(initDataEnvVar)
			}
			return withSession(load, func(s *interactiveSession) error {
				return s.flows.MiniApp(cmd.Context(), initData)
			})
		},
	}
	miniApp.Flags().StringVar(&initData, "init-data", "", "raw init data (defaults to $"+initDataEnvVar+")")

	var query string
	widget := &cobra.Command{
		Use:   "widget",
		Short: "Sign in with a login widget redirect query",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := url.ParseQuery(query)
			if err != nil {
				return fmt.Errorf("parse --query: %w", err)
			}
			data, err := login.ParseWidgetQuery(values)
			if err != nil {
				return err
			}
			return withSession(load, func(s *interactiveSession) error {
				return s.flows.Widget(cmd.Context(), data)
			})
		},
	}
	widget.Flags().StringVar(&query, "query", "", "query string the widget redirected with (id=...&first_name=...&auth_date=...&hash=...)")
	_ = widget.MarkFlagRequired("query")

	var (
		bearer         string
		skipValidation bool
	)
	debugLogin := &cobra.Command{
		Use:   "debug",
		Short: "Sign in with a pasted access token (development builds only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(load, func(s *interactiveSession) error {
				return s.flows.Debug(cmd.Context(), bearer, skipValidation)
			})
		},
	}
	debugLogin.Flags().StringVar(&bearer, "token", "", "access token")
	debugLogin.Flags().BoolVar(&skipValidation, "skip-validation", false, "do not check the token against the backend")
	_ = debugLogin.MarkFlagRequired("token")

	cmd.AddCommand(miniApp, widget, debugLogin)
	return cmd
}

// withSession runs fn and prints the signed-in user on success.
func withSession(load configLoader, fn func(s *interactiveSession) error) error {
	c, err := load()
	if err != nil {
		return err
	}
	s, err := newInteractiveSession(c)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return printUser(s.manager.Snapshot())
}

func whoamiCmd(load configLoader) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			s, err := newInteractiveSession(c)
			if err != nil {
				return err
			}
			if err := s.manager.InitializeAuth(cmd.Context()); err != nil {
				return err
			}
			if err := printUser(s.manager.Snapshot()); err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followSession(cmd.Context(), s)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep the session fresh and print changes until interrupted")
	return cmd
}

// followSession keeps the session alive: proactive refresh, adoption of tokens
// written by other processes and, when configured, a realtime connection.
func followSession(ctx context.Context, s *interactiveSession) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.manager.Subscribe(func(ev session.Event) {
		log.Info().Str("event", ev.Kind.String()).Msg("session changed")
	})

	if path := s.watchPath(); path != "" {
		go func() {
			err := clientstore.Watch(ctx, path, func() {
				if err := s.manager.Sync(); err != nil {
					log.Err(err).Msg("[follow] sync session")
				}
			})
			if err != nil {
				log.Err(err).Msg("[follow] watch session file")
			}
		}()
	}

	if wsURL := s.config.GetRealtimeURL(); wsURL != "" {
		conn := realtime.New(wsURL)
		defer conn.Close()
		defer conn.Attach(ctx, s.manager)()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-conn.Messages():
					fmt.Println(string(msg.Data))
				}
			}
		}()
	}

	s.manager.Heartbeat(ctx, s.coordinator, s.config.GetHeartbeatInterval(), s.config.GetRefreshLeeway())
	return nil
}

func logoutCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			s, err := newInteractiveSession(c)
			if err != nil {
				return err
			}
			if err := s.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func printUser(snap session.Session) error {
	if !snap.IsAuthenticated || snap.User == nil {
		fmt.Println("Not signed in.")
		return nil
	}
	out, err := json.MarshalIndent(struct {
		State string                 `json:"state"`
		User  *authmodel.UserProfile `json:"user"`
	}{State: string(snap.State()), User: snap.User}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
