package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/osonify-auth/internal/config"
	"github.com/jrsteele09/osonify-auth/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "osonify-auth",
		Short:         "Osonify session and token service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (YAML)")

	load := func() (config.Config, error) {
		// A missing .env file is normal outside local development.
		_ = godotenv.Load()
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		setupLogging(c)
		return c, nil
	}

	cmd.AddCommand(
		serveCmd(load),
		loginCmd(load),
		whoamiCmd(load),
		logoutCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("osonify-auth version %s (build: %s)\n", Version, BuildTime)
			},
		},
	)
	return cmd
}

var errPanicRecovered = errors.New("panic recovered")

type configLoader func() (config.Config, error)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend-for-frontend auth routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			for {
				err := run(c)
				if errors.Is(err, errPanicRecovered) {
					log.Err(err).Msg("Error running server")
					time.Sleep(1 * time.Second)
					continue
				}
				if err != nil {
					return err
				}
				break
			}
			log.Info().Msg("Server stopped")
			return nil
		},
	}
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Bytes("stack", debug.Stack()).Msgf("Recovered from panic: %v", r)
			returnError = errPanicRecovered
		}
	}()

	displayAppname(c.GetAppName())
	handler, err := server.New(c)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: c.GetPort(), Handler: handler}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
