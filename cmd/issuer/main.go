package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ballotbox.org/internal/config"
	"ballotbox.org/internal/httpapi"
	"ballotbox.org/internal/identity"
	"ballotbox.org/internal/issuer"
	"ballotbox.org/internal/obs"
	"ballotbox.org/internal/recorder/remote"
	"ballotbox.org/internal/store/pg"
)

var version = "0.3.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "issuer",
		Short: "Voting credential issuer service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/issuer.yaml", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the credential issuer API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Recorder.BaseURL == "" {
		return errors.New("recorder.base_url is required")
	}

	obs.Init()
	obs.InitBuildInfo("credential-issuer", version)

	verifier, err := buildVerifier(cfg.Identity)
	if err != nil {
		return err
	}

	var store issuer.Store
	var closer interface{ Close() error }
	if cfg.Postgres.DSN != "" {
		pgStore, err := pg.OpenIssuer(cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		store = pgStore
		closer = pgStore
	} else {
		log.Println("no postgres.dsn configured, using in-memory store")
		store = issuer.NewInMemory()
	}

	recorderClient := remote.New(cfg.Recorder.BaseURL, cfg.Recorder.S2SToken, cfg.Recorder.Timeout)

	svc, err := issuer.NewService(store, recorderClient, nil)
	if err != nil {
		return err
	}

	api := httpapi.NewIssuer(svc, verifier, store, httpapi.Options{
		Version:        version,
		RateBurst:      cfg.RateLimit.Burst,
		RatePerSecond:  cfg.RateLimit.PerSecond,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting credential-issuer %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if closer != nil {
		_ = closer.Close()
	}
	log.Println("Stopped")
	return nil
}

func buildVerifier(cfg config.IdentityConfig) (*identity.Verifier, error) {
	opts := []identity.VerifierOption{}
	if cfg.PublicKeyPEM != "" {
		opts = append(opts, identity.WithRSAPublicKeyPEM(cfg.PublicKeyPEM))
	} else {
		opts = append(opts, identity.WithHMACSecret(cfg.HMACSecret))
	}
	if cfg.Issuer != "" {
		opts = append(opts, identity.WithIssuer(cfg.Issuer))
	}
	return identity.NewVerifier(opts...)
}
