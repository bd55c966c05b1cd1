package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/config"
	"github.com/AdamBeresnev/darts-bracket/internal/db"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/middleware"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/service"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	app := &cli.App{
		Name:  "darts",
		Usage: "dartboard tournament server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := setupLogging(cfg.Log); err != nil {
				return err
			}
			c.App.Metadata = map[string]any{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: func(c *cli.Context) error { return serve(c.Context, configFrom(c)) },
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					cfg := configFrom(c)
					conn, err := db.Open(c.Context, cfg.Database.Driver, cfg.Database.URL)
					if err != nil {
						return err
					}
					defer conn.Close()
					return db.RunMigrations(conn)
				},
			},
			{
				Name:  "token",
				Usage: "issue an access token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Value: middleware.RoleAdmin, Usage: "admin or player"},
					&cli.StringFlag{Name: "player", Usage: "player id for player tokens"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg := configFrom(c)
					if cfg.Auth.JWTSecret == "" {
						return errors.New("JWT_SECRET is not set")
					}
					var playerID uuid.UUID
					if c.String("role") == middleware.RolePlayer {
						id, err := uuid.Parse(c.String("player"))
						if err != nil {
							return fmt.Errorf("invalid player id: %w", err)
						}
						playerID = id
					}
					token, err := middleware.NewAuthenticator(cfg.Auth.JWTSecret).IssueToken(c.String("role"), playerID, c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func setupLogging(cfg config.LogConfig) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := notify.NewHub(originChecker(cfg.CORS.AllowedOrigins))
	go hub.Run(ctx)

	notifiers := notify.Fanout{hub}
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		notifiers = append(notifiers, notify.NewNATSNotifier(nc, cfg.NATS.SubjectPrefix))
		slog.Info("publishing events to NATS", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	services := service.New(database, notifiers, metrics.New(registry))
	router := newRouter(services, hub, middleware.NewAuthenticator(cfg.Auth.JWTSecret), registry, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", cfg.HTTP.Addr, "driver", cfg.Database.Driver)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
