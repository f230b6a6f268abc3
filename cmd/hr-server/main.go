package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/config"
	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/domain/heartrate"
	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/platform/cache"
	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/platform/db"
	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/platform/middleware"
	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/internal/platform/notification"
)

const (
	version = "0.1.0"

	// notificationRetain bounds the in-memory notification log.
	notificationRetain = 1000
	maxBodySize        = "1M"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hr-server",
		Short: "Heart rate sentinel API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the heart rate sentinel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, db.EmbeddedMigrations())
			applied, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", len(applied))
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, db.EmbeddedMigrations())
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	return db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// store is the opened patient store together with what it holds open.
type store struct {
	backend  string
	patients heartrate.PatientRepository
	pool     *pgxpool.Pool
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch backend := cfg.Backend(); backend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return nil, err
		}
		return &store{backend: backend, patients: heartrate.NewPatientRepo(pool), pool: pool, close: pool.Close}, nil
	case config.BackendRedis:
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &store{backend: backend, patients: heartrate.NewRedisPatientRepo(client), close: func() { client.Close() }}, nil
	case config.BackendMemory:
		return &store{backend: backend, patients: heartrate.NewMemoryPatientRepo(), close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.SendGridEnabled() {
		return notification.NewSendGridSender(cfg.SendGridBaseURL, cfg.SendGridAPIKey, cfg.AlertFromEmail)
	}
	return notification.LogSender{Logger: logger.With().Str("component", "email").Logger()}
}

// newServer builds the echo instance with all routes registered.
func newServer(cfg *config.Config, st *store, svc *heartrate.Service, mgr *notification.Manager, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   st.backend,
		})
	})
	if st.pool != nil {
		e.GET("/health/db", db.HealthHandler(st.pool, 2*time.Second))
	}

	api := e.Group("/api")
	heartrate.NewHandler(svc).RegisterRoutes(api)

	apiV1 := e.Group("/api/v1")
	notification.NewHandler(mgr).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Patient store
	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Backend()).Msg("failed to open patient store")
	}
	defer st.close()
	logger.Info().Str("store", st.backend).Msg("patient store ready")
	if st.backend == config.BackendMemory {
		logger.Warn().Msg("using the in-memory store; patients are lost on restart")
	}

	// Alerts
	sender := newEmailSender(cfg, logger)
	mgr := notification.NewManager(sender, notification.NewTemplateEngine(), notificationRetain)
	dispatcher := notification.NewDispatcher(mgr, cfg.AlertQueueSize, logger)
	dispatcher.Start(cfg.AlertWorkers)

	svc := heartrate.NewService(st.patients, dispatcher, heartrate.Config{AlertsEnabled: cfg.AlertsEnabled}, logger)
	e := newServer(cfg, st, svc, mgr, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("alerts_enabled", cfg.AlertsEnabled).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("alert queue not drained before shutdown deadline")
	}
	logger.Info().Msg("server stopped")
	return nil
}
