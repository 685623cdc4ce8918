package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anstrom/alicorn/internal/api"
	"github.com/anstrom/alicorn/internal/api/handlers"
	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/config"
	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/metrics"
	"github.com/anstrom/alicorn/internal/notify"
)

const (
	databaseTimeout       = 5 * time.Second
	systemMetricsInterval = 15 * time.Second
)

var serveSkipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the alicorn HTTP API in the foreground until interrupted.

Pending schema migrations are applied on startup unless --skip-migrations
is given. Session notifications are published on /api/v1/ws/notifications
and Prometheus metrics on /metrics.`,
	Example: `  alicorn serve
  alicorn serve --host 0.0.0.0 --port 8080
  ALICORN_DATABASE_PASSWORD=secret alicorn serve --config /etc/alicorn/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "override api.host")
	serveCmd.Flags().Int("port", 0, "override api.port")
	serveCmd.Flags().BoolVar(&serveSkipMigrations, "skip-migrations", false, "do not apply pending migrations")

	bindFlags(serveCmd.Flags(), map[string]string{
		"host": "api.host",
		"port": "api.port",
	})
}

// application is the wired server and the services it owns.
type application struct {
	server  *api.Server
	manager *comparison.Manager
	hub     *notify.Hub
	prom    *metrics.PrometheusMetrics
	logger  *logging.Logger
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.Default()
	database, err := connectDatabase(ctx, cfg, !serveSkipMigrations, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			logger.Error("Failed to close database connection", "error", closeErr)
		}
	}()

	app, err := newApplication(cfg, database, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Starting alicorn API server %s\n", getVersion())
	fmt.Printf("Listening on http://%s\n", cfg.API.Address())
	return app.run(ctx)
}

// connectDatabase opens the database, optionally migrating it first, and
// verifies the connection.
func connectDatabase(ctx context.Context, cfg *config.Config, migrate bool, logger *logging.Logger) (*db.DB, error) {
	logger.Info("Connecting to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	var (
		database *db.DB
		err      error
	)
	if migrate {
		database, err = db.ConnectAndMigrate(ctx, &cfg.Database)
	} else {
		database, err = db.Connect(ctx, &cfg.Database)
	}
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, databaseTimeout)
	defer cancel()
	if err := database.Ping(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection successful")
	return database, nil
}

// newApplication wires the comparison services onto database.
func newApplication(cfg *config.Config, database *db.DB, logger *logging.Logger) (*application, error) {
	prom := metrics.NewPrometheusMetrics()
	if err := prom.RegisterDBStats(database.DB.DB, cfg.Database.Database); err != nil {
		logger.Warn("Failed to register database pool metrics", "error", err)
	}

	registry := metrics.NewRegistry()
	hub := notify.NewHub(logger, registry)

	var source comparison.DataSource = comparison.NewDBSource(
		db.NewScanRepository(database),
		db.NewReportRepository(database),
	)
	if cfg.Comparison.CacheTTL > 0 {
		source = comparison.NewCachedSource(source, cfg.Comparison.CacheTTL, prom)
	}

	store := db.NewSavedComparisonRepository(database)

	manager := comparison.NewManager(store, source,
		func(id uuid.UUID) comparison.Notifier {
			return notify.Multi{hub.ForSession(id), notify.NewLogger(logger, id.String())}
		},
		comparison.ManagerConfig{
			DebounceWindow:  cfg.Comparison.DebounceWindow,
			IdleTimeout:     cfg.Comparison.SessionIdleTimeout,
			JanitorSchedule: cfg.Comparison.JanitorSchedule,
			MaxSessions:     cfg.Comparison.MaxSessions,
		},
		logger, prom)

	server, err := api.New(cfg, handlers.Dependencies{
		Database:      database,
		Sessions:      manager,
		Source:        source,
		Saved:         store,
		Notifications: hub,
		Logger:        logger.Logger,
		Metrics:       registry,
	}, prom)
	if err != nil {
		hub.Close()
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	return &application{
		server:  server,
		manager: manager,
		hub:     hub,
		prom:    prom,
		logger:  logger,
	}, nil
}

// run serves until ctx is canceled, then shuts down sessions and the hub.
func (a *application) run(ctx context.Context) error {
	if err := a.manager.Start(); err != nil {
		a.hub.Close()
		return err
	}
	defer func() {
		a.manager.Stop()
		a.hub.Close()
	}()

	go a.prom.StartPeriodicUpdates(ctx, systemMetricsInterval)

	a.logger.Info("Starting alicorn API server",
		"version", version,
		"commit", commit,
		"build_time", buildTime,
		"address", a.server.GetAddress())

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	fmt.Println("Server stopped successfully")
	return nil
}
