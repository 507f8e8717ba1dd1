package main

// GET  /                               - Home page
// GET  /shop, /search, /products/{slug} - Catalog
// GET  /cart, POST /cart/items[/{id}[/delete]] - Cart
// GET|POST /checkout, GET /orders/{id}/confirmation - Checkout
// GET|POST /login, POST /logout        - Auth
// GET  /api/search/suggestions, /api/me - JSON
// GET  /healthz, /metrics              - Operations

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront/apiclient"
	"storefront/backend"
	"storefront/config"
	"storefront/handler"
	"storefront/logging"
	"storefront/metrics"
	"storefront/service"
	"storefront/store"
)

// --- EMBED MIGRATIONS ---
//
//go:embed migrations.sql
var migrationSQL string

const (
	purgeInterval   = 10 * time.Minute
	shutdownTimeout = 15 * time.Second
	maxLimiters     = 10000
	userAgent       = "storefront"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Server-rendered storefront for the shop backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres session tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (yaml, json or toml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Env)

	st, err := store.NewPostgresStore(cfg.Store.PostgresDSN, cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(cmd.Context(), migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("Database migrations executed successfully")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Env)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	// --- Backend client ---
	m := metrics.New()
	client := apiclient.New(apiclient.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Logger:   log,
		Observer: m,
	})
	client.SetDefaultHeader("User-Agent", userAgent)

	// --- Service ---
	svc := service.NewService(backend.New(client), st)
	var serviceInterface service.ServiceInterface = svc

	// --- Handlers ---
	h, err := handler.NewHandler(serviceInterface, handler.Options{
		Production:     cfg.Production(),
		SessionTTL:     cfg.Session.TTL,
		FlashSecret:    cfg.Session.Secret,
		LoginRPS:       cfg.RateLimit.LoginRPS,
		LoginBurst:     cfg.RateLimit.LoginBurst,
		TrustedProxies: cfg.Server.TrustedProxies,
		Metrics:        m,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	// --- Router ---
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	go every(ctx, purgeInterval, func() { h.Limiter().Cleanup(maxLimiters) })

	// --- Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore builds the configured session store. The Postgres store is
// migrated on start; Postgres and memory stores are purged of expired
// entries in the background. Redis expires keys itself.
func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := store.NewPostgresStore(cfg.Store.PostgresDSN, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pg.Migrate(ctx, migrationSQL); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("Database migrations executed successfully")
		go every(ctx, purgeInterval, func() { purge(ctx, pg, log) })
		return pg, nil
	case config.DriverRedis:
		rs, err := store.DialRedis(ctx, cfg.Store.RedisAddr, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return rs, nil
	}
	mem := store.NewMemoryStore(cfg.Session.TTL)
	go every(ctx, purgeInterval, func() { purge(ctx, mem, log) })
	return mem, nil
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func purge(ctx context.Context, p purger, log logrus.FieldLogger) {
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Warn("Error purging expired sessions")
		return
	}
	if n > 0 {
		log.WithField("rows", n).Debug("Purged expired sessions")
	}
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
