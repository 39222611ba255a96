// Command server runs the budget API.
//
//	@title			Budget API
//	@version		1.0
//	@description	CRUD over budgets with a single error mapping funnel.
//	@BasePath		/api
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-budget-api/internal/config"
	"github.com/tbourn/go-budget-api/internal/domain"
	httpapi "github.com/tbourn/go-budget-api/internal/http"
	"github.com/tbourn/go-budget-api/internal/lifecycle"
	"github.com/tbourn/go-budget-api/internal/observability"
	"github.com/tbourn/go-budget-api/internal/repo"
	"github.com/tbourn/go-budget-api/internal/sysutil"
)

// This is set at build time with -ldflags "-X main.version=...".
var version = "0.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(context.Background())
	if err != nil {
		sysutil.SetupLogger("info", "json")
		log.Error().Err(err).Msg("invalid configuration")
		return lifecycle.ExitFatal
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	sup := lifecycle.New(lifecycle.Options{
		ShutdownTimeout: cfg.ShutdownTimeout,
		DrainOnFatal:    cfg.ShutdownDrainOnFatal,
	})

	shutdownOTel, err := observability.Setup(context.Background(), cfg.OTEL, observability.Service{
		Version:     version,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		log.Error().Err(err).Msg("tracing setup failed")
		return lifecycle.ExitFatal
	}
	sup.OnShutdown("tracing", lifecycle.ShutdownFunc(shutdownOTel))

	stores, closeStore, err := openStores(cfg)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Store.Driver).Msg("store setup failed")
		return lifecycle.ExitFatal
	}
	sup.OnShutdown("store", closeStore)

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	httpapi.RegisterRoutes(r, stores, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	sup.OnShutdown("http", srv.Shutdown)

	sup.Go("http", func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.AppEnv).
			Str("store", cfg.Store.Driver).
			Str("version", version).
			Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return sup.Run(context.Background())
}

// openStores builds the configured store and its close function.
func openStores(cfg config.Config) (httpapi.Stores, lifecycle.ShutdownFunc, error) {
	if cfg.Store.Driver != config.StoreSQLite {
		return httpapi.MemoryStores(cfg.Store.Seed), func(context.Context) error { return nil }, nil
	}

	db, err := repo.OpenSQLite(cfg.Store.DBPath)
	if err != nil {
		return httpapi.Stores{}, nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return httpapi.Stores{}, nil, err
	}
	if cfg.Store.Seed {
		if err := repo.SeedBudgets(context.Background(), db, domain.SeedBudgets()); err != nil {
			return httpapi.Stores{}, nil, err
		}
	}
	return httpapi.SQLStores(db), closeDB(db), nil
}

func closeDB(db *gorm.DB) lifecycle.ShutdownFunc {
	return func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}
