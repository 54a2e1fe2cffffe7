package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"gatekeep/internal/audit"
	audithandler "gatekeep/internal/audit/handler"
	auditmemory "gatekeep/internal/audit/store/memory"
	auditpostgres "gatekeep/internal/audit/store/postgres"
	"gatekeep/internal/dashboard"
	identityhandler "gatekeep/internal/identity/handler"
	identityservice "gatekeep/internal/identity/service"
	identitystore "gatekeep/internal/identity/store"
	"gatekeep/internal/identity/store/revocation"
	"gatekeep/internal/identity/token"
	"gatekeep/internal/inventory"
	"gatekeep/internal/notify"
	notifyhandler "gatekeep/internal/notify/handler"
	"gatekeep/internal/platform/config"
	"gatekeep/internal/platform/httpserver"
	"gatekeep/internal/platform/logger"
	requesthandler "gatekeep/internal/request/handler"
	requestmetrics "gatekeep/internal/request/metrics"
	requestservice "gatekeep/internal/request/service"
	requeststore "gatekeep/internal/request/store"
	sessionhandler "gatekeep/internal/session/handler"
	sessionmetrics "gatekeep/internal/session/metrics"
	sessionservice "gatekeep/internal/session/service"
	sessionstore "gatekeep/internal/session/store"
	"gatekeep/internal/session/sweeper"
	"gatekeep/pkg/platform/middleware"
)

// main wires the lifecycle services together and runs the HTTP server and
// the expiry sweeper until a shutdown signal arrives. Business logic lives
// in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := notify.NewBus()
	users := identitystore.NewInMemory()

	// Audit entries and the inventory go to Postgres when a DSN is
	// configured, memory otherwise.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var auditStore audit.Store
	if db != nil {
		pgStore := auditpostgres.New(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure audit schema", "error", err)
			os.Exit(1)
		}
		auditStore = pgStore
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	trail := audit.New(auditStore, users, audit.WithLogger(log))

	var trl identityservice.RevocationList = revocation.NewInMemoryTRL()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		trl = revocation.NewRedisTRL(client)
	}

	tokens := token.NewService(cfg.JWTSigningKey, "gatekeep", cfg.TokenTTL)
	identity := identityservice.New(users, tokens, trl, trail, bus, identityservice.WithLogger(log))
	if err := identity.Seed(ctx); err != nil {
		log.Error("failed to seed users", "error", err)
		os.Exit(1)
	}

	sessions := sessionservice.New(sessionstore.NewInMemory(), identity, trail, bus,
		sessionservice.WithLogger(log),
		sessionservice.WithMetrics(sessionmetrics.New()),
	)
	requests := requestservice.New(requeststore.NewInMemory(), identity, sessions, trail, bus,
		requestservice.WithLogger(log),
		requestservice.WithMetrics(requestmetrics.New()),
	)

	var inventoryStore inventory.Store
	if db != nil {
		pgStore := inventory.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure inventory schema", "error", err)
			os.Exit(1)
		}
		inventoryStore = pgStore
	} else {
		inventoryStore = inventory.NewInMemoryStore()
	}
	catalog := inventory.New(inventoryStore, identity, bus, inventory.WithLogger(log))

	router := chi.NewRouter()
	router.Use(middleware.Metadata)
	router.Handle("/metrics", promhttp.Handler())

	identityHandler := identityhandler.New(identity, log)
	identityHandler.Register(router)
	notifyhandler.New(bus, log).Register(router)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(identity))
		identityHandler.RegisterProtected(r)
		requesthandler.New(requests, log).Register(r)
		sessionhandler.New(sessions, log).Register(r)
		audithandler.New(trail, log).Register(r)
		inventory.NewHandler(catalog, log).Register(r)
		dashboard.New(sessions, requests, catalog, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	sweep := sweeper.New(sessions, cfg.SweepInterval, log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting gatekeep", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return sweep.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
