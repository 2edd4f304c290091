package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/procurebot/procurement-backend/api"
	"github.com/procurebot/procurement-backend/api/controllers"
	"github.com/procurebot/procurement-backend/api/routes"
	"github.com/procurebot/procurement-backend/internal/catalog"
	"github.com/procurebot/procurement-backend/internal/notifications"
	"github.com/procurebot/procurement-backend/internal/orders"
	"github.com/procurebot/procurement-backend/internal/requisitions"
	"github.com/procurebot/procurement-backend/internal/sourcing"
	"github.com/procurebot/procurement-backend/internal/users"
	"github.com/procurebot/procurement-backend/pkg/auth"
	"github.com/procurebot/procurement-backend/pkg/config"
	"github.com/procurebot/procurement-backend/pkg/db"
	"github.com/procurebot/procurement-backend/pkg/idgen"
	"github.com/procurebot/procurement-backend/pkg/instance"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/metrics"
	"github.com/procurebot/procurement-backend/pkg/migrate"
	"github.com/procurebot/procurement-backend/pkg/outbox"
	pkgredis "github.com/procurebot/procurement-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	var redisClient *pkgredis.Client
	defer func() {
		closeErr := dbClient.Close()
		if redisClient != nil {
			closeErr = multierr.Append(closeErr, redisClient.Close())
		}
		if closeErr != nil {
			logg.Error(context.Background(), "error closing resources", closeErr)
		}
	}()

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run migrations", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"db": dbClient, "redis": nil}
	var store pkgredis.IdempotencyStore = pkgredis.NewMemoryStore()
	if cfg.Redis.Enabled() {
		redisClient, err = pkgredis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		store = redisClient
		readiness["redis"] = redisClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	procurementMetrics := metrics.NewProcurementMetrics(registry)

	box := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ids, err := idgen.NewNode(cfg.App.NodeID)
	requireService(logg, "id generator", err)

	resolver, err := sourcing.NewService(dbClient, sourcing.NewRepository(dbClient.DB()), logg)
	requireService(logg, "sourcing", err)

	scope := orders.ScopeGlobal
	if cfg.Orders.SubmitterScoped() {
		scope = orders.ScopeSubmitter
	}
	orderRepo := orders.NewRepository(dbClient.DB())
	tracker, err := orders.NewService(orderRepo, dbClient, box, orders.Options{
		Scope:   scope,
		Metrics: procurementMetrics,
		Logger:  logg,
	})
	requireService(logg, "orders", err)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(dbClient, catalogRepo, resolver, tracker, ids, logg)
	requireService(logg, "catalog", err)

	requisitionService, err := requisitions.NewService(requisitions.Params{
		TX:       dbClient,
		Repo:     requisitions.NewRepository(dbClient.DB()),
		Catalog:  catalogRepo,
		Orders:   orderRepo,
		Resolver: resolver,
		Outbox:   box,
		IDs:      ids,
		Metrics:  procurementMetrics,
		Logger:   logg,
	})
	requireService(logg, "requisitions", err)

	userService, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Telegram)
	requireService(logg, "users", err)

	var verifier routes.InitDataVerifier
	if strings.TrimSpace(cfg.Telegram.BotToken) != "" {
		verifier = auth.NewInitDataVerifier(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Outbox.InlineDispatch {
		dispatcher, err := notifications.NewDispatcher(notifications.PipelineParams{
			Config:  cfg,
			Logger:  logg,
			DB:      dbClient,
			Store:   store,
			Metrics: procurementMetrics,
		})
		requireService(logg, "outbox dispatcher", err)
		box.OnEmit(dispatcher.Wake)
		go func() {
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "inline outbox dispatcher stopped", err)
			}
		}()
	}

	deps := routes.Deps{
		Config:       cfg,
		Logger:       logg,
		Verifier:     verifier,
		Users:        userService,
		Idempotency:  store,
		Readiness:    readiness,
		HTTPMetrics:  httpMetrics,
		Suppliers:    catalogService,
		Products:     catalogService,
		Rankings:     resolver,
		Requisitions: requisitionService,
		Orders:       tracker,
		Deliveries:   tracker,
	}
	if cfg.Metrics.Enabled {
		deps.MetricsRoute = metrics.Handler(registry)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := api.NewServer(port, routes.NewRouter(deps))

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         server.Addr,
		"instance":     instance.GetID("local"),
		"ordersScope":  string(scope),
		"inlineOutbox": cfg.Outbox.InlineDispatch,
	})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, server, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
