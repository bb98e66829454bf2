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

	"github.com/gofiber/fiber/v2"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-academy"
	"github.com/goliatone/go-academy/activitymap"
	"github.com/goliatone/go-academy/config"
	"github.com/goliatone/go-academy/database"
	"github.com/goliatone/go-academy/metrics"
	"github.com/goliatone/go-academy/middleware/ratelimit"
	"github.com/goliatone/go-academy/notify"
)

type App struct {
	config      *config.Config
	logger      *academy.SlogLogger
	persistence *persistence.Client
	db          *bun.DB
	repo        academy.RepositoryManager
	registry    *prometheus.Registry
	metrics     *metrics.Collector
	activity    academy.ActivitySink
	notifier    academy.Notifier
	redis       *redis.Client
	limiter     *ratelimit.Limiter
	fiber       *fiber.App
	srv         router.Server[*fiber.App]
}

func (a *App) GetLogger(name string) *academy.SlogLogger {
	return a.logger.Named(name)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "academy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	app := &App{
		config: cfg,
		logger: academy.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))),
	}

	if cfg.Debug {
		redacted := *cfg
		redacted.AccessSecret, redacted.RefreshSecret = "***", "***"
		redacted.SetupSecret, redacted.ResetSecret = "***", "***"
		redacted.SendGridKey, redacted.BootstrapPassword = "***", "***"
		app.GetLogger("config").Debug("loaded config: %s", print.MaybePrettyJSON(redacted))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	if err := WithPersistence(ctx, app); err != nil {
		return err
	}
	defer app.persistence.Close()

	if err := WithNotifier(ctx, app); err != nil {
		return err
	}
	if app.redis != nil {
		defer app.redis.Close()
	}

	WithTelemetry(app)

	if cfg.BootstrapEmail != "" {
		user, created, err := academy.EnsureSuperAdmin(ctx, app.repo.Users(), cfg.BootstrapEmail, cfg.BootstrapPassword)
		if err != nil {
			return err
		}
		if created {
			app.GetLogger("bootstrap").Info("created super admin %s", user.Email)
		}
	}

	if err := WithHTTPServer(app); err != nil {
		return err
	}
	defer app.limiter.Stop()

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.Handler(app.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.GetLogger("metrics").Error("metrics server: %v", err)
		}
	}()

	go func() {
		if err := app.srv.Serve(cfg.Addr); err != nil {
			app.GetLogger("http").Error("http server: %v", err)
			stop()
		}
	}()

	app.GetLogger("http").Info("listening on %s, metrics on %s", cfg.Addr, cfg.MetricsAddr)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app.GetLogger("http").Info("shutting down")
	if err := app.fiber.ShutdownWithContext(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("metrics").Error("shutdown: %v", err)
	}

	return nil
}

func WithPersistence(ctx context.Context, app *App) error {
	client, err := database.Open(ctx, app.config.Persistence(),
		database.WithLogger(app.GetLogger("persistence")),
	)
	if err != nil {
		return err
	}
	app.persistence = client
	app.db = client.DB()

	applied, err := database.Migrate(ctx, client)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		app.GetLogger("database").Info("applied %d migrations %v", len(applied), applied)
	}

	app.repo = academy.NewRepositoryManager(app.db)
	return app.repo.Validate()
}

func WithTelemetry(app *App) {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewCollector(app.registry)

	sinks := academy.ActivitySinks{
		academy.LogActivitySink(app.GetLogger("activity")),
		app.metrics,
	}
	if app.redis != nil && app.config.ActivityStream != "" {
		sinks = append(sinks, activitymap.NewRedisStream(app.redis, app.config.ActivityStream))
	}
	app.activity = sinks
}

func WithNotifier(ctx context.Context, app *App) error {
	cfg := app.config
	logNotifier := notify.NewLog(app.GetLogger("notify"), cfg.Debug)

	switch cfg.Notifier {
	case config.NotifierSendGrid:
		app.notifier = notify.Multi{
			notify.NewSendGrid(cfg.SendGridKey, cfg.AppName, cfg.FromEmail),
			logNotifier,
		}
	case config.NotifierRedis:
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		queue := notify.NewRedisQueue(app.redis, cfg.RedisQueueKey)
		app.notifier = queue

		var delivery academy.Notifier = logNotifier
		if cfg.SendGridKey != "" {
			delivery = notify.Multi{notify.NewSendGrid(cfg.SendGridKey, cfg.AppName, cfg.FromEmail), logNotifier}
		}
		go func() {
			if err := queue.Drain(ctx, delivery, app.GetLogger("notify")); err != nil {
				app.GetLogger("notify").Error("notification queue: %v", err)
			}
		}()
	default:
		app.notifier = logNotifier
	}
	return nil
}

func WithHTTPServer(app *App) error {
	cfg := app.config

	tokenCfg := academy.TokenConfigFromConfig(cfg)
	if err := tokenCfg.Validate(); err != nil {
		return err
	}

	tokens := academy.NewTokenService(tokenCfg, app.repo.Users(),
		academy.WithTokenLogger(app.GetLogger("tokens")),
	)

	guard := academy.NewGuard(tokens, app.repo.Users()).
		WithActivitySink(app.activity).
		WithLogger(app.GetLogger("guard"))

	auther := academy.NewAuthenticator(app.repo.Users(), tokens).
		WithActivitySink(app.activity).
		WithLogger(app.GetLogger("auth"))

	routes := academy.NewRouteAuthenticator(guard, cfg)
	routes.Debug = cfg.Debug
	routes.Logger = app.GetLogger("routes")

	links := academy.DefaultRecoveryConfig(cfg.PublicURL)
	ctrlLogger := app.GetLogger("controller")

	recovery := academy.NewRecoveryFlow(app.repo, tokens, links,
		academy.WithRecoveryNotifier(app.notifier),
		academy.WithRecoveryActivitySink(app.activity),
		academy.WithRecoveryLogger(ctrlLogger),
	)

	app.limiter = ratelimit.New(ratelimit.Config{
		ErrorHandler: academy.SendError,
		OnLimited:    app.metrics.RecordRateLimited,
	})

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app.fiber = router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: !cfg.Debug,
			EnablePrintRoutes:     cfg.Debug,
		}))
		app.fiber.Use(app.metrics.FiberMiddleware())
		return app.fiber
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	controller := academy.NewHTTPController(
		academy.WithControllerDebug(cfg.Debug),
		academy.WithControllerLogger(ctrlLogger),
		academy.WithControllerRepository(app.repo),
		academy.WithControllerAuther(auther),
		academy.WithControllerRoutes(routes),
		academy.WithControllerRecovery(recovery),
		academy.WithControllerRegistration(
			academy.NewRegisterUserHandler(app.repo, tokens, links).
				WithNotifier(app.notifier).
				WithActivitySink(app.activity).
				WithLogger(ctrlLogger),
		),
		academy.WithControllerTasks(
			academy.NewCompleteTaskHandler(app.repo).
				WithActivitySink(app.activity).
				WithLogger(ctrlLogger),
		),
		academy.WithControllerStatuses(
			academy.NewUpdateUserStatusHandler(app.repo).
				WithActivitySink(app.activity).
				WithLogger(ctrlLogger),
		),
		academy.WithControllerCatalog(
			academy.NewCatalogService(app.repo).
				WithActivitySink(app.activity).
				WithLogger(ctrlLogger),
		),
		academy.WithControllerLimits(academy.RouteLimits{
			Login:  app.limiter.Middleware(ratelimit.PerMinute("login", cfg.LoginPerMinute)),
			Forgot: app.limiter.Middleware(ratelimit.PerMinute("forgot", cfg.ForgotPerMinute)),
		}),
	)

	controller.RegisterRoutes(srv.Router())

	app.srv = srv
	return nil
}
