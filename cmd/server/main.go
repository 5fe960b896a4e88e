package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/smartcity/signalctl/internal/config"
	"github.com/smartcity/signalctl/internal/delivery/http"
	"github.com/smartcity/signalctl/internal/delivery/ws"
	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/memory"
	"github.com/smartcity/signalctl/internal/repository/mongo"
	"github.com/smartcity/signalctl/internal/repository/postgres"
	"github.com/smartcity/signalctl/internal/service"
)

var (
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}

	log = logrus.WithField("module", "signalctl")
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load err: %v", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.0000",
	})
	if level, ok := logLevels[cfg.LogLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Fatalf("LOG_LEVEL must be one of %v", logLevels)
	}

	// Event journal backend
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, closeRepo := openJournal(ctx, cfg)
	defer closeRepo()

	// Dependency Injection: Services
	bus := service.NewEventBus()
	journal := service.NewEventJournal(repo)
	bus.Subscribe(journal.Handle)
	hub := ws.NewHub()
	bus.Subscribe(hub.Handle)

	control := service.NewControlService(
		memory.NewStore[domain.Signal]("signal"),
		memory.NewStore[domain.Incident]("incident"),
		bus,
		service.ControlConfig{
			GreenWaveDuration: cfg.GreenWaveDuration,
			PeakGreen:         cfg.PeakGreenDuration,
			OffPeakGreen:      cfg.OffPeakGreenDuration,
			SpeedUnit:         cfg.SpeedUnit,
		},
	)
	dashboardSvc := service.NewDashboardService(control, journal, repo)

	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if err := control.Provision(seed); err != nil {
			log.Fatalf("%v", err)
		}
	}

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Signal Control API v1.0",
		Immutable:    true,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, control, dashboardSvc, journal)

	// Event stream
	mux := nethttp.NewServeMux()
	mux.Handle("/ws", hub)
	events := &nethttp.Server{
		Addr:              cfg.EventsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Event stream starting on %s", cfg.EventsAddr)
		if err := events.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("Event stream error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		log.Infof("Server starting on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warnf("Server forced to shutdown: %v", err)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := events.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Event stream forced to shutdown: %v", err)
	}

	control.Shutdown()
	hub.Close()
	journal.Close()
	log.Info("Server exited gracefully")
}

// openJournal picks the configured backend and falls back to the in-memory
// journal when the database is unreachable
func openJournal(ctx context.Context, cfg *config.Config) (service.EventRepository, func()) {
	noop := func() {}

	switch cfg.JournalBackend {
	case config.JournalPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		if err != nil {
			log.Warnf("Could not connect to database: %v", err)
			log.Warn("Running with in-memory event journal")
			if pool != nil {
				pool.Close()
			}
			return postgres.NewMockRepository(), noop
		}
		repo := postgres.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("%v", err)
		}
		log.Info("Connected to PostgreSQL")
		return repo, pool.Close

	case config.JournalMongo:
		repo, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Warnf("Could not connect to MongoDB: %v", err)
			log.Warn("Running with in-memory event journal")
			return postgres.NewMockRepository(), noop
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warnf("%v", err)
		}
		log.Info("Connected to MongoDB")
		return repo, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.Close(closeCtx); err != nil {
				log.Warnf("mongo disconnect: %v", err)
			}
		}

	default:
		return postgres.NewMockRepository(), noop
	}
}
