package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/config"
	"github.com/noah-isme/cohort-assistant/internal/database"
	"github.com/noah-isme/cohort-assistant/internal/dispatcher"
	"github.com/noah-isme/cohort-assistant/internal/handler"
	"github.com/noah-isme/cohort-assistant/internal/middleware"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/platform"
	"github.com/noah-isme/cohort-assistant/internal/probe"
	"github.com/noah-isme/cohort-assistant/internal/repository"
	"github.com/noah-isme/cohort-assistant/internal/router"
	"github.com/noah-isme/cohort-assistant/internal/service"
	"github.com/noah-isme/cohort-assistant/internal/timetable"
	"github.com/noah-isme/cohort-assistant/internal/worker"
	"github.com/noah-isme/cohort-assistant/pkg/mailer"
	"github.com/noah-isme/cohort-assistant/pkg/sentiment"
)

const (
	reminderPeriod  = 10 * time.Minute
	timetablePeriod = 5 * time.Minute
	uptimePeriod    = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectSQLite(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&models.Assignment{}, &models.Student{}, &models.VerifyCode{}, &models.UptimeEntry{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	catalog, err := timetableCatalog(cfg, logger)
	if err != nil {
		log.Fatalf("failed to load timetable: %v", err)
	}

	cache := optionalRedis(cfg, logger)
	natsConn := optionalNATS(cfg, logger)
	if natsConn != nil {
		defer natsConn.Close()
	}

	// CONNECT_MODE=2 validates configuration and storage, then exits clean
	// without touching the platform.
	if cfg.ConnectMode == config.ConnectExitSetup {
		logger.Info().Msg("setup complete, exiting without connecting")
		return
	}

	announcer, presence, ready, err := connectPlatform(cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect to platform: %v", err)
	}

	clk := clock.System()
	pool := worker.NewPool(4, logger)
	defer pool.Close()

	assignmentRepo := repository.NewAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	verifyRepo := repository.NewVerifyCodeRepository(db)
	uptimeRepo := repository.NewUptimeRepository(db)
	targetStore := repository.NewTargetStore(cfg.TargetsPath)

	mail := mailer.NewSMTPMailer("smtp.gmail.com", 465, cfg.Email, cfg.EmailPassword)

	reminderService := service.NewReminderService(assignmentRepo, announcer, natsConn, cfg, logger)
	timetableService := service.NewTimetableService(catalog, announcer, cfg.MainGuild(), cfg.Dev, logger)
	uptimeService := service.NewUptimeService(
		uptimeRepo, targetStore,
		probe.NewHTTPProber(), probe.NewPresenceProber(presence),
		natsConn, cache, cfg.StatsCacheTTL, cfg.ConnectivityURL,
		clk, logger,
	)
	assignmentService := service.NewAssignmentService(assignmentRepo, studentRepo, cfg.Tutors, clk, logger)
	verifyService := service.NewVerifyService(verifyRepo, studentRepo, mail, pool, cfg.EmailDomain, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loops := []*dispatcher.Loop{}
	if cfg.ExtensionEnabled("reminders") {
		loops = append(loops, dispatcher.NewLoop("reminders", reminderPeriod, reminderService.Tick, clk, ready, logger))
	}
	if cfg.ExtensionEnabled("timetable") {
		loops = append(loops, dispatcher.NewLoop("timetable", timetablePeriod, timetableService.Tick, clk, ready, logger))
	}
	var uptimeLoop *dispatcher.Loop
	if cfg.ExtensionEnabled("uptime") {
		uptimeLoop = dispatcher.NewLoop("uptime", uptimePeriod, uptimeService.Tick, clk, ready, logger)
		loops = append(loops, uptimeLoop)
	}
	for _, loop := range loops {
		go loop.Run(ctx)
	}

	var app *fiber.App
	if cfg.WebServer {
		app = buildServer(cfg, logger, serverDeps{
			assignments: assignmentService,
			timetable:   timetableService,
			uptime:      uptimeService,
			uptimeLoop:  uptimeLoop,
			verify:      verifyService,
			pool:        pool,
			clk:         clk,
		})
		go func() {
			if err := app.Listen(cfg.HTTPAddress()); err != nil {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
		}
	}
}

type serverDeps struct {
	assignments service.AssignmentService
	timetable   service.TimetableService
	uptime      service.UptimeService
	uptimeLoop  *dispatcher.Loop
	verify      service.VerifyService
	pool        *worker.Pool
	clk         clock.Clock
}

func buildServer(cfg config.Config, logger zerolog.Logger, deps serverDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})
	middleware.Register(app, middleware.Config{Logger: &logger})

	var oauth *platform.OAuthClient
	if cfg.OAuthEnabled() {
		oauth = platform.NewOAuthClient(cfg.OAuthID, cfg.OAuthSecret, cfg.OAuthRedirectURI, cfg.PlatformBaseURL)
	}

	var sentimentHandler *handler.SentimentHandler
	if cfg.OpenAIAPIKey != "" {
		analyzer, err := sentiment.NewOpenAIAnalyzer(sentiment.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Logger: logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("sentiment analyzer disabled")
		} else {
			sentimentHandler = handler.NewSentimentHandler(analyzer, deps.pool, logger)
		}
	}

	var uptimeHandler *handler.UptimeHandler
	if deps.uptimeLoop != nil {
		uptimeHandler = handler.NewUptimeHandler(deps.uptime, deps.uptimeLoop.Done(), logger)
	}

	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(deps.assignments, logger),
		TimetableHandler:  handler.NewTimetableHandler(deps.timetable, deps.clk, logger),
		UptimeHandler:     uptimeHandler,
		VerifyHandler:     handler.NewVerifyHandler(deps.verify, oauth, []byte(cfg.OAuthSecret+cfg.Token), logger),
		SentimentHandler:  sentimentHandler,
	})
	return app
}

func timetableCatalog(cfg config.Config, logger zerolog.Logger) (*timetable.Catalog, error) {
	return timetable.LoadFile(cfg.TimetablePath, cfg.Tutors, cfg.HorizonYear, logger)
}

// optionalRedis connects the stats cache when configured; a missing cache only
// disables caching.
func optionalRedis(cfg config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	client, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, stats cache disabled")
		return nil
	}
	return client
}

// optionalNATS connects the event bus when configured.
func optionalNATS(cfg config.Config, logger zerolog.Logger) *nats.Conn {
	if cfg.NATSURL == "" {
		return nil
	}
	conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, event publishing disabled")
		return nil
	}
	return conn
}

// connectPlatform authenticates against the chat platform. Presence is only
// available when the presence intent was requested; the REST transport cannot
// observe member presence, so presence targets degrade gracefully.
func connectPlatform(cfg config.Config, logger zerolog.Logger) (platform.Announcer, platform.PresenceSource, <-chan struct{}, error) {
	client, err := platform.NewRESTClient(cfg.PlatformBaseURL, cfg.Token, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.HasPresenceIntent() {
		logger.Warn().Msg("presence intent requested but unavailable over REST, presence targets will be skipped")
	}
	return client, nil, client.Ready(), nil
}
