package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/geoattend-api/internal/config"
	"github.com/noah-isme/geoattend-api/internal/database"
	"github.com/noah-isme/geoattend-api/internal/handler"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/models"
	"github.com/noah-isme/geoattend-api/internal/observability"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/router"
	"github.com/noah-isme/geoattend-api/internal/schedule"
	"github.com/noah-isme/geoattend-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to load timezone: %v", err)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.ClassSession{}, &models.Enrollment{}, &models.AttendanceRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, report cache and cross-node events disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	window := schedule.Validator{
		GraceBefore: cfg.GraceBefore,
		GraceAfter:  cfg.GraceAfter,
		Location:    location,
		Rescheduled: cfg.RescheduledPolicy,
	}

	classRepo := repository.NewClassRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	eventHub := service.NewAttendanceEventHub(redisClient, cfg.EventsChannel, natsConn, logger)
	eventHub.Start(ctx)

	attendanceService := service.NewAttendanceService(classRepo, attendanceRepo, eventHub, redisClient, validate, service.AttendanceOptions{
		Window:        window,
		StoreTimeout:  cfg.StoreTimeout,
		DefaultRadius: cfg.DefaultRadius,
	}, logger)
	reportService := service.NewReportService(classRepo, rosterRepo, attendanceRepo, redisClient, service.ReportOptions{
		Window:       window,
		CacheTTL:     cfg.ReportCacheTTL,
		MaxDays:      cfg.ReportMaxDays,
		StoreTimeout: cfg.StoreTimeout,
	}, logger)
	classService := service.NewClassService(classRepo, rosterRepo, userRepo, redisClient, validate, cfg.DefaultRadius, logger)
	profileService := service.NewProfileService(userRepo, validate, cfg.StoreTimeout, logger)

	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) bool { return database.PingDatabase(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) bool { return database.RedisHealthy(ctx, redisClient) }
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, logger),
		ReportHandler:     handler.NewReportHandler(reportService, logger),
		ClassHandler:      handler.NewClassHandler(classService, logger),
		LiveHandler:       handler.NewLiveHandler(eventHub, classService, logger),
		ProfileHandler:    handler.NewProfileHandler(profileService, logger),
		DependencyChecks:  checks,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("rescheduled_policy", string(cfg.RescheduledPolicy)).Msg("attendance api started")
	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
