package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/config"
	"github.com/noah-isme/brovoice-api/internal/database"
	"github.com/noah-isme/brovoice-api/internal/handler"
	"github.com/noah-isme/brovoice-api/internal/middleware"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/router"
	"github.com/noah-isme/brovoice-api/internal/service"
	cloud "github.com/noah-isme/brovoice-api/pkg/cloudinary"
	"github.com/noah-isme/brovoice-api/pkg/mailer"
	"github.com/noah-isme/brovoice-api/pkg/s3store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if !cfg.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	storage, err := newScreenshotStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure screenshot storage: %v", err)
	}

	mail, err := mailer.New(mailer.Config{
		Provider:       cfg.MailProvider,
		From:           cfg.MailFrom,
		ResendAPIKey:   cfg.ResendAPIKey,
		SendGridAPIKey: cfg.SendGridAPIKey,
	}, logger)
	if err != nil {
		log.Fatalf("failed to configure mailer: %v", err)
	}

	var queue service.EventQueue = service.NewChannelEventQueue(cfg.EventQueueBuffer)
	if natsConn != nil {
		queue = service.NewNATSEventQueue(natsConn, cfg.RealtimeChannel, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	complaintRepo := repository.NewComplaintRepository(db)
	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	deliveryRepo := repository.NewMailDeliveryRepository(db)
	screenshotRepo := repository.NewScreenshotRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	var screenshotService service.ScreenshotService
	if storage != nil {
		screenshotService = service.NewScreenshotService(storage, screenshotRepo, cfg.ScreenshotMaxSizeMB, logger)
	}
	authService := service.NewAuthService(userRepo, redisClient, validate, service.AuthConfig{
		Secret:          cfg.JWTSecret,
		TTL:             cfg.JWTTTL,
		StaffSignupCode: cfg.StaffSignupCode,
	}, logger)
	analyticsService := service.NewAnalyticsService(complaintRepo, redisClient, cfg.AnalyticsCacheTTL, logger)
	complaintService := service.NewComplaintService(complaintRepo, userRepo, screenshotService, queue, activityService, analyticsService, validate, logger)
	userService := service.NewUserService(userRepo, complaintRepo, activityService, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	dispatcher := service.NewNotificationDispatcher(queue, userRepo, deliveryRepo, mail, notificationService, analyticsService, validate, logger)
	seedService := service.NewSeedService(userRepo, complaintRepo, cfg.SeedEnabled, cfg.SeedToken, cfg.SeedPassword, logger)

	notificationService.Start(ctx)
	dispatcher.Start(ctx)

	if cfg.SeedEnabled && cfg.IsDevelopment() {
		summary, err := seedService.SeedDemo(ctx, cfg.SeedToken)
		if err != nil {
			logger.Warn().Err(err).Msg("demo seed skipped")
		} else {
			logger.Info().Int("users", summary.Users).Int64("complaints", summary.Complaints).Msg("demo data ready")
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.ScreenshotMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:        &logger,
		AccessLogging: cfg.IsDevelopment(),
		AllowOrigins:  cfg.CORSAllowOrigins,
	})

	deps := router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		ComplaintHandler:    handler.NewComplaintHandler(complaintService, logger, middleware.RateLimit("complaint_submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow)),
		AnalyticsHandler:    handler.NewAnalyticsHandler(analyticsService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, dispatcher, logger, cfg.NotificationKeepAlive),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret, authService),
		HealthProbes: []handler.HealthProbe{
			{Name: "postgres", Check: func(ctx context.Context) error { return database.Ping(ctx, db) }},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	}
	if natsConn != nil {
		deps.HealthProbes = append(deps.HealthProbes, handler.HealthProbe{Name: "nats", Check: func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}})
	}
	if cfg.SeedEnabled {
		deps.SeedHandler = handler.NewSeedHandler(seedService, logger)
	}
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app, logger)
}

// newScreenshotStorage returns nil when no provider is configured; submissions then reject attachments.
func newScreenshotStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	switch cfg.StorageProvider {
	case "s3":
		store, err := s3store.New(ctx, s3store.Config{Bucket: cfg.S3Bucket, Region: cfg.S3Region, Prefix: "screenshots"}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" {
			logger.Warn().Msg("cloudinary credentials missing, screenshots disabled")
			return nil, nil
		}
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	default:
		logger.Warn().Str("provider", cfg.StorageProvider).Msg("unknown storage provider, screenshots disabled")
		return nil, nil
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
