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
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/config"
	"github.com/noah-isme/mindcare-api/internal/database"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/lock"
	"github.com/noah-isme/mindcare-api/internal/middleware"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
	"github.com/noah-isme/mindcare-api/internal/risk"
	"github.com/noah-isme/mindcare-api/internal/router"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/pkg/ai"
	cloud "github.com/noah-isme/mindcare-api/pkg/cloudinary"
	"github.com/noah-isme/mindcare-api/pkg/sealbox"
)

const (
	notificationKeepAlive = 30 * time.Second
	redisClientName       = "mindcare-api"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := []handler.HealthProbe{{Name: "database", Check: database.PingDatabase(db)}}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL, redisClientName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes = append(probes, handler.HealthProbe{Name: "redis", Check: database.PingRedis(redisClient)})
	} else {
		logger.Warn().Msg("redis not configured, leaderboard cache and cross-node notifications disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		probes = append(probes, handler.HealthProbe{Name: "nats", Check: database.NATSStatus(natsConn)})
	}

	var locker lock.Locker = lock.NewKeyed()
	if cfg.LockBackend == config.LockBackendRedis {
		locker = lock.NewRedis(redisClient, cfg.LockTTL)
	}

	var documents service.DocumentService
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Configured() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		documents = service.NewDocumentService(uploader, service.NoopExtractor{}, cfg.DocumentMaxSizeMB, logger)
	} else {
		logger.Warn().Msg("cloudinary not configured, institute and clinician registration disabled")
	}

	var replier ai.Replier = ai.UnavailableReplier{}
	if cfg.OpenAIAPIKey != "" {
		openaiReplier, err := ai.NewOpenAIReplier(ai.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: 0.7,
			Logger:      logger,
		})
		if err != nil {
			log.Fatalf("failed to create chatbot client: %v", err)
		}
		replier = openaiReplier
	}

	chatBox, err := sealbox.New([]byte(cfg.ChatEncryptionKey), "mindcare/consultation-messages")
	if err != nil {
		log.Fatalf("failed to derive chat encryption key: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)

	notificationService := service.NewNotificationService(store.Notifications(), redisClient, cfg.EventChannel, natsConn, logger)
	activityService := service.NewActivityService(store.ActivityLogs(), validate, logger)
	riskService := service.NewRiskService(risk.NewModelHandle(risk.FileLoader(cfg.RiskModelPath), logger), validate, logger)
	approvalService := service.NewApprovalService(store, locker, activityService, validate, logger)
	registrationService := service.NewRegistrationService(store, riskService, documents, notificationService, validate, logger)
	authService := service.NewAuthService(store, service.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTTTL,
		Issuer: cfg.JWTIssuer,
	}, validate, logger)
	crisisService := service.NewCrisisService(store, notificationService, service.CascadeConfig{
		FollowUpTimeout: cfg.CrisisFollowUpTimeout,
		MaxRetries:      uint64(cfg.CascadeMaxRetries),
		InitialBackoff:  100 * time.Millisecond,
	}, validate, logger)
	leaderboardService := service.NewLeaderboardService(store, redisClient, cfg.LeaderboardCacheTTL, logger)
	gamificationService := service.NewGamificationService(store, locker, crisisService, leaderboardService, validate, logger)
	chatbotService := service.NewChatbotService(store, crisisService, replier, cfg.ChatbotTimeout, validate, logger)
	consultationService := service.NewConsultationService(store, locker, notificationService, chatBox, validate, logger)
	removalService := service.NewRemovalService(store, locker, activityService, notificationService, leaderboardService, validate, logger)
	seedService := service.NewSeedService(store, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationService.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.DocumentMaxSizeMB*2 + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(registrationService, authService, logger),
		RiskHandler:         handler.NewRiskHandler(riskService, logger),
		ApprovalHandler:     handler.NewApprovalHandler(approvalService, logger),
		RemovalHandler:      handler.NewRemovalHandler(removalService, logger),
		CrisisHandler:       handler.NewCrisisHandler(crisisService, logger),
		ChatbotHandler:      handler.NewChatbotHandler(chatbotService, logger),
		GamificationHandler: handler.NewGamificationHandler(gamificationService, logger),
		LeaderboardHandler:  handler.NewLeaderboardHandler(leaderboardService, logger),
		ConsultationHandler: handler.NewConsultationHandler(consultationService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, notificationKeepAlive),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:        probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
