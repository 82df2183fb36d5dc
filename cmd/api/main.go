package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"civic-polls/config"
	"civic-polls/internal/handler"
	"civic-polls/internal/redis"
	"civic-polls/internal/repository"
	"civic-polls/internal/server"
	"civic-polls/internal/services"
	"civic-polls/internal/storage"
	"civic-polls/internal/websocket"
	"civic-polls/pkg/database"
	"civic-polls/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.New(logger.ModeFromApp(cfg.AppMode), cfg.LogFile)
	logger.SetGlobalLogger(log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if err := database.Connect(cfg); err != nil {
		return err
	}
	defer database.Close()
	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := redis.Ping(ctx, rdb); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	blobs, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
		MaxBytes:   cfg.UploadMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	profileRepo := repository.NewProfileRepository(database.DB)
	pollRepo := repository.NewPollRepository(database.DB)
	roleRepo := repository.NewRoleRepository(database.DB)
	subscriberRepo := repository.NewSubscriberRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.DB)

	otpConfig := redis.DefaultOTPConfig()
	otpConfig.TTL = cfg.OTPTTL
	otpConfig.MaxAttempts = cfg.OTPMaxAttempts
	otpStore := redis.NewOTPStore(rdb, otpConfig)
	limiter := redis.NewRateLimiter(rdb, redis.DefaultRateLimitConfig())
	cache := redis.NewCacheStore(rdb, redis.DefaultCacheConfig())
	eventPublisher := services.NewEventPublisher(redis.NewPublisher(rdb), log)

	authzService := services.NewAuthzService(roleRepo, cache, log)
	authService := services.NewAuthService(profileRepo, sessionRepo, otpStore, limiter,
		services.NewLogCodeSender(log), authzService, eventPublisher, cfg)
	uploadService := services.NewUploadService(blobs, cfg.UploadMaxBytes)
	profileService := services.NewProfileService(profileRepo, uploadService, eventPublisher)
	verificationService := services.NewVerificationService(profileRepo, eventPublisher)
	pollService := services.NewPollService(pollRepo, limiter, eventPublisher)
	userService := services.NewUserService(profileRepo, roleRepo, authzService, eventPublisher)
	subscriberService := services.NewSubscriberService(subscriberRepo, eventPublisher)
	statsService := services.NewStatsService(profileRepo, pollRepo, subscriberRepo, cache, log)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	go func() {
		err := websocket.NewRedisBridge(redis.NewSubscriber(rdb), hub).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Logger.Error("realtime bridge stopped", zap.Error(err))
		}
	}()

	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Profile:  handler.NewProfileHandler(profileService),
		Poll:     handler.NewPollHandler(pollService),
		Admin:    handler.NewAdminHandler(pollService, verificationService, userService, statsService),
		Public:   handler.NewPublicHandler(subscriberService, statsService),
		Realtime: websocket.NewHandler(authService, hub, cfg.AllowedOrigins, log),
	}, server.Deps{
		Auth:    authService,
		Authz:   authzService,
		Limiter: limiter,
		Health: func(ctx context.Context) error {
			if err := database.HealthCheck(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			return redis.Ping(ctx, rdb)
		},
	})

	return srv.Start(ctx)
}
