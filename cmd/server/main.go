package main

import (
	"alcyxob/shaper/internal/api"
	"alcyxob/shaper/internal/config"
	"alcyxob/shaper/internal/importer"
	"alcyxob/shaper/internal/notify"
	"alcyxob/shaper/internal/payments"
	"alcyxob/shaper/internal/repository/mongo"
	"alcyxob/shaper/internal/service"
	"alcyxob/shaper/internal/storage"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// @title Shaper API
// @version 1.0
// @description Fitness coaching backend: shared plans, trainer offers and bundle checkout.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exiting")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config.Config, logger *slog.Logger) error {
	// appCtx owns background workers; cancelled on shutdown.
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	connectCtx, cancelConnect := context.WithTimeout(appCtx, 10*time.Second)
	dbClient, err := mongo.ConnectDB(connectCtx, cfg.Database.URI)
	cancelConnect()
	if err != nil {
		return err
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established", "database", cfg.Database.Name)

	go func() {
		ctx, cancel := context.WithTimeout(appCtx, time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB, logger)
	}()

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	pingCtx, cancelPing := context.WithTimeout(appCtx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// Only import status lives in Redis; the API still serves everything else.
		logger.Warn("redis not reachable, import jobs will fail until it is", "addr", cfg.Redis.Addr, "error", err)
	}
	cancelPing()

	// --- External services ---
	fileStorage, err := storage.NewS3Storage(appCtx, cfg.S3, logger)
	if err != nil {
		return err
	}
	processor, err := payments.NewStripeProcessor(cfg.Stripe.SecretKey, logger)
	if err != nil {
		return err
	}

	// --- Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	trainingPlanRepo := mongo.NewMongoTrainingPlanRepository(appDB)
	workoutRepo := mongo.NewMongoWorkoutRepository(appDB)
	mealPlanRepo := mongo.NewMongoMealPlanRepository(appDB)
	collaboratorRepo := mongo.NewMongoCollaboratorRepository(appDB)
	invitationRepo := mongo.NewMongoInvitationRepository(appDB)
	packageRepo := mongo.NewMongoPackageRepository(appDB)
	offerRepo := mongo.NewMongoOfferRepository(appDB)
	notificationRepo := mongo.NewMongoNotificationRepository(appDB)

	// --- Services ---
	activations := service.NewActivations(userRepo, notificationRepo, service.ActivationConfig{
		URL:          cfg.Checkout.ActivationURL,
		TTL:          cfg.Checkout.ActivationTTL,
		PlatformName: cfg.Checkout.PlatformName,
	}, logger)
	authService := service.NewAuthService(userRepo, activations, cfg.JWT.Secret, cfg.JWT.Expiration)
	exerciseService := service.NewExerciseService(exerciseRepo)
	permissionService := service.NewPermissionService(trainingPlanRepo, mealPlanRepo, collaboratorRepo, invitationRepo, userRepo, logger)
	planService := service.NewPlanService(trainingPlanRepo, mealPlanRepo, workoutRepo, collaboratorRepo, permissionService, logger)
	collaborationService := service.NewCollaborationService(invitationRepo, collaboratorRepo, userRepo, permissionService, logger)
	offerService := service.NewOfferService(offerRepo, packageRepo, userRepo, cfg.Offers.DefaultTTL, cfg.Stripe.Currency, logger)
	checkoutService := service.NewCheckoutService(offerRepo, packageRepo, userRepo, notificationRepo, processor, activations, service.CheckoutConfig{
		SuccessURL:              cfg.Checkout.SuccessURL,
		CancelURL:               cfg.Checkout.CancelURL,
		TaxRateID:               cfg.Stripe.TaxRateID,
		InPersonDiscountPercent: cfg.Checkout.InPersonDiscountPercent,
		TrainerPayoutPercent:    cfg.Checkout.TrainerPayoutPercent,
		PlatformName:            cfg.Checkout.PlatformName,
		AdminEmails:             cfg.Notify.AdminEmails,
	}, logger)

	importRunner := importer.NewRunner(appCtx,
		importer.NewRedisStore(redisClient, cfg.Imports.JobTTL),
		fileStorage,
		exerciseRepo,
		importer.RunnerConfig{ProgressEvery: cfg.Imports.ProgressEvery, UploadURLExpiry: cfg.Imports.UploadURLValid},
		logger,
	)

	// --- Background workers ---
	var workers sync.WaitGroup
	outboxWorker := notify.NewWorker(logger, notificationRepo,
		notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
		}),
		notify.AdminRecipients(userRepo),
		notify.WorkerConfig{
			Interval:    cfg.Notify.Interval,
			BatchSize:   cfg.Notify.BatchSize,
			ClaimTTL:    cfg.Notify.ClaimTTL,
			MaxAttempts: cfg.Notify.MaxAttempts,
		},
	)
	sweeper := service.NewOfferExpirySweeper(offerService, cfg.Offers.SweepInterval, logger)

	workers.Add(2)
	go func() {
		defer workers.Done()
		outboxWorker.Run(appCtx)
	}()
	go func() {
		defer workers.Done()
		sweeper.Run(appCtx)
	}()

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.SetupRoutes(router, cfg.JWT.Secret, api.Services{
		Auth:          authService,
		Exercises:     exerciseService,
		Plans:         planService,
		Permissions:   permissionService,
		Collaboration: collaborationService,
		Offers:        offerService,
		Checkout:      checkoutService,
		Imports:       importRunner,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // checkout waits on the payment processor
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			workers.Wait()
			return err
		}
	case <-appCtx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	workers.Wait()
	importRunner.Wait()
	return nil
}
