package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/listing-service/internal/api/http"
	"github.com/spec-kit/listing-service/internal/api/http/handlers"
	"github.com/spec-kit/listing-service/internal/auth"
	"github.com/spec-kit/listing-service/internal/config"
	"github.com/spec-kit/listing-service/internal/events"
	"github.com/spec-kit/listing-service/internal/notify"
	"github.com/spec-kit/listing-service/internal/observability"
	"github.com/spec-kit/listing-service/internal/persistence"
	"github.com/spec-kit/listing-service/internal/repository"
	"github.com/spec-kit/listing-service/internal/service"
	"github.com/spec-kit/listing-service/internal/worker"
)

const bonusInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	listingRepo := repository.NewListingRepository(pool)
	voteRepo := repository.NewVoteRepository(pool)
	trustRepo := repository.NewTrustActionRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	preferenceRepo := repository.NewPreferenceRepository(pool)
	txManager := repository.NewTxManager(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	scoreCache := persistence.NewScoreCache(redis, 5*time.Minute)

	trustService := service.NewTrustService(trustRepo, scoreCache, cfg.Trust, logger)
	listingService := service.NewListingService(service.ListingDependencies{
		ListingRepo: listingRepo,
		VoteRepo:    voteRepo,
		Trust:       trustService,
		TxManager:   txManager,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	commentService := service.NewCommentService(commentRepo, listingRepo, dispatcher, metrics, logger)
	notificationService := service.NewNotificationService(notificationRepo, preferenceRepo, dispatcher, logger)
	notificationService.RegisterHandlers()

	deliverer := notify.NewLogDeliverer(logger, cfg.Notification.EmailFrom)
	deliveryWorker := worker.NewDeliveryWorker(notificationRepo, notificationService, deliverer, logger)
	deliveryWorker.Register(dispatcher)

	bonusWorker := worker.NewBonusWorker(userRepo, trustService, logger)
	go bonusWorker.Run(ctx, bonusInterval)

	authService := service.NewAuthService(*cfg, userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, trustService),
		Listings:       handlers.NewListingsHandler(listingService),
		Moderation:     handlers.NewModerationHandler(listingService, trustService),
		Comments:       handlers.NewCommentsHandler(commentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
