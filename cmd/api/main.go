package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/ai"
	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/classify"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/ratelimit"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("helpdesk")

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	var redisClient *goredis.Client
	if redis != nil {
		redisClient = redis.Client
		st.checks["redis"] = redis
	}

	generator, err := ai.New(cfg.AI)
	if err != nil {
		logger.Fatal("failed to init ai client", zap.Error(err))
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("AI_API_KEY not set; chat will report a configuration error")
	}
	classifier, err := classify.New(cfg.AI.Classifier, generator)
	if err != nil {
		logger.Fatal("failed to init classifier", zap.Error(err))
	}
	var policies []service.Policy
	if cfg.Chat.KnowledgeBasePath != "" {
		policies, err = service.LoadKnowledgeBase(cfg.Chat.KnowledgeBasePath)
		if err != nil {
			logger.Warn("knowledge base not loaded", zap.String("path", cfg.Chat.KnowledgeBasePath), zap.Error(err))
		}
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier := service.NewNotificationService(logger, cfg.Notification)
	var publisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("failed to connect kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
	}
	worker.StartNotificationWorker(dispatcher, notifier, publisher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(cfg.Auth, st.users, tokens, logger)
	userService := service.NewUserService(st.users, cfg.Auth.BcryptCost, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:         st.tickets,
		UserRepo:           st.users,
		CounterRepo:        st.counters,
		Classifier:         classifier,
		Dispatcher:         dispatcher,
		Metrics:            metrics,
		Logger:             logger,
		EnforceTransitions: cfg.Tickets.EnforceTransitions,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		Generator:  generator,
		TicketRepo: st.tickets,
		Policies:   policies,
		Metrics:    metrics,
		Logger:     logger,
	})

	var limits httptransport.RateLimiters
	if cfg.RateLimit.Enabled {
		window := cfg.RateLimit.Window()
		limits = httptransport.RateLimiters{
			Login:    ratelimit.New(redisClient, "login", cfg.RateLimit.Requests, window, logger),
			Register: ratelimit.New(redisClient, "register", cfg.RateLimit.Requests, window, logger),
			Chat:     ratelimit.New(redisClient, "chat", cfg.RateLimit.Requests, window, logger),
		}
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
	}, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.checks),
		Auth: handlers.NewAuthHandler(authService, handlers.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.App.IsProduction(),
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		Chat:           handlers.NewChatHandler(chatService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, st.users, cfg.Auth.CookieName),
		Metrics:        metrics,
		RateLimits:     limits,
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
