package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shopchat-ai/shopchat/cmd/mainconfig"
	"github.com/shopchat-ai/shopchat/internal/api/router"
	"github.com/shopchat-ai/shopchat/internal/billing"
	"github.com/shopchat-ai/shopchat/internal/channels/messenger"
	appconfig "github.com/shopchat-ai/shopchat/internal/config"
	"github.com/shopchat-ai/shopchat/internal/conversation"
	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/internal/notify"
	"github.com/shopchat-ai/shopchat/internal/observability/metrics"
	"github.com/shopchat-ai/shopchat/internal/storefront"
	"github.com/shopchat-ai/shopchat/internal/webchat"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting shopchat API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres: database/sql for conversations and billing, pgx pool for
	// merchant config.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	sealer, err := merchants.NewSealer(cfg.CredentialKey)
	if err != nil {
		logger.Error("failed to initialize credential sealer", "error", err)
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	merchantStore := merchants.NewStore(pool, sealer)
	conversationStore := conversation.NewStore(db, sealer)
	contexts := conversation.NewContextStore(redisClient, cfg.ContextTTL, cfg.HistoryLimit)
	carts := storefront.NewRedisCartStore(redisClient)
	ledger := billing.NewLedger(db)

	var emailSender notify.EmailSender
	switch {
	case cfg.SendGridAPIKey != "":
		emailSender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger)
	case cfg.NotifyFromEmail != "":
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger)
	}
	notifier := notify.NewService(emailSender, merchantStore, logger)

	factory := llm.NewFactory(bedrockruntime.NewFromConfig(awsCfg))

	service := conversation.NewService(conversation.ServiceConfig{
		Merchants:   merchantStore,
		Factory:     factory,
		Storefronts: conversation.NewStorefrontResolver(carts),
		Contexts:    contexts,
		Recorder:    conversationStore,
		Ledger:      ledger,
		Metrics:     pipelineMetrics,
		Logger:      logger,
		Notifier:    notifier,

		StandbyProvider: cfg.FallbackProvider,
		StandbyLLM: llm.Config{
			APIKey: cfg.FallbackAPIKey,
			Model:  cfg.FallbackModelID,
		},
	})

	var dispatcher *conversation.Orchestrator
	if cfg.UseMemoryQueue {
		dispatcher = conversation.NewOrchestrator(service, conversation.NewMemoryQueue(64), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	} else {
		sqsClient := sqs.NewFromConfig(awsCfg)
		dispatcher = conversation.NewOrchestrator(service,
			conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	messengerAdapter := messenger.NewAdapter(merchantStore, dispatcher, logger)
	messengerWebhook := messenger.NewWebhookHandler(
		cfg.MessengerVerifyToken,
		cfg.MessengerAppSecret,
		messengerAdapter.HandleMessage,
	)

	widgetTokens := webchat.NewTokenIssuer(cfg.WidgetSessionSecret, cfg.WidgetSessionTTL)
	widgetHandler := webchat.NewHandler(
		merchantStore,
		dispatcher,
		conversationStore,
		widgetTokens,
		webchat.WidgetJS,
		logger,
	)

	r := router.New(&router.Config{
		Logger:             logger,
		Messenger:          messengerWebhook,
		Widget:             widgetHandler,
		Dispatcher:         dispatcher,
		Billing:            ledger,
		Contexts:           contexts,
		Conversations:      conversationStore,
		AdminToken:         cfg.AdminToken,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WidgetRateLimit:    cfg.WidgetRateLimit,
		WidgetRateBurst:    cfg.WidgetRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // widget messages block on the LLM
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
