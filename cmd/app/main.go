package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airsettle/api"
	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/bootstrap"
	"github.com/Domenick1991/airsettle/internal/cache"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/inventory"
	"github.com/Domenick1991/airsettle/internal/kafka"
	"github.com/Domenick1991/airsettle/internal/logger"
	"github.com/Domenick1991/airsettle/internal/repository"
	"github.com/Domenick1991/airsettle/internal/service/payment"
	"github.com/Domenick1991/airsettle/internal/service/reference"
	"github.com/Domenick1991/airsettle/internal/service/settlement"
	"github.com/Domenick1991/airsettle/internal/tasks"
	"github.com/Domenick1991/airsettle/internal/webhook"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, pool); err != nil {
		logg.Fatal("migrate", zap.Error(err))
	}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Staging.TTL(), cfg.Staging.ReferenceCacheTTL())
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logg.Fatal("connect redis", zap.Error(err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logg)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		logg.Warn("kafka unavailable, settlement events will be dropped until it recovers", zap.Error(err))
	}

	queue := tasks.NewQueue(cfg.Redis, cfg.Settlement.CompensationMaxRetry, logg)
	defer queue.Close()

	gatewayClient := gateway.NewClient(cfg.Gateway)
	inventoryClient := inventory.NewClient(cfg.Inventory)

	records := repository.NewSettlementRepository(pool)
	referenceService := reference.NewReferenceService(repository.NewReferenceRepository(pool), redisCache, logg)

	settlementService := settlement.NewService(
		redisCache,
		records,
		inventoryClient,
		gatewayClient,
		referenceService,
		settlement.WithCompensationQueue(queue),
		settlement.WithProducer(producer, cfg.Kafka.SettlementTopic, cfg.Kafka.NotificationsTopic),
		settlement.WithTimeouts(cfg.Inventory.Timeout(), cfg.Gateway.Timeout()),
		settlement.WithLogger(logg.Named("settlement")),
	)

	paymentOpts := []payment.PaymentServiceOption{payment.WithLogger(logg.Named("payment"))}
	if cfg.Settlement.ReconcileOnPoll {
		paymentOpts = append(paymentOpts, payment.WithReconciliation(settlementService))
	}
	paymentService := payment.NewPaymentService(gatewayClient, redisCache, records, cfg.Frontend, paymentOpts...)

	handlers := bootstrap.Handlers{
		Payment: api.NewPaymentHandler(paymentService, logg),
		Webhook: api.NewWebhookHandler(webhook.NewVerifier(cfg.Gateway.WebhookSecret), cfg.Gateway.SignatureHeader, settlementService, logg),
	}

	if err := bootstrap.Run(ctx, cfg, logg, handlers); err != nil {
		logg.Fatal("server error", zap.Error(err))
	}
}
