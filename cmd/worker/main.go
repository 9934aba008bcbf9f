package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/email"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/Domenick1991/airsettle/internal/kafka"
	"github.com/Domenick1991/airsettle/internal/logger"
	"github.com/Domenick1991/airsettle/internal/repository"
	"github.com/Domenick1991/airsettle/internal/tasks"
	"github.com/hibiken/asynq"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logg)
	defer producer.Close()

	queue := tasks.NewQueue(cfg.Redis, cfg.Settlement.CompensationMaxRetry, logg)
	defer queue.Close()
	gatewayClient := gateway.NewClient(cfg.Gateway)

	srv := asynq.NewServer(tasks.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			tasks.QueueCritical: 6,
			"default":           3,
		},
		Logger: logg.Named("asynq").Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeCompensate, tasks.NewCompensationHandler(
		gatewayClient,
		producer,
		cfg.Kafka.SettlementTopic,
		logg.Named("compensation"),
	))
	mux.Handle(tasks.TypeRecordSettlement, tasks.NewSettlementHandler(
		repository.NewSettlementRepository(pool),
		gatewayClient,
		queue,
		producer,
		cfg.Kafka.SettlementTopic,
		cfg.Kafka.NotificationsTopic,
		logg.Named("settlement"),
	))
	if err := srv.Start(mux); err != nil {
		logg.Fatal("start task server", zap.Error(err))
	}

	emailSender := email.NewSender(logg.Named("email"))
	if cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logg.Named("consumer"))
		defer consumer.Close()

		go func() {
			if err := consumer.Consume(ctx, emailSender.Send); err != nil {
				logg.Error("consumer stopped", zap.Error(err))
				stop()
			}
		}()
	}

	logg.Info("worker started", zap.Int("concurrency", cfg.Worker.Concurrency))
	<-ctx.Done()
	logg.Info("shutting down worker")
	srv.Shutdown()
}
