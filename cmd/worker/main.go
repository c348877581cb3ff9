package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/internal/services"
	"github.com/microblog/microblog/internal/workers"
	"github.com/microblog/microblog/pkg/cache"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(os.Stdout, cfg.Log.Level)
	logger.Info("Starting microblog worker...")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Database is not reachable")
	}
	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	userEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents)
	defer userEventsProducer.Close()
	feedEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents)
	defer feedEventsProducer.Close()
	tasksProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Tasks)
	defer tasksProducer.Close()

	userEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.UserEvents, cfg.Kafka.GroupID, logger)
	feedEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.FeedEvents, cfg.Kafka.GroupID, logger)
	tasksConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Tasks, cfg.Kafka.GroupID, logger)

	svc := services.New(db.DB, redisClient, services.Producers{
		UserEvents: userEventsProducer,
		FeedEvents: feedEventsProducer,
		Tasks:      tasksProducer,
	}, cfg, logger)

	eventWorker := workers.NewEventWorker(svc.Feed, svc.FollowRepo, cfg.Feed.FanoutBatch, logger, userEventsConsumer, feedEventsConsumer)
	taskWorker := workers.NewTaskWorker(svc.Tasks, svc.Export, tasksConsumer, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := eventWorker.Start(ctx); err != nil {
			logger.WithError(err).Error("Event worker stopped with error")
		}
	}()
	go func() {
		defer wg.Done()
		if err := taskWorker.Start(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Task worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	wg.Wait()

	if err := eventWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop event worker")
	}
	if err := taskWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop task worker")
	}

	logger.Info("Worker exited")
}
