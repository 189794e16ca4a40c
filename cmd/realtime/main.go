package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nik2168/nox-chat-backend/internal/api"
	"github.com/nik2168/nox-chat-backend/internal/config"
	"github.com/nik2168/nox-chat-backend/internal/dispatch"
	"github.com/nik2168/nox-chat-backend/internal/events"
	"github.com/nik2168/nox-chat-backend/internal/kafka"
	"github.com/nik2168/nox-chat-backend/internal/logger"
	"github.com/nik2168/nox-chat-backend/internal/poll"
	"github.com/nik2168/nox-chat-backend/internal/presence"
	"github.com/nik2168/nox-chat-backend/internal/registry"
	"github.com/nik2168/nox-chat-backend/internal/repository"
	"github.com/nik2168/nox-chat-backend/internal/typing"
	"github.com/nik2168/nox-chat-backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()
	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo connect", "err", err)
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()
	msgCol := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.MessagesCollection)
	repo := repository.NewMessageRepository(msgCol)

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	presenceStore := presence.NewStore(redisClient, cfg.Redis.Prefix)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
	defer func() { _ = producer.Close() }()

	var alerts *events.AlertPublisher
	if cfg.NATS.URL != "" {
		alerts, err = events.NewAlertPublisher(cfg.NATS.URL, cfg.NATS.AlertSubject)
		if err != nil {
			zlog.Warnw("nats connect, alerts disabled", "err", err)
			alerts = nil
		} else {
			defer alerts.Close()
		}
	}

	reg := registry.New(zlog)
	tracker := presence.NewTracker(reg, reg, presenceStore, zlog)
	relay := typing.NewRelay(reg)
	dispatcher := dispatch.NewDispatcher(repo, reg, producer, alerts, zlog)
	scheduler := dispatch.NewScheduler(dispatcher, cfg.RequestTimeout, zlog)
	defer scheduler.Stop()
	polls := poll.NewCoordinator(repo, reg, zlog)

	router := ws.NewRouter(tracker, relay, dispatcher, scheduler, polls, reg, zlog)
	handler := ws.NewHandler(reg, tracker, router, cfg.App.JWTSecret,
		cfg.PingInterval, cfg.WriteDeadline, cfg.WS.MaxMessageSizeBytes, zlog)

	app := api.NewServer(handler, repo, presenceStore)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zlog.Infow("starting realtime service", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zlog.Fatalw("server error", "err", e)
	case s := <-sig:
		zlog.Infow("signal received, shutting down", "signal", s.String())
	}

	if err := app.Shutdown(); err != nil {
		zlog.Warnw("fiber shutdown", "err", err)
	}
}
