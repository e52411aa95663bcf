package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/config"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/api/adminapi"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/bootstrap"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker/kafka"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/conversation"
)

type botAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    botAPIOpts
	deps    botAPIDeps
	closers []func()
}

func mustBootstrapBotAPI() *botAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &botAPIApp{ctx: ctx, cancel: cancel}

	grpcAddr := cfg.Bot.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := cfg.Bot.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Bot.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "bot-api"
	}
	st, err := bootstrap.OpenStore(ctx, cfg.Database, 60*time.Second)
	if err != nil {
		panic(err)
	}
	app.closers = append(app.closers, st.Close)

	couriers, err := bootstrap.Couriers(cfg.Couriers)
	if err != nil {
		panic(err)
	}

	rc := bootstrap.Redis(cfg.Redis)
	if rc != nil {
		app.closers = append(app.closers, func() { _ = rc.Close() })
	}
	locker := bootstrap.Locker(rc, cfg.Redis, time.Minute)
	dispatcher := bootstrap.Dispatcher(cfg.WhatsApp)

	machine := conversation.New(st, couriers, dispatcher, locker).
		WithHistoryCache(bootstrap.SnapshotCache(rc, cfg))
	events, closeEvents := bootstrap.EventPublisher(cfg.Kafka)
	app.closers = append(app.closers, closeEvents)
	if events != nil {
		machine.WithEvents(events)
	}

	app.opts = botAPIOpts{
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		verifyToken:   cfg.WhatsApp.VerifyToken,
		appSecret:     cfg.WhatsApp.AppSecret,
		topic:         cfg.Kafka.InboundTopicName,
		consumerGroup: consumerGroup,
	}
	app.deps = botAPIDeps{
		store:   st,
		machine: machine,
		admin:   adminapi.New(st, couriers),
		sink:    inlineSink{h: machine},
	}

	if brokers := bootstrap.KafkaBrokers(cfg.Kafka); len(brokers) > 0 && cfg.Kafka.InboundTopicName != "" {
		producer := kafka.NewProducer(brokers)
		consumer := kafka.NewConsumer(brokers, cfg.Kafka.InboundTopicName, consumerGroup)
		app.closers = append(app.closers, func() { _ = producer.Close() }, func() { _ = consumer.Close() })
		app.deps.sink = queueSink{pub: broker.NewPublisher(producer, cfg.Kafka.InboundTopicName)}
		app.deps.consumer = consumer
	} else {
		slog.Info("no inbound topic configured, handling webhook messages inline")
	}

	// A memory store is private to this process, so the reconciler has to
	// run here too.
	if cfg.Database.Driver == bootstrap.DriverMemory {
		app.deps.scheduler = bootstrap.Scheduler(cfg, st, couriers, dispatcher, locker, rc, events)
	}

	return app
}

func (a *botAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *botAPIApp) Run() error {
	return runBotAPI(a.ctx, a.opts, a.deps)
}
