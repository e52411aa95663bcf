package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/config"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/bootstrap"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/notify"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/reconciler"
	"github.com/redis/go-redis/v9"
)

type workerFactories struct {
	newStorage    func(ctx context.Context, cfg *config.Config) (bootstrap.Store, error)
	newRedis      func(cfg *config.Config) *redis.Client
	newCouriers   func(cfg *config.Config) (*courier.Registry, error)
	newDispatcher func(cfg *config.Config) *notify.Dispatcher
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (bootstrap.Store, error) {
			return bootstrap.OpenStore(ctx, cfg.Database, 60*time.Second)
		},
		newRedis: func(cfg *config.Config) *redis.Client {
			return bootstrap.Redis(cfg.Redis)
		},
		newCouriers: func(cfg *config.Config) (*courier.Registry, error) {
			return bootstrap.Couriers(cfg.Couriers)
		},
		newDispatcher: func(cfg *config.Config) *notify.Dispatcher {
			return bootstrap.Dispatcher(cfg.WhatsApp)
		},
	}
}

type workerRun struct {
	scheduler  *reconciler.Scheduler
	dispatcher *notify.Dispatcher
	store      bootstrap.Store
}

// RunBotWorker builds the reconciler and runs it until ctx is done. onReady,
// when set, receives the wired components before the first sweep.
func RunBotWorker(ctx context.Context, cfg *config.Config, f workerFactories, onReady func(workerRun)) error {
	if cfg.Database.Driver == bootstrap.DriverMemory {
		slog.Warn("bot-worker with a memory store only sees its own data; bot-api runs an embedded reconciler in this mode")
	}

	st, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	couriers, err := f.newCouriers(cfg)
	if err != nil {
		return err
	}

	rc := f.newRedis(cfg)
	if rc != nil {
		defer func() { _ = rc.Close() }()
	}
	if rc == nil {
		slog.Warn("redis not configured, shipment locks are local to this process")
	}
	locker := bootstrap.Locker(rc, cfg.Redis, time.Minute)

	dispatcher := f.newDispatcher(cfg)

	events, closeEvents := bootstrap.EventPublisher(cfg.Kafka)
	defer closeEvents()

	s := bootstrap.Scheduler(cfg, st, couriers, dispatcher, locker, rc, events)
	if onReady != nil {
		onReady(workerRun{scheduler: s, dispatcher: dispatcher, store: st})
	}

	slog.Info("reconciler started",
		"couriers", couriers.Kinds(),
		"pid", os.Getpid(),
	)
	return s.Run(ctx)
}
