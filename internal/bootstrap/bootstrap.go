// Package bootstrap builds the runtime dependencies shared by bot-api and
// bot-worker from the loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/config"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/api/adminapi"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker/kafka"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/cache/rediscache"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier/delhivery"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier/fake"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier/shipmozo"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/whatsapp"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/keylock"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/conversation"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/notify"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/reconciler"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/storage/memtracking"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/storage/pgtracking"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store is everything the binaries need from a tracking store.
type Store interface {
	conversation.Repository
	reconciler.Repository
	reconciler.MessagePruner
	adminapi.Repository
	Ping(ctx context.Context) error
	Close()
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// OpenStore opens the configured store. Postgres is retried until wait
// elapses since it usually starts together with the bot in compose setups.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, wait time.Duration) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		return memtracking.New(), nil
	case "", DriverPostgres:
		st, err := openPostgresWithRetry(ctx, cfg.ConnString(), wait)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func openPostgresWithRetry(ctx context.Context, connString string, wait time.Duration) (*pgtracking.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := pgtracking.New(ctx, connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			break
		}
		slog.Warn("postgres not ready, retrying", "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
}

// Redis returns nil when no Redis host is configured.
func Redis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	return rediscache.NewClient(rediscache.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
}

func RedisPrefix(cfg config.RedisConfig) string {
	if cfg.Prefix == "" {
		return "wtb:"
	}
	return cfg.Prefix
}

// Locker shares locks through Redis when available so bot-api and
// bot-worker serialize on the same keys.
func Locker(rc *redis.Client, cfg config.RedisConfig, lease time.Duration) keylock.Locker {
	if rc == nil {
		return keylock.NewLocal()
	}
	return rediscache.NewLocker(rc, RedisPrefix(cfg), lease)
}

// Couriers registers every enabled courier adapter.
// SnapshotCache is the history cache shared by the conversation machine and
// the reconciler. It is nil without Redis.
func SnapshotCache(rc *redis.Client, cfg *config.Config) *courier.SnapshotCache {
	if rc == nil {
		return nil
	}
	ttl := time.Duration(cfg.Bot.HistoryCacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return courier.NewSnapshotCache(rediscache.New(rc, RedisPrefix(cfg.Redis)), ttl)
}

func Couriers(cfg config.CouriersConfig) (*courier.Registry, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	reg := courier.NewRegistry()
	if cfg.Shipmozo() {
		if cfg.ShipmozoPublicKey == "" {
			slog.Warn("shipmozo enabled without public key")
		}
		if err := reg.Register(models.CourierShipmozo, shipmozo.New(cfg.ShipmozoBaseURL, cfg.ShipmozoPublicKey, timeout)); err != nil {
			return nil, err
		}
	}
	if cfg.Delhivery() {
		if err := reg.Register(models.CourierDelhivery, delhivery.New(cfg.DelhiveryBaseURL, timeout)); err != nil {
			return nil, err
		}
	}
	if cfg.FakeEnabled {
		step := time.Duration(cfg.FakeStepSeconds) * time.Second
		if err := reg.Register(models.CourierFake, fake.New(step)); err != nil {
			return nil, err
		}
	}
	if len(reg.Kinds()) == 0 {
		return nil, errors.New("no courier enabled")
	}
	return reg, nil
}

// Dispatcher sends through the WhatsApp Cloud API, or to the log when no
// access token is configured.
func Dispatcher(cfg config.WhatsAppConfig) *notify.Dispatcher {
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		slog.Warn("whatsapp credentials missing, outbound messages go to the log")
		return notify.NewDispatcher(notify.LogSender{})
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return notify.NewDispatcher(whatsapp.NewClient(cfg.BaseURL, cfg.APIVersion, cfg.PhoneNumberID, cfg.AccessToken, timeout))
}

func KafkaBrokers(cfg config.KafkaConfig) []string {
	if cfg.Host == "" {
		return nil
	}
	port := cfg.Port
	if port == 0 {
		port = 9092
	}
	return []string{fmt.Sprintf("%s:%d", cfg.Host, port)}
}

// EventPublisher publishes shipment lifecycle events. It returns a nil
// publisher when Kafka or the topic is not configured.
func EventPublisher(cfg config.KafkaConfig) (*broker.Publisher, func()) {
	brokers := KafkaBrokers(cfg)
	if len(brokers) == 0 || cfg.ShipmentEventTopicName == "" {
		return nil, func() {}
	}
	p := kafka.NewProducer(brokers)
	return broker.NewPublisher(p, cfg.ShipmentEventTopicName), func() { _ = p.Close() }
}

// Scheduler builds the reconciler from the worker settings. Zero values fall
// back to the reconciler defaults.
func Scheduler(
	cfg *config.Config,
	st Store,
	couriers reconciler.Couriers,
	n reconciler.Notifier,
	locker keylock.Locker,
	rc *redis.Client,
	events *broker.Publisher,
) *reconciler.Scheduler {
	b := cfg.Bot
	retention := time.Duration(b.WorkerMessageRetentionHours) * time.Hour
	if retention <= 0 {
		retention = 72 * time.Hour
	}

	s := reconciler.New(st, couriers, n, locker).
		WithSettings(b.WorkerBatchSize, b.WorkerConcurrency, time.Duration(b.WorkerFetchTimeoutSeconds)*time.Second).
		WithPlanner(PlannerConfig(b)).
		WithMessageRetention(st, retention).
		WithSnapshotCache(SnapshotCache(rc, cfg))
	if rc != nil {
		s.WithRateLimiter(rediscache.NewRateLimiter(rc, RedisPrefix(cfg.Redis)), int64(b.WorkerRateLimitPerMinute), map[models.CourierKind]int64{
			models.CourierShipmozo:  int64(b.WorkerRateLimitShipmozoPerMinute),
			models.CourierDelhivery: int64(b.WorkerRateLimitDelhiveryPerMinute),
		})
	}
	if events != nil {
		s.WithEvents(events)
	}
	return s
}

func PlannerConfig(b config.BotConfig) reconciler.PlannerConfig {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return reconciler.PlannerConfig{
		MinInterval: sec(b.WorkerMinIntervalSeconds),
		MaxInterval: sec(b.WorkerMaxIntervalSeconds),
		Backoff1:    sec(b.WorkerBackoff1Seconds),
		Backoff2:    sec(b.WorkerBackoff2Seconds),
		Backoff3:    sec(b.WorkerBackoff3Seconds),
	}
}
