package bootstrap

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/config"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/cache/rediscache"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/keylock"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/storage/memtracking"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_Memory(t *testing.T) {
	st, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: DriverMemory}, 0)
	require.NoError(t, err)
	_, ok := st.(*memtracking.Storage)
	require.True(t, ok)
	require.NoError(t, st.Ping(context.Background()))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "sqlite"}, 0)
	require.Error(t, err)
}

func TestOpenStore_PostgresGivesUp(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, Username: "u", DBName: "d"}
	_, err := OpenStore(context.Background(), cfg, 0)
	require.Error(t, err)
}

func TestLocker_FallsBackToLocal(t *testing.T) {
	require.Nil(t, Redis(config.RedisConfig{}))
	_, ok := Locker(nil, config.RedisConfig{}, time.Minute).(*keylock.Local)
	require.True(t, ok)

	mr := miniredis.RunT(t)
	rc := Redis(config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr.Port())})
	require.NotNil(t, rc)
	l, ok := Locker(rc, config.RedisConfig{}, time.Minute).(*rediscache.Locker)
	require.True(t, ok)

	unlock, err := l.Lock(context.Background(), "user:1")
	require.NoError(t, err)
	require.True(t, mr.Exists("wtb:lock:user:1"))
	unlock()
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}

func TestCouriers(t *testing.T) {
	reg, err := Couriers(config.CouriersConfig{FakeEnabled: true})
	require.NoError(t, err)
	require.Equal(t, []models.CourierKind{models.CourierDelhivery, models.CourierFake, models.CourierShipmozo}, reg.Kinds())

	off := false
	reg, err = Couriers(config.CouriersConfig{ShipmozoEnabled: &off})
	require.NoError(t, err)
	require.Equal(t, []models.CourierKind{models.CourierDelhivery}, reg.Kinds())

	_, err = Couriers(config.CouriersConfig{ShipmozoEnabled: &off, DelhiveryEnabled: &off})
	require.Error(t, err)
}

func TestEventPublisher_DisabledWithoutTopic(t *testing.T) {
	p, closeFn := EventPublisher(config.KafkaConfig{Host: "localhost"})
	require.Nil(t, p)
	closeFn()

	p, closeFn = EventPublisher(config.KafkaConfig{Host: "localhost", ShipmentEventTopicName: "shipment.events"})
	require.NotNil(t, p)
	require.Equal(t, "shipment.events", p.Topic())
	closeFn()
}

func TestKafkaBrokers_DefaultPort(t *testing.T) {
	require.Nil(t, KafkaBrokers(config.KafkaConfig{}))
	require.Equal(t, []string{"kafka:9092"}, KafkaBrokers(config.KafkaConfig{Host: "kafka"}))
}
