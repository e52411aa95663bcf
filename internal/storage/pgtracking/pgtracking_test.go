package pgtracking

import (
	"context"
	"testing"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "trackingbot_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/trackingbot_test?sslmode=disable"
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGTracking_ShipmentsFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	rec := &models.ShipmentRecord{Owner: "919000000001", AWB: "778899", Courier: models.CourierShipmozo, Fingerprint: "fp1"}
	require.NoError(t, st.CreateShipment(ctx, rec))
	require.False(t, rec.CreatedAt.IsZero())

	// same (owner, awb) is a duplicate, another owner is not
	err := st.CreateShipment(ctx, &models.ShipmentRecord{Owner: "919000000001", AWB: "778899", Courier: models.CourierDelhivery})
	require.ErrorIs(t, err, models.ErrDuplicateTracking)
	require.NoError(t, st.CreateShipment(ctx, &models.ShipmentRecord{Owner: "919000000002", AWB: "778899", Courier: models.CourierShipmozo}))
	require.NoError(t, st.CreateShipment(ctx, &models.ShipmentRecord{Owner: "919000000001", AWB: "111", Courier: models.CourierDelhivery}))

	got, err := st.GetShipment(ctx, "919000000001", "778899")
	require.NoError(t, err)
	require.Equal(t, models.CourierShipmozo, got.Courier)
	require.Equal(t, models.Fingerprint("fp1"), got.Fingerprint)

	_, err = st.GetShipment(ctx, "919000000001", "nope")
	require.ErrorIs(t, err, models.ErrNotFound)

	owned, err := st.ListShipmentsByOwner(ctx, "919000000001")
	require.NoError(t, err)
	require.Len(t, owned, 2)

	// keyset paging over everything
	page1, err := st.ListShipments(ctx, models.ShipmentCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	page2, err := st.ListShipments(ctx, page1[1].Cursor(), 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Equal(t, models.UserID("919000000002"), page2[0].Owner)

	// partial update keeps untouched columns
	fp := models.Fingerprint("fp2")
	require.NoError(t, st.ApplyShipmentUpdate(ctx, models.ShipmentUpdate{Owner: "919000000001", AWB: "778899", Fingerprint: &fp}))
	yes := true
	require.NoError(t, st.ApplyShipmentUpdate(ctx, models.ShipmentUpdate{Owner: "919000000001", AWB: "778899", OutForDeliveryNotified: &yes}))
	got, err = st.GetShipment(ctx, "919000000001", "778899")
	require.NoError(t, err)
	require.Equal(t, fp, got.Fingerprint)
	require.True(t, got.OutForDeliveryNotified)
	require.False(t, got.Delivered)

	err = st.ApplyShipmentUpdate(ctx, models.ShipmentUpdate{Owner: "x", AWB: "y", Delivered: &yes})
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, st.DeleteShipment(ctx, "919000000001", "778899"))
	require.NoError(t, st.DeleteShipment(ctx, "919000000001", "778899"))
	_, err = st.GetShipment(ctx, "919000000001", "778899")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestPGTracking_SessionsAndMessages(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	sess, err := st.GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.SessionIdle, sess.State)

	require.NoError(t, st.SaveSession(ctx, models.Session{User: "u1", State: models.SessionAwaitingAWB, PendingCourier: models.CourierDelhivery}))
	sess, err = st.GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.SessionAwaitingAWB, sess.State)
	require.Equal(t, models.CourierDelhivery, sess.PendingCourier)

	require.NoError(t, st.SaveSession(ctx, models.IdleSession("u1")))
	sess, err = st.GetSession(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.SessionIdle, sess.State)

	now := time.Now().UTC()
	first, err := st.MarkMessageProcessed(ctx, "wamid.1", now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.True(t, first)
	first, err = st.MarkMessageProcessed(ctx, "wamid.1", now)
	require.NoError(t, err)
	require.False(t, first)

	_, err = st.MarkMessageProcessed(ctx, "wamid.2", now)
	require.NoError(t, err)

	n, err := st.PruneProcessedMessages(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
