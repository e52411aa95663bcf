package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeClient_Fetch_WalksStages(t *testing.T) {
	c := New(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	snap, err := c.Fetch(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, snap.Scans, 1)
	require.Equal(t, "Booked", snap.Scans[0].StatusText)
	require.False(t, snap.IsOutForDelivery)

	now = now.Add(3 * time.Minute)
	snap, err = c.Fetch(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, snap.Scans, 4)
	require.True(t, snap.IsOutForDelivery)
	require.False(t, snap.IsDelivered)

	now = now.Add(time.Hour)
	snap, err = c.Fetch(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, snap.Scans, 5)
	require.True(t, snap.IsDelivered)
	require.Equal(t, "Booked", snap.Scans[0].StatusText)
}

func TestFakeClient_Fetch_UnknownAWB(t *testing.T) {
	snap, err := New(0).Fetch(context.Background(), "0123")
	require.NoError(t, err)
	require.Empty(t, snap.Scans)
}

func TestFakeClient_Fetch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0).Fetch(ctx, "A1")
	require.Error(t, err)
}
