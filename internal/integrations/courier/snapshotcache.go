package courier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/cache"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

// SnapshotCache keeps recent snapshots per (courier, awb) for history
// lookups. Every writer that announces a change to a user must Put the
// snapshot it announced, so a cached timeline is never older than the last
// notification. A nil *SnapshotCache is a valid no-op cache.
type SnapshotCache struct {
	c   cache.BytesCache
	ttl time.Duration
}

// NewSnapshotCache returns nil when c is nil or ttl is not positive.
func NewSnapshotCache(c cache.BytesCache, ttl time.Duration) *SnapshotCache {
	if c == nil || ttl <= 0 {
		return nil
	}
	return &SnapshotCache{c: c, ttl: ttl}
}

func SnapshotKey(kind models.CourierKind, awb string) string {
	return "history:" + string(kind) + ":" + awb
}

func (s *SnapshotCache) Get(ctx context.Context, kind models.CourierKind, awb string) (Snapshot, bool) {
	if s == nil {
		return Snapshot{}, false
	}
	b, ok, err := s.c.Get(ctx, SnapshotKey(kind, awb))
	if err != nil || !ok {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Put is best-effort; failures are logged and dropped.
func (s *SnapshotCache) Put(ctx context.Context, kind models.CourierKind, awb string, snap Snapshot) {
	if s == nil {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.c.Set(ctx, SnapshotKey(kind, awb), b, s.ttl); err != nil {
		slog.Debug("snapshot cache set", "courier", string(kind), "awb", awb, "error", err.Error())
	}
}
