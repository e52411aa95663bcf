// Package memtracking is an in-process tracking store with the same
// semantics as pgtracking. It backs local runs (storage driver "memory")
// and service tests.
package memtracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

type Storage struct {
	mu        sync.RWMutex
	shipments map[string]models.ShipmentRecord
	sessions  map[models.UserID]models.Session
	processed map[string]time.Time

	now func() time.Time
}

func New() *Storage {
	return &Storage{
		shipments: make(map[string]models.ShipmentRecord),
		sessions:  make(map[models.UserID]models.Session),
		processed: make(map[string]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) Ping(ctx context.Context) error { return nil }

func (s *Storage) Close() {}

func (s *Storage) CreateShipment(ctx context.Context, rec *models.ShipmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Key()
	if _, ok := s.shipments[k]; ok {
		return models.ErrDuplicateTracking
	}
	now := s.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.shipments[k] = *rec
	return nil
}

func (s *Storage) GetShipment(ctx context.Context, owner models.UserID, awb string) (*models.ShipmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.shipments[models.ShipmentKey(owner, awb)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (s *Storage) ListShipmentsByOwner(ctx context.Context, owner models.UserID) ([]*models.ShipmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ShipmentRecord
	for _, rec := range s.shipments {
		if rec.Owner == owner {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Courier != out[j].Courier {
			return out[i].Courier < out[j].Courier
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].AWB < out[j].AWB
	})
	return out, nil
}

func (s *Storage) ListShipments(ctx context.Context, after models.ShipmentCursor, limit int) ([]*models.ShipmentRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	s.mu.RLock()
	all := make([]*models.ShipmentRecord, 0, len(s.shipments))
	for _, rec := range s.shipments {
		if cursorLess(after, rec.Cursor()) {
			r := rec
			all = append(all, &r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return cursorLess(all[i].Cursor(), all[j].Cursor()) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func cursorLess(a, b models.ShipmentCursor) bool {
	if a.Owner != b.Owner {
		return a.Owner < b.Owner
	}
	return a.AWB < b.AWB
}

func (s *Storage) ApplyShipmentUpdate(ctx context.Context, upd models.ShipmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := models.ShipmentKey(upd.Owner, upd.AWB)
	rec, ok := s.shipments[k]
	if !ok {
		return models.ErrNotFound
	}
	if upd.Fingerprint != nil {
		rec.Fingerprint = *upd.Fingerprint
	}
	if upd.OutForDeliveryNotified != nil {
		rec.OutForDeliveryNotified = *upd.OutForDeliveryNotified
	}
	if upd.Delivered != nil {
		rec.Delivered = *upd.Delivered
	}
	rec.UpdatedAt = s.now()
	s.shipments[k] = rec
	return nil
}

func (s *Storage) DeleteShipment(ctx context.Context, owner models.UserID, awb string) error {
	s.mu.Lock()
	delete(s.shipments, models.ShipmentKey(owner, awb))
	s.mu.Unlock()
	return nil
}

func (s *Storage) GetSession(ctx context.Context, user models.UserID) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[user]
	if !ok {
		return models.IdleSession(user), nil
	}
	return sess, nil
}

func (s *Storage) SaveSession(ctx context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.State == models.SessionIdle {
		delete(s.sessions, sess.User)
		return nil
	}
	sess.UpdatedAt = s.now()
	s.sessions[sess.User] = sess
	return nil
}

func (s *Storage) MarkMessageProcessed(ctx context.Context, messageID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[messageID]; ok {
		return false, nil
	}
	s.processed[messageID] = at.UTC()
	return true, nil
}

func (s *Storage) PruneProcessedMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, at := range s.processed {
		if at.Before(olderThan) {
			delete(s.processed, id)
			n++
		}
	}
	return n, nil
}

// ShipmentCount is a test helper.
func (s *Storage) ShipmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shipments)
}
