// Package keylock serializes work per string key.
package keylock

import (
	"context"
	"sync"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

// Locker grants exclusive access per key. The returned unlock func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process Locker. Entries are reference counted and dropped
// once nobody holds or waits for the key, so the map stays bounded by the
// number of keys currently in use.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// UserKey serializes conversation handling for one user.
func UserKey(user models.UserID) string {
	return "user:" + string(user)
}

// ShipmentKey serializes registration, reconciliation and deletion of one
// tracked shipment.
func ShipmentKey(owner models.UserID, awb string) string {
	return "shipment:" + models.ShipmentKey(owner, awb)
}
