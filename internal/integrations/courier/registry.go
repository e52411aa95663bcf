package courier

import (
	"sort"
	"strings"
	"sync"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/pkg/errors"
)

// Registry maps courier kinds to adapters. It is filled at startup and only
// read afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.CourierKind]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.CourierKind]Adapter)}
}

func (r *Registry) Register(kind models.CourierKind, a Adapter) error {
	kind = models.CourierKind(strings.ToLower(strings.TrimSpace(string(kind))))
	if kind == "" {
		return errors.New("courier kind is required")
	}
	if a == nil {
		return errors.Errorf("courier %s: adapter is nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[kind]; ok {
		return errors.Errorf("courier %s already registered", kind)
	}
	r.adapters[kind] = a
	return nil
}

func (r *Registry) MustRegister(kind models.CourierKind, a Adapter) *Registry {
	if err := r.Register(kind, a); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(kind models.CourierKind) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	if !ok {
		return nil, errors.Wrapf(models.ErrUnknownCourier, "%s", kind)
	}
	return a, nil
}

// Lookup resolves a user-typed token ("Shipmozo ") to a registered kind.
func (r *Registry) Lookup(token string) (models.CourierKind, bool) {
	kind := models.CourierKind(strings.ToLower(strings.TrimSpace(token)))
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[kind]
	return kind, ok
}

// Kinds returns registered kinds in a stable order.
func (r *Registry) Kinds() []models.CourierKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CourierKind, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
