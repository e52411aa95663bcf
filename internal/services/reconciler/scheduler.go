// Package reconciler periodically re-checks every tracked shipment, notifies
// owners about changes and retires delivered shipments.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/keylock"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type Repository interface {
	ListShipments(ctx context.Context, after models.ShipmentCursor, limit int) ([]*models.ShipmentRecord, error)
	GetShipment(ctx context.Context, owner models.UserID, awb string) (*models.ShipmentRecord, error)
	ApplyShipmentUpdate(ctx context.Context, upd models.ShipmentUpdate) error
	DeleteShipment(ctx context.Context, owner models.UserID, awb string) error
}

type MessagePruner interface {
	PruneProcessedMessages(ctx context.Context, olderThan time.Time) (int64, error)
}

type Couriers interface {
	Get(kind models.CourierKind) (courier.Adapter, error)
}

type Notifier interface {
	Send(ctx context.Context, to models.UserID, text string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key []byte, v any) error
}

type Scheduler struct {
	repo     Repository
	couriers Couriers
	notifier Notifier
	locker   keylock.Locker

	rl     RateLimiter
	events EventPublisher
	pruner MessagePruner

	snapshots *courier.SnapshotCache

	planner *Planner

	batchSize          int
	concurrency        int
	fetchTimeout       time.Duration
	rateLimitPerMinute int64
	courierLimits      map[models.CourierKind]int64
	retention          time.Duration

	triggerCh chan struct{}
	running   atomic.Bool
	now       func() time.Time

	startedAtUnixNano   int64
	lastSweepUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalSweeps         atomic.Int64
	skippedSweeps       atomic.Int64
	totalChecked        atomic.Int64
	totalNotified       atomic.Int64
	totalDelivered      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastMu              sync.Mutex
	lastError           string
	lastSweepID         string
}

func New(repo Repository, couriers Couriers, notifier Notifier, locker keylock.Locker) *Scheduler {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &Scheduler{
		repo:              repo,
		couriers:          couriers,
		notifier:          notifier,
		locker:            locker,
		planner:           NewPlanner(DefaultPlannerConfig(), nil),
		batchSize:         100,
		concurrency:       8,
		fetchTimeout:      20 * time.Second,
		courierLimits:     map[models.CourierKind]int64{},
		triggerCh:         make(chan struct{}, 1),
		now:               func() time.Time { return time.Now().UTC() },
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Scheduler) WithSettings(batchSize, concurrency int, fetchTimeout time.Duration) *Scheduler {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if fetchTimeout > 0 {
		s.fetchTimeout = fetchTimeout
	}
	return s
}

func (s *Scheduler) WithPlanner(cfg PlannerConfig) *Scheduler {
	s.planner = NewPlanner(cfg, nil)
	return s
}

// WithRateLimiter caps adapter calls per courier per minute. perCourier
// overrides perMinute for single couriers.
func (s *Scheduler) WithRateLimiter(rl RateLimiter, perMinute int64, perCourier map[models.CourierKind]int64) *Scheduler {
	s.rl = rl
	if perMinute > 0 {
		s.rateLimitPerMinute = perMinute
	}
	for k, v := range perCourier {
		if v > 0 {
			s.courierLimits[k] = v
		}
	}
	return s
}

func (s *Scheduler) WithEvents(p EventPublisher) *Scheduler {
	s.events = p
	return s
}

// WithSnapshotCache refreshes the history cache with every snapshot a
// notification was sent for.
func (s *Scheduler) WithSnapshotCache(sc *courier.SnapshotCache) *Scheduler {
	s.snapshots = sc
	return s
}

// WithMessageRetention prunes processed inbound message ids older than
// retention after every sweep.
func (s *Scheduler) WithMessageRetention(p MessagePruner, retention time.Duration) *Scheduler {
	if retention > 0 {
		s.pruner = p
		s.retention = retention
	}
	return s
}

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastSweepAt    *time.Time `json:"lastSweepAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	LastSweepID    string     `json:"lastSweepId,omitempty"`
	TotalSweeps    int64      `json:"totalSweeps"`
	SkippedSweeps  int64      `json:"skippedSweeps"`
	TotalChecked   int64      `json:"totalChecked"`
	TotalNotified  int64      `json:"totalNotified"`
	TotalDelivered int64      `json:"totalDelivered"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	Running        bool       `json:"running"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalSweeps:    s.totalSweeps.Load(),
		SkippedSweeps:  s.skippedSweeps.Load(),
		TotalChecked:   s.totalChecked.Load(),
		TotalNotified:  s.totalNotified.Load(),
		TotalDelivered: s.totalDelivered.Load(),
		TotalErrors:    s.totalErrors.Load(),
		InFlight:       s.inFlight.Load(),
		Running:        s.running.Load(),
	}
	if n := s.lastSweepUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSweepAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastMu.Lock()
	st.LastError = s.lastError
	st.LastSweepID = s.lastSweepID
	s.lastMu.Unlock()
	return st
}

func (s *Scheduler) setLastError(err error) {
	s.lastMu.Lock()
	s.lastError = err.Error()
	s.lastMu.Unlock()
}

// Run sweeps once immediately and then after every planner delay or
// trigger, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	failures := 0
	next := func(res SweepResult, err error) time.Duration {
		if err != nil && !res.Skipped {
			failures++
			return s.planner.BackoffDelay(failures)
		}
		failures = 0
		return s.planner.NextSweepDelay()
	}

	t := time.NewTimer(next(s.Sweep(ctx)))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-s.triggerCh:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		t.Reset(next(s.Sweep(ctx)))
	}
}

type SweepResult struct {
	SweepID   string `json:"sweepId,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Checked   int64  `json:"checked"`
	Notified  int64  `json:"notified"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
}

// Sweep reconciles every tracked shipment once. Sweeps never overlap: a call
// made while another sweep is in flight returns immediately with Skipped set.
// Per-shipment failures are logged and counted, never returned.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.skippedSweeps.Add(1)
		slog.Warn("sweep skipped, previous sweep still running")
		return SweepResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	res := SweepResult{SweepID: uuid.NewString()}
	started := s.now()
	s.lastSweepUnixNano.Store(started.UnixNano())
	s.totalSweeps.Add(1)
	s.lastMu.Lock()
	s.lastSweepID = res.SweepID
	s.lastMu.Unlock()

	log := slog.With("sweep_id", res.SweepID)
	log.Info("sweep started")

	var checked, notified, delivered, failed atomic.Int64
	cursor := models.ShipmentCursor{}
	for {
		page, err := s.repo.ListShipments(ctx, cursor, s.batchSize)
		if err != nil {
			s.totalErrors.Add(1)
			s.setLastError(err)
			log.Error("list shipments", "error", err.Error())
			return res, errors.Wrap(err, "list shipments")
		}
		if len(page) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, rec := range page {
			g.Go(func() error {
				s.inFlight.Add(1)
				defer s.inFlight.Add(-1)

				r, err := s.reconcileOne(ctx, rec)
				checked.Add(1)
				notified.Add(int64(r.notified))
				if r.delivered {
					delivered.Add(1)
				}
				if err != nil {
					failed.Add(1)
					s.totalErrors.Add(1)
					s.setLastError(err)
					log.Error("reconcile shipment",
						"owner", string(rec.Owner),
						"awb", rec.AWB,
						"courier", string(rec.Courier),
						"error", err.Error(),
					)
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < s.batchSize {
			break
		}
		cursor = page[len(page)-1].Cursor()
	}

	res.Checked, res.Notified, res.Delivered, res.Failed = checked.Load(), notified.Load(), delivered.Load(), failed.Load()
	s.totalChecked.Add(res.Checked)
	s.totalNotified.Add(res.Notified)
	s.totalDelivered.Add(res.Delivered)

	s.prune(ctx, log)

	log.Info("sweep finished",
		"checked", res.Checked,
		"notified", res.Notified,
		"delivered", res.Delivered,
		"failed", res.Failed,
		"duration", s.now().Sub(started).String(),
	)
	return res, nil
}

func (s *Scheduler) prune(ctx context.Context, log *slog.Logger) {
	if s.pruner == nil {
		return
	}
	n, err := s.pruner.PruneProcessedMessages(ctx, s.now().Add(-s.retention))
	if err != nil {
		log.Warn("prune processed messages", "error", err.Error())
		return
	}
	if n > 0 {
		log.Info("pruned processed messages", "count", n)
	}
}
