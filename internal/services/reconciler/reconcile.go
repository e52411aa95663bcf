package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker/messages"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/keylock"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var errRateLimited = errors.New("courier rate limit reached, deferred to next sweep")

type oneResult struct {
	notified  int
	delivered bool
}

// reconcileOne checks one shipment under its lock.
//
// Every persisted change happens only after the notification it depends on
// was accepted by the provider ("send, then mutate"). A failed send leaves the
// record as it was, so the next sweep sees the same difference and retries.
// A crash between send and mutate can repeat a notification but never lose
// one. A delivered shipment whose delete failed is kept with Delivered set
// and is removed by the next sweep without another fetch or notification.
func (s *Scheduler) reconcileOne(ctx context.Context, rec *models.ShipmentRecord) (oneResult, error) {
	var res oneResult

	unlock, err := s.locker.Lock(ctx, keylock.ShipmentKey(rec.Owner, rec.AWB))
	if err != nil {
		return res, errors.Wrap(err, "lock shipment")
	}
	defer unlock()

	// re-read under the lock: registration or a previous sweep may have
	// changed or removed it since the page was listed
	cur, err := s.repo.GetShipment(ctx, rec.Owner, rec.AWB)
	if errors.Is(err, models.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, errors.Wrap(err, "get shipment")
	}

	if cur.Delivered {
		return res, errors.Wrap(s.repo.DeleteShipment(ctx, cur.Owner, cur.AWB), "retire delivered shipment")
	}

	if err := s.allow(ctx, cur.Courier); err != nil {
		return res, err
	}

	snap, err := s.fetch(ctx, cur)
	if err != nil {
		return res, err
	}

	if snap.IsDelivered {
		if err := s.notifier.Send(ctx, cur.Owner, render.Delivered(cur.AWB)); err != nil {
			return res, errors.Wrap(err, "send delivered")
		}
		res.notified++
		res.delivered = true
		s.publish(ctx, messages.ShipmentDelivered, cur, snap)
		return res, s.retire(ctx, cur)
	}

	// a reply without scans is "no change"; stored fingerprints are always
	// scan based, so a status-only one would always differ
	fp := snap.Fingerprint()
	if len(snap.Scans) > 0 && fp != cur.Fingerprint {
		latest, _ := snap.Latest()
		if err := s.notifier.Send(ctx, cur.Owner, render.Update(cur.AWB, snap.CurrentStatus, latest, true)); err != nil {
			return res, errors.Wrap(err, "send update")
		}
		res.notified++
		s.snapshots.Put(ctx, cur.Courier, cur.AWB, snap)
		if err := s.repo.ApplyShipmentUpdate(ctx, models.ShipmentUpdate{Owner: cur.Owner, AWB: cur.AWB, Fingerprint: &fp}); err != nil {
			return res, errors.Wrap(err, "store fingerprint")
		}
		s.publish(ctx, messages.ShipmentUpdated, cur, snap)
		slog.Debug("shipment changed", "owner", string(cur.Owner), "awb", cur.AWB, "from", cur.Fingerprint.Short(), "to", fp.Short())
	}

	if snap.IsOutForDelivery && !cur.OutForDeliveryNotified {
		if err := s.notifier.Send(ctx, cur.Owner, render.OutForDelivery(cur.AWB)); err != nil {
			return res, errors.Wrap(err, "send out for delivery")
		}
		res.notified++
		s.snapshots.Put(ctx, cur.Courier, cur.AWB, snap)
		notified := true
		if err := s.repo.ApplyShipmentUpdate(ctx, models.ShipmentUpdate{Owner: cur.Owner, AWB: cur.AWB, OutForDeliveryNotified: &notified}); err != nil {
			return res, errors.Wrap(err, "store out for delivery flag")
		}
		s.publish(ctx, messages.ShipmentOutForDelivery, cur, snap)
	}
	return res, nil
}

// retire removes a delivered shipment. If the delete fails the record is
// marked delivered so the terminal notification is not sent again.
func (s *Scheduler) retire(ctx context.Context, rec *models.ShipmentRecord) error {
	delErr := s.repo.DeleteShipment(ctx, rec.Owner, rec.AWB)
	if delErr == nil {
		return nil
	}
	delivered := true
	if err := s.repo.ApplyShipmentUpdate(ctx, models.ShipmentUpdate{Owner: rec.Owner, AWB: rec.AWB, Delivered: &delivered}); err != nil {
		return errors.Wrapf(delErr, "delete delivered shipment (mark failed too: %v)", err)
	}
	return errors.Wrap(delErr, "delete delivered shipment, marked for retry")
}

func (s *Scheduler) fetch(ctx context.Context, rec *models.ShipmentRecord) (courier.Snapshot, error) {
	a, err := s.couriers.Get(rec.Courier)
	if err != nil {
		return courier.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return a.Fetch(ctx, rec.AWB)
}

func (s *Scheduler) allow(ctx context.Context, kind models.CourierKind) error {
	if s.rl == nil {
		return nil
	}
	limit := s.rateLimitPerMinute
	if v, ok := s.courierLimits[kind]; ok {
		limit = v
	}
	if limit <= 0 {
		return nil
	}
	key := fmt.Sprintf("rl:courier:%s:%s", kind, s.now().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, key, limit, 70*time.Second)
	if err != nil {
		// limiter outage must not stop tracking
		slog.Warn("rate limiter unavailable", "courier", string(kind), "error", err.Error())
		return nil
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "courier", string(kind), "count", n)
		return errRateLimited
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, typ messages.ShipmentEventType, rec *models.ShipmentRecord, snap courier.Snapshot) {
	if s.events == nil {
		return
	}
	ev := messages.ShipmentEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		Owner:      rec.Owner,
		AWB:        rec.AWB,
		Courier:    rec.Courier,
		Status:     snap.CurrentStatus,
		OccurredAt: s.now(),
	}
	if latest, ok := snap.Latest(); ok {
		ev.Latest = &latest
	}
	if err := s.events.PublishJSON(ctx, ev.Key(), ev); err != nil {
		slog.Warn("publish shipment event", "type", string(typ), "awb", rec.AWB, "error", err.Error())
	}
}
