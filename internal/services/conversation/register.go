package conversation

import (
	"context"
	"log/slog"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker/messages"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/keylock"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// register runs the AwaitingAWB transition. It holds the shipment lock so a
// concurrent sweep never sees a half-registered record.
func (m *Machine) register(ctx context.Context, sess models.Session, token string) (Outcome, error) {
	owner := sess.User
	awb, ok := normalizeAWB(token)
	if !ok {
		return OutcomeAWBRetry, m.reply(ctx, owner, render.InvalidAWBToken())
	}

	unlock, err := m.locker.Lock(ctx, keylock.ShipmentKey(owner, awb))
	if err != nil {
		return OutcomeIgnored, errors.Wrap(err, "lock shipment")
	}
	defer unlock()

	_, err = m.repo.GetShipment(ctx, owner, awb)
	switch {
	case err == nil:
		return m.rejectDuplicate(ctx, owner, awb)
	case !errors.Is(err, models.ErrNotFound):
		return OutcomeIgnored, errors.Wrap(err, "get shipment")
	}

	kind := sess.PendingCourier
	snap, err := m.fetch(ctx, kind, awb)
	if err != nil {
		if errors.Is(err, models.ErrUnknownCourier) {
			// courier was unregistered since the session started
			if rerr := m.reset(ctx, owner); rerr != nil {
				return OutcomeIgnored, rerr
			}
			return OutcomeCourierRetry, m.reply(ctx, owner, render.Menu(m.couriers.Kinds()))
		}
		slog.Warn("registration fetch failed", "owner", string(owner), "awb", awb, "courier", string(kind), "error", err.Error())
		return OutcomeCourierUnavailable, m.reply(ctx, owner, render.CourierUnavailable(kind))
	}

	if len(snap.Scans) == 0 {
		if err := m.reset(ctx, owner); err != nil {
			return OutcomeIgnored, err
		}
		return OutcomeInvalidAWB, m.reply(ctx, owner, render.NoScans(awb))
	}

	rec := &models.ShipmentRecord{
		Owner:       owner,
		AWB:         awb,
		Courier:     kind,
		Fingerprint: snap.Fingerprint(),
	}
	if err := m.repo.CreateShipment(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateTracking) {
			return m.rejectDuplicate(ctx, owner, awb)
		}
		return OutcomeIgnored, errors.Wrap(err, "create shipment")
	}
	if err := m.reset(ctx, owner); err != nil {
		return OutcomeRegistered, err
	}

	m.snapshots.Put(ctx, kind, awb, snap)
	m.publish(ctx, rec, snap)

	slog.Info("shipment registered",
		"owner", string(owner),
		"awb", awb,
		"courier", string(kind),
		"scans", len(snap.Scans),
		"fingerprint", rec.Fingerprint.Short(),
	)

	if err := m.reply(ctx, owner, render.TrackingStarted(awb)); err != nil {
		return OutcomeRegistered, err
	}
	return OutcomeRegistered, m.reply(ctx, owner, render.History(awb, snap.CurrentStatus, snap.Scans))
}

func (m *Machine) rejectDuplicate(ctx context.Context, owner models.UserID, awb string) (Outcome, error) {
	if err := m.reset(ctx, owner); err != nil {
		return OutcomeIgnored, err
	}
	return OutcomeDuplicateTracking, m.reply(ctx, owner, render.Duplicate(awb))
}

func (m *Machine) publish(ctx context.Context, rec *models.ShipmentRecord, snap courier.Snapshot) {
	if m.events == nil {
		return
	}
	ev := messages.ShipmentEvent{
		EventID:    uuid.NewString(),
		Type:       messages.ShipmentRegistered,
		Owner:      rec.Owner,
		AWB:        rec.AWB,
		Courier:    rec.Courier,
		Status:     snap.CurrentStatus,
		OccurredAt: m.now(),
	}
	if latest, ok := snap.Latest(); ok {
		ev.Latest = &latest
	}
	if err := m.events.PublishJSON(ctx, ev.Key(), ev); err != nil {
		slog.Warn("publish shipment event", "type", string(ev.Type), "awb", rec.AWB, "error", err.Error())
	}
}
