package conversation

import (
	"context"
	"log/slog"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/render"
	"github.com/pkg/errors"
)

func (m *Machine) list(ctx context.Context, owner models.UserID) (Outcome, error) {
	recs, err := m.repo.ListShipmentsByOwner(ctx, owner)
	if err != nil {
		return OutcomeIgnored, errors.Wrap(err, "list shipments")
	}
	return OutcomeListed, m.reply(ctx, owner, render.List(recs))
}

// history re-fetches a tracked AWB and renders its full timeline. Only AWBs
// the caller tracks are looked up.
func (m *Machine) history(ctx context.Context, owner models.UserID, args []string) (Outcome, error) {
	if len(args) != 1 {
		return OutcomeHistoryUsage, m.reply(ctx, owner, render.HistoryUsage())
	}
	awb, _ := normalizeAWB(args[0])

	rec, err := m.repo.GetShipment(ctx, owner, awb)
	if errors.Is(err, models.ErrNotFound) {
		return OutcomeUnknownAWB, m.reply(ctx, owner, render.NotTracked(awb))
	}
	if err != nil {
		return OutcomeIgnored, errors.Wrap(err, "get shipment")
	}

	snap, err := m.snapshot(ctx, rec.Courier, rec.AWB)
	if err != nil {
		slog.Warn("history fetch failed", "owner", string(owner), "awb", awb, "courier", string(rec.Courier), "error", err.Error())
		return OutcomeCourierUnavailable, m.reply(ctx, owner, render.CourierUnavailable(rec.Courier))
	}
	return OutcomeHistory, m.reply(ctx, owner, render.History(rec.AWB, snap.CurrentStatus, snap.Scans))
}

// snapshot returns a cached courier snapshot or fetches it. Concurrent
// requests for the same AWB share one adapter call.
func (m *Machine) snapshot(ctx context.Context, kind models.CourierKind, awb string) (courier.Snapshot, error) {
	if snap, ok := m.snapshots.Get(ctx, kind, awb); ok {
		return snap, nil
	}

	v, err, _ := m.sf.Do(courier.SnapshotKey(kind, awb), func() (any, error) {
		snap, err := m.fetch(ctx, kind, awb)
		if err != nil {
			return courier.Snapshot{}, err
		}
		m.snapshots.Put(ctx, kind, awb, snap)
		return snap, nil
	})
	if err != nil {
		return courier.Snapshot{}, err
	}
	return v.(courier.Snapshot), nil
}
