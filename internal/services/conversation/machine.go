// Package conversation turns inbound WhatsApp messages into tracking
// registrations and answers the stateless list/history queries.
package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/keylock"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/render"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

type Repository interface {
	CreateShipment(ctx context.Context, rec *models.ShipmentRecord) error
	GetShipment(ctx context.Context, owner models.UserID, awb string) (*models.ShipmentRecord, error)
	ListShipmentsByOwner(ctx context.Context, owner models.UserID) ([]*models.ShipmentRecord, error)

	GetSession(ctx context.Context, user models.UserID) (models.Session, error)
	SaveSession(ctx context.Context, sess models.Session) error

	MarkMessageProcessed(ctx context.Context, messageID string, at time.Time) (bool, error)
}

type Couriers interface {
	Get(kind models.CourierKind) (courier.Adapter, error)
	Lookup(token string) (models.CourierKind, bool)
	Kinds() []models.CourierKind
}

type Notifier interface {
	Send(ctx context.Context, to models.UserID, text string) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key []byte, v any) error
}

type Machine struct {
	repo     Repository
	couriers Couriers
	notifier Notifier
	locker   keylock.Locker

	events EventPublisher

	snapshots *courier.SnapshotCache

	fetchTimeout time.Duration
	sf           singleflight.Group

	now func() time.Time
}

func New(repo Repository, couriers Couriers, notifier Notifier, locker keylock.Locker) *Machine {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &Machine{
		repo:         repo,
		couriers:     couriers,
		notifier:     notifier,
		locker:       locker,
		fetchTimeout: 15 * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Machine) WithEvents(p EventPublisher) *Machine {
	m.events = p
	return m
}

// WithHistoryCache enables caching of courier snapshots for history queries.
// The reconciler must write through the same cache.
func (m *Machine) WithHistoryCache(sc *courier.SnapshotCache) *Machine {
	m.snapshots = sc
	return m
}

func (m *Machine) WithFetchTimeout(d time.Duration) *Machine {
	if d > 0 {
		m.fetchTimeout = d
	}
	return m
}

// Handle processes one inbound message. The returned error reports
// infrastructure failures (store, reply transport); user-facing results such
// as a duplicate or invalid AWB are reported through the Outcome.
//
// Messages are handled at most once per provider message id: the id is
// claimed before any state is touched, so a replay is absorbed even if the
// first delivery failed half way.
func (m *Machine) Handle(ctx context.Context, msg models.InboundMessage) (Outcome, error) {
	if msg.Sender == "" || msg.MessageID == "" {
		return OutcomeIgnored, errors.New("inbound message without sender or id")
	}

	unlock, err := m.locker.Lock(ctx, keylock.UserKey(msg.Sender))
	if err != nil {
		return OutcomeIgnored, errors.Wrap(err, "lock user")
	}
	defer unlock()

	first, err := m.repo.MarkMessageProcessed(ctx, msg.MessageID, m.now())
	if err != nil {
		return OutcomeIgnored, errors.Wrap(err, "mark message processed")
	}
	if !first {
		slog.Debug("duplicate inbound message", "message_id", msg.MessageID, "sender", string(msg.Sender))
		return OutcomeDuplicateMessage, nil
	}

	sess, err := m.repo.GetSession(ctx, msg.Sender)
	if err != nil {
		return OutcomeIgnored, errors.Wrap(err, "get session")
	}

	cmd := parse(msg.Payload)
	out, err := m.dispatch(ctx, sess, cmd)
	slog.Info("inbound handled",
		"sender", string(msg.Sender),
		"message_id", msg.MessageID,
		"state", string(sess.State),
		"command", cmd.name,
		"outcome", string(out),
	)
	return out, err
}

func (m *Machine) dispatch(ctx context.Context, sess models.Session, cmd command) (Outcome, error) {
	switch cmd.name {
	case cmdList:
		return m.list(ctx, sess.User)
	case cmdHistory:
		return m.history(ctx, sess.User, cmd.args)
	case cmdHelp:
		return OutcomeHelp, m.reply(ctx, sess.User, render.Help(m.couriers.Kinds()))
	case cmdTrack:
		next := models.Session{User: sess.User, State: models.SessionChoosingCourier}
		if err := m.repo.SaveSession(ctx, next); err != nil {
			return OutcomeIgnored, errors.Wrap(err, "save session")
		}
		return OutcomeMenu, m.reply(ctx, sess.User, render.Menu(m.couriers.Kinds()))
	case cmdCancel:
		if sess.State == models.SessionIdle {
			return OutcomeIgnored, nil
		}
		if err := m.reset(ctx, sess.User); err != nil {
			return OutcomeIgnored, err
		}
		return OutcomeCancelled, m.reply(ctx, sess.User, render.Cancelled())
	}

	switch sess.State {
	case models.SessionChoosingCourier:
		return m.chooseCourier(ctx, sess, cmd.raw)
	case models.SessionAwaitingAWB:
		return m.register(ctx, sess, cmd.raw)
	}
	return OutcomeIgnored, nil
}

func (m *Machine) chooseCourier(ctx context.Context, sess models.Session, token string) (Outcome, error) {
	kind, ok := m.couriers.Lookup(token)
	if !ok {
		return OutcomeCourierRetry, m.reply(ctx, sess.User, render.CourierRetry(m.couriers.Kinds()))
	}
	next := models.Session{User: sess.User, State: models.SessionAwaitingAWB, PendingCourier: kind}
	if err := m.repo.SaveSession(ctx, next); err != nil {
		return OutcomeIgnored, errors.Wrap(err, "save session")
	}
	return OutcomeCourierChosen, m.reply(ctx, sess.User, render.AskAWB(kind))
}

func (m *Machine) reset(ctx context.Context, user models.UserID) error {
	return errors.Wrap(m.repo.SaveSession(ctx, models.IdleSession(user)), "reset session")
}

func (m *Machine) reply(ctx context.Context, to models.UserID, text string) error {
	if err := m.notifier.Send(ctx, to, text); err != nil {
		return errors.Wrap(err, "reply")
	}
	return nil
}

// fetch calls the adapter with the configured timeout.
func (m *Machine) fetch(ctx context.Context, kind models.CourierKind, awb string) (courier.Snapshot, error) {
	a, err := m.couriers.Get(kind)
	if err != nil {
		return courier.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()
	return a.Fetch(ctx, awb)
}
