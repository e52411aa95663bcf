package pgtracking

import (
	"context"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// GetSession returns the stored session, or an idle one if none exists.
func (s *Storage) GetSession(ctx context.Context, user models.UserID) (models.Session, error) {
	var (
		state, pending string
		updatedAt      time.Time
	)
	err := s.db.QueryRow(ctx, `
SELECT state, pending_courier, updated_at
FROM session
WHERE user_id = $1
`, string(user)).Scan(&state, &pending, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.IdleSession(user), nil
	}
	if err != nil {
		return models.Session{}, errors.Wrap(err, "select session")
	}

	sess := models.Session{
		User:           user,
		State:          models.SessionState(state),
		PendingCourier: models.CourierKind(pending),
		UpdatedAt:      updatedAt,
	}
	if !sess.State.Valid() {
		return models.IdleSession(user), nil
	}
	return sess, nil
}

// SaveSession upserts the session. Saving an idle session deletes the row.
func (s *Storage) SaveSession(ctx context.Context, sess models.Session) error {
	if sess.State == models.SessionIdle {
		_, err := s.db.Exec(ctx, `DELETE FROM session WHERE user_id = $1`, string(sess.User))
		return errors.Wrap(err, "delete session")
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO session (user_id, state, pending_courier, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id)
DO UPDATE SET state = EXCLUDED.state, pending_courier = EXCLUDED.pending_courier, updated_at = now()
`, string(sess.User), string(sess.State), string(sess.PendingCourier))
	return errors.Wrap(err, "upsert session")
}
