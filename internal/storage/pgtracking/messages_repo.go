package pgtracking

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// MarkMessageProcessed records the provider message id. It returns true only
// for the first caller; concurrent or replayed calls get false.
func (s *Storage) MarkMessageProcessed(ctx context.Context, messageID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO processed_message (message_id, processed_at)
VALUES ($1, $2)
ON CONFLICT (message_id) DO NOTHING
`, messageID, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "insert processed message")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) PruneProcessedMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM processed_message WHERE processed_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "prune processed messages")
	}
	return tag.RowsAffected(), nil
}
