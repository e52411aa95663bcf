package pgtracking

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking (
  owner TEXT NOT NULL,
  awb TEXT NOT NULL,
  courier TEXT NOT NULL,
  fingerprint TEXT NOT NULL DEFAULT '',
  out_for_delivery_notified BOOLEAN NOT NULL DEFAULT FALSE,
  delivered BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (owner, awb)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_awb ON tracking(awb)`,
		`
CREATE TABLE IF NOT EXISTS session (
  user_id TEXT PRIMARY KEY,
  state TEXT NOT NULL,
  pending_courier TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS processed_message (
  message_id TEXT PRIMARY KEY,
  processed_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_message_processed_at ON processed_message(processed_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
