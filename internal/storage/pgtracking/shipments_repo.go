package pgtracking

import (
	"context"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `owner, awb, courier, fingerprint, out_for_delivery_notified, delivered, created_at, updated_at`

// CreateShipment inserts a new record. An existing (owner, awb) row yields
// models.ErrDuplicateTracking and is left untouched.
func (s *Storage) CreateShipment(ctx context.Context, rec *models.ShipmentRecord) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
INSERT INTO tracking (
  owner, awb, courier, fingerprint, out_for_delivery_notified, delivered, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (owner, awb) DO NOTHING
`, string(rec.Owner), rec.AWB, string(rec.Courier), string(rec.Fingerprint), rec.OutForDeliveryNotified, rec.Delivered, now)
	if err != nil {
		return errors.Wrap(err, "insert tracking")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDuplicateTracking
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	return nil
}

func (s *Storage) GetShipment(ctx context.Context, owner models.UserID, awb string) (*models.ShipmentRecord, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+shipmentColumns+`
FROM tracking
WHERE owner = $1 AND awb = $2
`, string(owner), awb)

	rec, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking")
	}
	return rec, nil
}

func (s *Storage) ListShipmentsByOwner(ctx context.Context, owner models.UserID) ([]*models.ShipmentRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+`
FROM tracking
WHERE owner = $1
ORDER BY courier, created_at, awb
`, string(owner))
	if err != nil {
		return nil, errors.Wrap(err, "select owner trackings")
	}
	return collectShipments(rows)
}

// ListShipments pages through all records in (owner, awb) order, starting
// strictly after the cursor. A zero cursor starts from the beginning.
func (s *Storage) ListShipments(ctx context.Context, after models.ShipmentCursor, limit int) ([]*models.ShipmentRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+`
FROM tracking
WHERE (owner, awb) > ($1, $2)
ORDER BY owner, awb
LIMIT $3
`, string(after.Owner), after.AWB, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select trackings page")
	}
	return collectShipments(rows)
}

func (s *Storage) ApplyShipmentUpdate(ctx context.Context, upd models.ShipmentUpdate) error {
	var fp *string
	if upd.Fingerprint != nil {
		v := string(*upd.Fingerprint)
		fp = &v
	}

	tag, err := s.db.Exec(ctx, `
UPDATE tracking
SET
  fingerprint = COALESCE($3, fingerprint),
  out_for_delivery_notified = COALESCE($4, out_for_delivery_notified),
  delivered = COALESCE($5, delivered),
  updated_at = now()
WHERE owner = $1 AND awb = $2
`, string(upd.Owner), upd.AWB, fp, upd.OutForDeliveryNotified, upd.Delivered)
	if err != nil {
		return errors.Wrap(err, "update tracking")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteShipment is idempotent: deleting a missing row is not an error.
func (s *Storage) DeleteShipment(ctx context.Context, owner models.UserID, awb string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM tracking WHERE owner = $1 AND awb = $2`, string(owner), awb)
	return errors.Wrap(err, "delete tracking")
}

func collectShipments(rows pgx.Rows) ([]*models.ShipmentRecord, error) {
	defer rows.Close()

	var out []*models.ShipmentRecord
	for rows.Next() {
		rec, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracking")
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanShipment(row pgx.Row) (*models.ShipmentRecord, error) {
	var (
		rec                       models.ShipmentRecord
		owner, courier, fingerpnt string
	)
	if err := row.Scan(
		&owner, &rec.AWB, &courier, &fingerpnt,
		&rec.OutForDeliveryNotified, &rec.Delivered,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Owner = models.UserID(owner)
	rec.Courier = models.CourierKind(courier)
	rec.Fingerprint = models.Fingerprint(fingerpnt)
	return &rec, nil
}
