package models

import "time"

// UserID is the messaging-provider address of a user (WhatsApp phone number).
type UserID string

// CourierKind is the registry tag of a courier adapter ("shipmozo", "delhivery", ...).
type CourierKind string

const (
	CourierShipmozo  CourierKind = "shipmozo"
	CourierDelhivery CourierKind = "delhivery"
	CourierFake      CourierKind = "fake"
)

type ShipmentRecord struct {
	Owner                  UserID
	AWB                    string
	Courier                CourierKind
	Fingerprint            Fingerprint
	OutForDeliveryNotified bool
	Delivered              bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Key returns the lock/identity key of the record: one record per (owner, awb).
func (r *ShipmentRecord) Key() string {
	return ShipmentKey(r.Owner, r.AWB)
}

func ShipmentKey(owner UserID, awb string) string {
	return string(owner) + "|" + awb
}

// ShipmentUpdate carries the reconciler's changes for one record.
// Nil fields are left untouched.
type ShipmentUpdate struct {
	Owner UserID
	AWB   string

	Fingerprint            *Fingerprint
	OutForDeliveryNotified *bool
	Delivered              *bool
}

// ScanEvent is one entry of a courier timeline. Not persisted.
type ScanEvent struct {
	Location   string `json:"location"`
	StatusText string `json:"status_text"`
	Timestamp  string `json:"timestamp"`
}

// ShipmentCursor is a keyset position in (owner, awb) order.
type ShipmentCursor struct {
	Owner UserID
	AWB   string
}

func (r *ShipmentRecord) Cursor() ShipmentCursor {
	return ShipmentCursor{Owner: r.Owner, AWB: r.AWB}
}
