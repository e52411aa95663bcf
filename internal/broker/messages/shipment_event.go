package messages

import (
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

type ShipmentEventType string

const (
	ShipmentRegistered     ShipmentEventType = "registered"
	ShipmentUpdated        ShipmentEventType = "updated"
	ShipmentOutForDelivery ShipmentEventType = "out_for_delivery"
	ShipmentDelivered      ShipmentEventType = "delivered"
)

// ShipmentEvent is published on every lifecycle step of a tracked shipment.
// Keyed by owner|awb.
type ShipmentEvent struct {
	EventID    string             `json:"event_id"`
	Type       ShipmentEventType  `json:"type"`
	Owner      models.UserID      `json:"owner"`
	AWB        string             `json:"awb"`
	Courier    models.CourierKind `json:"courier"`
	Status     string             `json:"status,omitempty"`
	Latest     *models.ScanEvent  `json:"latest,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func (e ShipmentEvent) Key() []byte {
	return []byte(models.ShipmentKey(e.Owner, e.AWB))
}
