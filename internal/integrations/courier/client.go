package courier

import (
	"context"
	"fmt"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

// Snapshot is a normalized courier response. Scans are always oldest first.
type Snapshot struct {
	Scans            []models.ScanEvent
	CurrentStatus    string
	IsDelivered      bool
	IsOutForDelivery bool
}

// Latest returns the newest scan, if any.
func (s Snapshot) Latest() (models.ScanEvent, bool) {
	if len(s.Scans) == 0 {
		return models.ScanEvent{}, false
	}
	return s.Scans[len(s.Scans)-1], true
}

func (s Snapshot) Fingerprint() models.Fingerprint {
	return models.FingerprintOf(s.Scans, s.CurrentStatus)
}

// Adapter fetches one courier's timeline. Implementations do not retry;
// zero scans is a valid answer meaning "nothing known yet".
type Adapter interface {
	Fetch(ctx context.Context, awb string) (Snapshot, error)
}

// AdapterError is any network, protocol or decoding failure of an adapter call.
type AdapterError struct {
	Courier models.CourierKind
	AWB     string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("courier %s awb %s: %v", e.Courier, e.AWB, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func NewAdapterError(kind models.CourierKind, awb string, err error) *AdapterError {
	return &AdapterError{Courier: kind, AWB: awb, Err: err}
}

// Reverse flips a newest-first timeline in place.
func Reverse(scans []models.ScanEvent) {
	for i, j := 0, len(scans)-1; i < j; i, j = i+1, j-1 {
		scans[i], scans[j] = scans[j], scans[i]
	}
}
