// Package notify sends rendered messages to users.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/pkg/errors"
)

// Sender is the messaging provider boundary.
type Sender interface {
	Send(ctx context.Context, to models.UserID, text string) error
}

// SendError reports that a message was not accepted by the provider.
// Retryable is false for rejections that will not succeed on retry
// (bad recipient, bad credentials).
type SendError struct {
	To        models.UserID
	Status    int
	Retryable bool
	Err       error
}

func (e *SendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("send to %s: status %d: %v", e.To, e.Status, e.Err)
	}
	return fmt.Sprintf("send to %s: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Dispatcher is the single place outbound messages go through. It never
// reports success for a failed send: callers that mutate state after a
// notification must check the returned error first.
type Dispatcher struct {
	s Sender

	sent   atomic.Int64
	failed atomic.Int64
}

func NewDispatcher(s Sender) *Dispatcher {
	return &Dispatcher{s: s}
}

func (d *Dispatcher) Send(ctx context.Context, to models.UserID, text string) error {
	if text == "" {
		return nil
	}
	if err := d.s.Send(ctx, to, text); err != nil {
		d.failed.Add(1)
		slog.Error("notification send failed", "to", string(to), "error", err.Error())
		var se *SendError
		if !errors.As(err, &se) {
			err = &SendError{To: to, Retryable: true, Err: err}
		}
		return err
	}
	d.sent.Add(1)
	return nil
}

type Stats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load()}
}

// LogSender writes messages to the log instead of a provider. Used when no
// WhatsApp credentials are configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to models.UserID, text string) error {
	slog.Info("outbound message", "to", string(to), "text", text)
	return nil
}
