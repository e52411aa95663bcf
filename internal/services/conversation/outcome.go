package conversation

import "github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"

type Outcome string

const (
	OutcomeIgnored            Outcome = "ignored"
	OutcomeDuplicateMessage   Outcome = "duplicate_message"
	OutcomeHelp               Outcome = "help"
	OutcomeMenu               Outcome = "menu"
	OutcomeCancelled          Outcome = "cancelled"
	OutcomeCourierChosen      Outcome = "courier_chosen"
	OutcomeCourierRetry       Outcome = "courier_retry"
	OutcomeAWBRetry           Outcome = "awb_retry"
	OutcomeCourierUnavailable Outcome = "courier_unavailable"
	OutcomeRegistered         Outcome = "registered"
	OutcomeDuplicateTracking  Outcome = "duplicate_tracking"
	OutcomeInvalidAWB         Outcome = "invalid_awb"
	OutcomeListed             Outcome = "listed"
	OutcomeHistory            Outcome = "history"
	OutcomeHistoryUsage       Outcome = "history_usage"
	OutcomeUnknownAWB         Outcome = "unknown_awb"
)

// Err maps user-facing failures to their sentinel errors; nil otherwise.
func (o Outcome) Err() error {
	switch o {
	case OutcomeDuplicateTracking:
		return models.ErrDuplicateTracking
	case OutcomeInvalidAWB:
		return models.ErrInvalidAWB
	case OutcomeUnknownAWB:
		return models.ErrUnknownAWB
	}
	return nil
}
