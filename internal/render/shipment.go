package render

import (
	"fmt"
	"strings"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
)

type stage int

const (
	stageBooked stage = iota
	stagePickedUp
	stageInTransit
	stageOutForDelivery
	stageDelivered
)

// stageOf maps free-form courier status text onto the progress bar. Later
// stages win, so "DELIVERED" beats "OUT FOR DELIVERY" text left in a remark.
func stageOf(status string) stage {
	s := strings.ToUpper(status)
	switch {
	case strings.Contains(s, "UNDELIVERED"), strings.Contains(s, "NOT DELIVERED"):
		if strings.Contains(s, "OUT FOR") {
			return stageOutForDelivery
		}
		return stageInTransit
	case strings.Contains(s, "DELIVERED"):
		return stageDelivered
	case strings.Contains(s, "OUT FOR"), strings.Contains(s, "DISPATCHED"):
		return stageOutForDelivery
	case strings.Contains(s, "TRANSIT"):
		return stageInTransit
	case strings.Contains(s, "PICK"):
		return stagePickedUp
	}
	return stageBooked
}

// Progress renders the five-step progress block for a status text.
func Progress(status string) string {
	st := stageOf(status)
	mark := func(step stage) string {
		switch {
		case step == stageDelivered && st == stageDelivered:
			return "🎉"
		case step == stageOutForDelivery && st == stageOutForDelivery:
			return "⏳"
		case step <= st:
			return "✅"
		}
		return "⬜"
	}

	var b strings.Builder
	b.WriteString("📦 *Shipment Progress*\n\n")
	b.WriteString("📝 Booked ✅\n")
	fmt.Fprintf(&b, "📦 Picked Up %s\n", mark(stagePickedUp))
	fmt.Fprintf(&b, "🚚 In Transit %s\n", mark(stageInTransit))
	fmt.Fprintf(&b, "🚚 Out for Delivery %s\n", mark(stageOutForDelivery))
	fmt.Fprintf(&b, "🎉 Delivered %s\n", mark(stageDelivered))
	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func scanBlock(b *strings.Builder, ev models.ScanEvent) {
	loc := strings.TrimSpace(ev.Location)
	if loc == "" {
		loc = "Unknown location"
	}
	fmt.Fprintf(b, "\n📍 *%s*\n", title(strings.ToLower(loc)))
	if ts := strings.TrimSpace(ev.Timestamp); ts != "" {
		fmt.Fprintf(b, "🕒 %s\n", ts)
	}
	fmt.Fprintf(b, "📦 %s\n", strings.TrimSpace(ev.StatusText))
}

// History renders the full timeline oldest first.
func History(awb, currentStatus string, scans []models.ScanEvent) string {
	var b strings.Builder
	b.WriteString(Progress(currentStatus))
	fmt.Fprintf(&b, "\n📦 AWB: *%s*\n", awb)
	if s := strings.TrimSpace(currentStatus); s != "" {
		fmt.Fprintf(&b, "📌 Status: %s\n", s)
	}
	b.WriteString(rule + "\n📜 *Detailed Movement*\n")
	if len(scans) == 0 {
		b.WriteString("\nNo movement yet.\n")
	}
	for _, ev := range scans {
		scanBlock(&b, ev)
		b.WriteString(thinRule + "\n")
	}
	return b.String()
}

// Update renders a change notification for the latest event.
func Update(awb, currentStatus string, latest models.ScanEvent, hasScan bool) string {
	var b strings.Builder
	b.WriteString(Progress(currentStatus))
	fmt.Fprintf(&b, "\n🔔 *Update* for *%s*\n", awb)
	if hasScan {
		scanBlock(&b, latest)
	} else {
		fmt.Fprintf(&b, "\n📦 %s\n", strings.TrimSpace(currentStatus))
	}
	return b.String()
}

func OutForDelivery(awb string) string {
	return fmt.Sprintf("🚚 *Out for Delivery*\n📦 %s\n\nYour parcel will reach you today.", awb)
}

func Delivered(awb string) string {
	return fmt.Sprintf("🎉 *Delivered*\n📦 %s", awb)
}

// List renders the user's active shipments grouped by courier. Records are
// expected sorted by courier.
func List(records []*models.ShipmentRecord) string {
	if len(records) == 0 {
		return NoActive()
	}
	var b strings.Builder
	b.WriteString("📦 *Active Shipments*\n")
	var current models.CourierKind
	for _, r := range records {
		if r.Courier != current {
			current = r.Courier
			fmt.Fprintf(&b, "\n🚚 *%s*\n", title(string(current)))
		}
		fmt.Fprintf(&b, "• %s\n", r.AWB)
	}
	fmt.Fprintf(&b, "\n%s\nTotal Tracking : *%d*", rule, len(records))
	return b.String()
}
