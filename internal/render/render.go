// Package render turns bot events into WhatsApp message text.
package render

import (
	"fmt"
	"strings"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	rule     = "━━━━━━━━━━━━━━"
	thinRule = "──────────────"
)

// title builds a fresh Caser per call; Casers are stateful and must not be
// shared between goroutines.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

func Menu(kinds []models.CourierKind) string {
	var b strings.Builder
	b.WriteString("📦 *Choose Service*\n\n")
	for i, k := range kinds {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(k))
	}
	return b.String()
}

func CourierRetry(kinds []models.CourierKind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, "*"+string(k)+"*")
	}
	switch len(names) {
	case 0:
		return "No couriers are available right now."
	case 1:
		return "Reply " + names[0]
	}
	return "Reply " + strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}

func AskAWB(kind models.CourierKind) string {
	return fmt.Sprintf("📦 Send %s tracking number", title(string(kind)))
}

func InvalidAWBToken() string {
	return "⚠️ Send valid tracking number"
}

func Duplicate(awb string) string {
	return fmt.Sprintf("⚠️ AWB *%s* is already being tracked.", awb)
}

func NoScans(awb string) string {
	return fmt.Sprintf("❌ No tracking data found for *%s*.\nCheck the number and send *track* to try again.", awb)
}

func CourierUnavailable(kind models.CourierKind) string {
	return fmt.Sprintf("❌ %s is not responding right now. Send the tracking number again in a few minutes.", title(string(kind)))
}

func TrackingStarted(awb string) string {
	return fmt.Sprintf("✅ *Tracking Started*\n\n🔢 AWB: *%s*\n\nFetching shipment history... 📦", awb)
}

func Cancelled() string {
	return "👍 Cancelled."
}

func Help(kinds []models.CourierKind) string {
	var b strings.Builder
	b.WriteString("🤖 *Shipment Tracker*\n\n")
	b.WriteString("*track* - start tracking a parcel\n")
	b.WriteString("*list* - show active shipments\n")
	b.WriteString("*history <awb>* - full movement history\n")
	b.WriteString("*cancel* - stop the current step\n")
	if len(kinds) > 0 {
		b.WriteString("\nCouriers: ")
		for i, k := range kinds {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(k))
		}
	}
	return b.String()
}

func HistoryUsage() string {
	return "Usage:\nhistory <awb>"
}

func NotTracked(awb string) string {
	return fmt.Sprintf("⚠️ AWB *%s* is not being tracked.", awb)
}

func FetchingHistory(awb string) string {
	return fmt.Sprintf("📜 Fetching history for *%s*...", awb)
}

func NoActive() string {
	return "📭 No active tracking"
}
