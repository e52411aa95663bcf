package render

import (
	"strings"
	"testing"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMenuAndRetry(t *testing.T) {
	kinds := []models.CourierKind{models.CourierDelhivery, models.CourierShipmozo}
	require.Equal(t, "📦 *Choose Service*\n\ndelhivery\nshipmozo", Menu(kinds))
	require.Equal(t, "Reply *delhivery* or *shipmozo*", CourierRetry(kinds))
	require.Equal(t, "Reply *a*, *b* or *c*", CourierRetry([]models.CourierKind{"a", "b", "c"}))
	require.Equal(t, "Reply *a*", CourierRetry([]models.CourierKind{"a"}))
}

func TestProgress_Stages(t *testing.T) {
	cases := []struct {
		status string
		line   string
	}{
		{"Manifested", "📦 Picked Up ⬜"},
		{"Picked Up", "📦 Picked Up ✅"},
		{"In Transit", "🚚 In Transit ✅"},
		{"Out For Delivery", "🚚 Out for Delivery ⏳"},
		{"DISPATCHED", "🚚 Out for Delivery ⏳"},
		{"Delivered", "🎉 Delivered 🎉"},
	}
	for _, c := range cases {
		t.Run(c.status, func(t *testing.T) {
			require.Contains(t, Progress(c.status), c.line)
		})
	}
}

func TestProgress_UndeliveredIsNotDelivered(t *testing.T) {
	out := Progress("Undelivered - consignee not available")
	require.Contains(t, out, "🎉 Delivered ⬜")
	require.Contains(t, out, "🚚 In Transit ✅")
}

func TestProgress_RoutedIsNotOutForDelivery(t *testing.T) {
	require.Contains(t, Progress("In Transit - Routed via hub"), "🚚 Out for Delivery ⬜")
}

func TestHistory_OldestFirst(t *testing.T) {
	scans := []models.ScanEvent{
		{Location: "MUMBAI HUB", StatusText: "Picked Up", Timestamp: "01-01 10:00"},
		{Location: "pune", StatusText: "In Transit", Timestamp: "02-01 09:00"},
	}
	out := History("778899", "In Transit", scans)
	require.Contains(t, out, "📦 AWB: *778899*")
	require.Contains(t, out, "📍 *Mumbai Hub*")
	require.Less(t, strings.Index(out, "📍 *Mumbai Hub*"), strings.Index(out, "📍 *Pune*"))
	require.Equal(t, 2, strings.Count(out, thinRule))

	require.Contains(t, History("1", "", nil), "No movement yet.")
}

func TestUpdate(t *testing.T) {
	out := Update("1", "In Transit", models.ScanEvent{Location: "Pune", StatusText: "Reached hub"}, true)
	require.Contains(t, out, "🔔 *Update* for *1*")
	require.Contains(t, out, "📦 Reached hub")
	require.NotContains(t, out, "🕒")

	out = Update("1", "Manifested", models.ScanEvent{}, false)
	require.Contains(t, out, "📦 Manifested")
}

func TestList_GroupedWithTotal(t *testing.T) {
	out := List([]*models.ShipmentRecord{
		{AWB: "1", Courier: models.CourierDelhivery},
		{AWB: "2", Courier: models.CourierDelhivery},
		{AWB: "3", Courier: models.CourierShipmozo},
	})
	require.Equal(t, 1, strings.Count(out, "*Delhivery*"))
	require.Equal(t, 1, strings.Count(out, "*Shipmozo*"))
	require.Contains(t, out, "• 3\n")
	require.True(t, strings.HasSuffix(out, "Total Tracking : *3*"))

	require.Equal(t, NoActive(), List(nil))
}

func TestTerminalMessagesMentionAWB(t *testing.T) {
	require.Contains(t, Delivered("A1"), "A1")
	require.Contains(t, OutForDelivery("A1"), "A1")
	require.NotEqual(t, Delivered("A1"), OutForDelivery("A1"))
}
