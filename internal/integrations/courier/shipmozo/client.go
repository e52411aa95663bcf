package shipmozo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/courier"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://webparex.in"

var vocabulary = courier.Vocabulary{
	Delivered:      []string{"DELIVERED"},
	OutForDelivery: []string{"OUT FOR DELIVERY", "OUT_FOR_DELIVERY", "OFD"},
	NotDelivered:   []string{"UNDELIVERED", "NOT DELIVERED", "UN-DELIVERED"},
}

type Client struct {
	baseURL   string
	publicKey string
	httpc     *http.Client
}

func New(baseURL, publicKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		publicKey: publicKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type respScan struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Status   string `json:"status"`
}

type respShipment struct {
	CurrentStatus string     `json:"current_status"`
	Scan          []respScan `json:"scan"`
}

type respBody struct {
	Data []respShipment `json:"data"`
}

func (c *Client) Fetch(ctx context.Context, awb string) (courier.Snapshot, error) {
	snap, err := c.fetch(ctx, awb)
	if err != nil {
		return courier.Snapshot{}, courier.NewAdapterError(models.CourierShipmozo, awb, err)
	}
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, awb string) (courier.Snapshot, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/public/api/customer/btp/track-order"
	q := u.Query()
	q.Set("tracking_number", awb)
	q.Set("public_key", c.publicKey)
	q.Set("type", "awb_number")
	q.Set("from", "WEB")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return courier.Snapshot{}, fmt.Errorf("shipmozo rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return courier.Snapshot{}, fmt.Errorf("shipmozo http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "decode")
	}
	if len(rb.Data) == 0 {
		return courier.Snapshot{}, nil
	}

	return toSnapshot(rb.Data[0]), nil
}

func toSnapshot(sh respShipment) courier.Snapshot {
	// Shipmozo lists scans newest first.
	scans := make([]models.ScanEvent, 0, len(sh.Scan))
	for _, s := range sh.Scan {
		scans = append(scans, models.ScanEvent{
			Location:   strings.TrimSpace(s.Location),
			StatusText: strings.TrimSpace(s.Status),
			Timestamp:  strings.TrimSpace(strings.TrimSpace(s.Date) + " " + strings.TrimSpace(s.Time)),
		})
	}
	courier.Reverse(scans)

	status := strings.TrimSpace(sh.CurrentStatus)
	if status == "" && len(scans) > 0 {
		status = scans[len(scans)-1].StatusText
	}

	return courier.Snapshot{
		Scans:            scans,
		CurrentStatus:    status,
		IsDelivered:      vocabulary.IsDelivered(status),
		IsOutForDelivery: vocabulary.IsOutForDelivery(status),
	}
}
