package delhivery

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

const DefaultBaseURL = "https://dlv-api.delhivery.com"

// Delhivery reports out-for-delivery as "Dispatched" at the status level.
var vocabulary = courier.Vocabulary{
	Delivered:      []string{"DELIVERED"},
	OutForDelivery: []string{"OUT FOR DELIVERY", "DISPATCHED"},
	NotDelivered:   []string{"UNDELIVERED", "NOT DELIVERED"},
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type respScan struct {
	ScanDateTime    string `json:"scanDateTime"`
	ScannedLocation string `json:"scannedLocation"`
	ScanNslRemark   string `json:"scanNslRemark"`
}

type respCurrentScan struct {
	UpdatedAt string `json:"ud"`
	Remark    string `json:"sr"`
	Location  string `json:"sl"`
}

type respShipment struct {
	Status struct {
		Status string `json:"status"`
	} `json:"status"`
	DeliveryDate   string `json:"deliveryDate"`
	TrackingStates []struct {
		Label string     `json:"label"`
		Scans []respScan `json:"scans"`
	} `json:"trackingStates"`
	CurrentScan *respCurrentScan `json:"currentScan"`
}

type respBody struct {
	Data []respShipment `json:"data"`
}

func (c *Client) Fetch(ctx context.Context, awb string) (courier.Snapshot, error) {
	snap, err := c.fetch(ctx, awb)
	if err != nil {
		return courier.Snapshot{}, courier.NewAdapterError(models.CourierDelhivery, awb, err)
	}
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, awb string) (courier.Snapshot, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v3/unified-tracking-new"
	q := u.Query()
	q.Set("wbn", awb)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "new request")
	}
	// The public tracking endpoint rejects requests without browser-like headers.
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://www.delhivery.com")
	req.Header.Set("Referer", "https://www.delhivery.com/")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return courier.Snapshot{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return courier.Snapshot{}, nil
	}
	if resp.StatusCode/100 != 2 {
		return courier.Snapshot{}, fmt.Errorf("delhivery http %d", resp.StatusCode)
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
	// States come in chronological order; scans inside a state are newest first.
	var scans []models.ScanEvent
	for _, st := range sh.TrackingStates {
		part := make([]models.ScanEvent, 0, len(st.Scans))
		for _, s := range st.Scans {
			part = append(part, models.ScanEvent{
				Location:   strings.TrimSpace(s.ScannedLocation),
				StatusText: strings.TrimSpace(s.ScanNslRemark),
				Timestamp:  strings.TrimSpace(s.ScanDateTime),
			})
		}
		courier.Reverse(part)
		scans = append(scans, part...)
	}
	if len(scans) == 0 && sh.CurrentScan != nil && sh.CurrentScan.Remark != "" {
		scans = append(scans, models.ScanEvent{
			Location:   strings.TrimSpace(sh.CurrentScan.Location),
			StatusText: strings.TrimSpace(sh.CurrentScan.Remark),
			Timestamp:  strings.TrimSpace(sh.CurrentScan.UpdatedAt),
		})
	}

	status := strings.TrimSpace(sh.Status.Status)
	if status == "" && len(scans) > 0 {
		status = scans[len(scans)-1].StatusText
	}

	ofd := vocabulary.IsOutForDelivery(status)
	if !ofd && len(scans) > 0 {
		ofd = vocabulary.IsOutForDelivery(scans[len(scans)-1].StatusText)
	}

	return courier.Snapshot{
		Scans:            scans,
		CurrentStatus:    status,
		IsDelivered:      vocabulary.IsDelivered(status),
		IsOutForDelivery: ofd,
	}
}
