// Package whatsapp talks to the WhatsApp Cloud API: outbound text messages
// through the Graph API and inbound webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/notify"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
)

type Client struct {
	baseURL       string
	apiVersion    string
	phoneNumberID string
	token         string
	httpc         *http.Client
}

func NewClient(baseURL, apiVersion, phoneNumberID, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiVersion:    apiVersion,
		phoneNumberID: phoneNumberID,
		token:         token,
		httpc:         &http.Client{Timeout: timeout},
	}
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type sendReq struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send posts a text message. Any non-2xx answer is a *notify.SendError.
func (c *Client) Send(ctx context.Context, to models.UserID, text string) error {
	b, err := json.Marshal(sendReq{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               string(to),
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	u := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &notify.SendError{To: to, Retryable: true, Err: errors.Wrap(err, "do request")}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	var ae apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
		msg = fmt.Sprintf("%s (code %d)", ae.Error.Message, ae.Error.Code)
	}
	return &notify.SendError{
		To:        to,
		Status:    resp.StatusCode,
		Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		Err:       errors.New(msg),
	}
}
