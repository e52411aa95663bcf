package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/pkg/errors"
)

// Verify answers the subscription handshake. It returns the challenge to echo
// and whether the request is accepted.
func Verify(mode, token, challenge, expectedToken string) (string, bool) {
	if mode != "subscribe" || expectedToken == "" {
		return "", false
	}
	if !hmac.Equal([]byte(token), []byte(expectedToken)) {
		return "", false
	}
	return challenge, true
}

// ValidSignature checks the X-Hub-Signature-256 header ("sha256=<hex>")
// against the raw request body.
func ValidSignature(body []byte, header, appSecret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// ParseWebhook extracts user messages from a webhook notification. Status
// callbacks and unsupported message types (media, location, ...) are skipped.
func ParseWebhook(body []byte) ([]models.InboundMessage, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, "decode webhook")
	}

	var out []models.InboundMessage
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				in, ok := toInbound(m)
				if ok {
					out = append(out, in)
				}
			}
		}
	}
	return out, nil
}

func toInbound(m webhookMessage) (models.InboundMessage, bool) {
	if m.From == "" || m.ID == "" {
		return models.InboundMessage{}, false
	}
	in := models.InboundMessage{
		Sender:     models.UserID(m.From),
		MessageID:  m.ID,
		ReceivedAt: parseUnix(m.Timestamp),
	}
	switch m.Type {
	case "text":
		if m.Text == nil {
			return models.InboundMessage{}, false
		}
		in.Kind = models.MessageText
		in.Payload = m.Text.Body
	case "button":
		if m.Button == nil {
			return models.InboundMessage{}, false
		}
		in.Kind = models.MessageButtonReply
		in.Payload = firstNonEmpty(m.Button.Payload, m.Button.Text)
	case "interactive":
		if m.Interactive == nil {
			return models.InboundMessage{}, false
		}
		in.Kind = models.MessageButtonReply
		switch {
		case m.Interactive.ButtonReply != nil:
			in.Payload = firstNonEmpty(m.Interactive.ButtonReply.ID, m.Interactive.ButtonReply.Title)
		case m.Interactive.ListReply != nil:
			in.Payload = firstNonEmpty(m.Interactive.ListReply.ID, m.Interactive.ListReply.Title)
		default:
			return models.InboundMessage{}, false
		}
	default:
		return models.InboundMessage{}, false
	}
	return in, true
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func parseUnix(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
