package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/broker/messages"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/integrations/whatsapp"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/conversation"
)

const maxWebhookBody = 1 << 20

type messageHandler interface {
	Handle(ctx context.Context, msg models.InboundMessage) (conversation.Outcome, error)
}

// inboundSink accepts parsed webhook messages. An error means the message
// was not taken over; the webhook answers 5xx so the provider redelivers.
type inboundSink interface {
	Accept(ctx context.Context, msg models.InboundMessage) error
}

type rawPublisher interface {
	PublishRaw(ctx context.Context, key, value []byte) error
}

// queueSink hands messages to Kafka, keyed by sender.
type queueSink struct {
	pub rawPublisher
}

func (s queueSink) Accept(ctx context.Context, msg models.InboundMessage) error {
	key, value, err := messages.EncodeInbound(msg)
	if err != nil {
		return err
	}
	return s.pub.PublishRaw(ctx, key, value)
}

// inlineSink runs the conversation in the request goroutine. Handler
// failures are logged, never returned: the message id is claimed before
// anything can fail, so a redelivery would only be dropped as a duplicate.
type inlineSink struct {
	h messageHandler
}

func (s inlineSink) Accept(ctx context.Context, msg models.InboundMessage) error {
	handleInbound(context.WithoutCancel(ctx), s.h, msg)
	return nil
}

func handleInbound(ctx context.Context, h messageHandler, msg models.InboundMessage) {
	out, err := h.Handle(ctx, msg)
	if err != nil {
		slog.Error("handle inbound message",
			"sender", string(msg.Sender),
			"message_id", msg.MessageID,
			"outcome", string(out),
			"error", err.Error(),
		)
	}
}

// consumeInbound adapts the conversation to the Kafka consumer. Failures are
// logged and the message committed, as in inlineSink.
func consumeInbound(ctx context.Context, h messageHandler) func(key, value []byte) error {
	return func(_, value []byte) error {
		msg, err := messages.DecodeInbound(value)
		if err != nil {
			slog.Error("drop malformed inbound message", "error", err.Error())
			return nil
		}
		handleInbound(ctx, h, msg)
		return nil
	}
}

type webhookHandler struct {
	verifyToken string
	appSecret   string
	sink        inboundSink
}

func (wh webhookHandler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := whatsapp.Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), wh.verifyToken)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, challenge)
}

func (wh webhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if wh.appSecret != "" && !whatsapp.ValidSignature(body, r.Header.Get("X-Hub-Signature-256"), wh.appSecret) {
		slog.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		slog.Warn("webhook payload rejected", "error", err.Error())
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	for _, m := range msgs {
		if err := wh.sink.Accept(r.Context(), m); err != nil {
			slog.Error("accept inbound message", "message_id", m.MessageID, "error", err.Error())
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
