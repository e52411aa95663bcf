// Package broker holds the transport-neutral side of message publishing.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Publisher marshals values to JSON and publishes them to one topic, retrying
// with a linear backoff. Kafka may not be reachable right after startup.
type Publisher struct {
	p        Producer
	topic    string
	attempts int
	backoff  time.Duration
}

func NewPublisher(p Producer, topic string) *Publisher {
	return &Publisher{p: p, topic: topic, attempts: 5, backoff: 150 * time.Millisecond}
}

func (p *Publisher) WithRetry(attempts int, backoff time.Duration) *Publisher {
	if attempts > 0 {
		p.attempts = attempts
	}
	if backoff >= 0 {
		p.backoff = backoff
	}
	return p
}

func (p *Publisher) Topic() string { return p.topic }

func (p *Publisher) PublishJSON(ctx context.Context, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	return p.PublishRaw(ctx, key, b)
}

func (p *Publisher) PublishRaw(ctx context.Context, key, value []byte) error {
	var lastErr error
	for i := 0; i < p.attempts; i++ {
		if lastErr = p.p.Publish(ctx, p.topic, key, value); lastErr == nil {
			return nil
		}
		slog.Warn("publish failed", "topic", p.topic, "attempt", i+1, "error", lastErr.Error())
		if i == p.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "publish cancelled")
		case <-time.After(time.Duration(i+1) * p.backoff):
		}
	}
	return errors.Wrapf(lastErr, "publish to %s", p.topic)
}
