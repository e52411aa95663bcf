package messages

import (
	"encoding/json"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	"github.com/pkg/errors"
)

// EncodeInbound returns the partition key (sender) and payload of an inbound
// message. Keying by sender keeps each user's messages ordered.
func EncodeInbound(m models.InboundMessage) (key, value []byte, err error) {
	value, err = json.Marshal(m)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal inbound message")
	}
	return []byte(m.Sender), value, nil
}

func DecodeInbound(value []byte) (models.InboundMessage, error) {
	var m models.InboundMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return models.InboundMessage{}, errors.Wrap(err, "unmarshal inbound message")
	}
	if m.Sender == "" || m.MessageID == "" {
		return models.InboundMessage{}, errors.New("inbound message without sender or id")
	}
	return m, nil
}
