package models

import "time"

type SessionState string

const (
	SessionIdle            SessionState = "idle"
	SessionChoosingCourier SessionState = "choosing_courier"
	SessionAwaitingAWB     SessionState = "awaiting_awb"
)

func (s SessionState) Valid() bool {
	switch s {
	case SessionIdle, SessionChoosingCourier, SessionAwaitingAWB:
		return true
	}
	return false
}

type Session struct {
	User           UserID
	State          SessionState
	PendingCourier CourierKind // set only in SessionAwaitingAWB
	UpdatedAt      time.Time
}

// IdleSession is what a user without a stored session is in.
func IdleSession(user UserID) Session {
	return Session{User: user, State: SessionIdle}
}

type MessageKind string

const (
	MessageText        MessageKind = "text"
	MessageButtonReply MessageKind = "button_reply"
)

// InboundMessage is the transport-independent shape of one user message.
type InboundMessage struct {
	Sender    UserID      `json:"sender"`
	Kind      MessageKind `json:"kind"`
	Payload   string      `json:"payload"`
	MessageID string      `json:"message_id"`
	// ReceivedAt is informational; dedup relies on MessageID only.
	ReceivedAt time.Time `json:"received_at"`
}
