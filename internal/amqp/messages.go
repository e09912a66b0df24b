package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expenso/internal/core"
)

// ActivityMessage is the wire form of a confirmed transaction change.
// EventID lets the consumer drop redeliveries.
type ActivityMessage struct {
	EventID     string            `json:"event_id"`
	Kind        core.ActivityKind `json:"kind"`
	UserEmail   string            `json:"user_email"`
	Transaction core.Transaction  `json:"transaction"`
	OccurredAt  time.Time         `json:"occurred_at"`
	PublishedAt time.Time         `json:"published_at"`
}

func NewActivityMessage(e core.ActivityEvent) *ActivityMessage {
	return &ActivityMessage{
		EventID:     e.ID,
		Kind:        e.Kind,
		UserEmail:   e.UserEmail,
		Transaction: e.Transaction,
		OccurredAt:  e.OccurredAt,
		PublishedAt: time.Now().UTC(),
	}
}

// Event converts the message back to the domain event.
func (m *ActivityMessage) Event() core.ActivityEvent {
	return core.ActivityEvent{
		ID:          m.EventID,
		Kind:        m.Kind,
		UserEmail:   m.UserEmail,
		Transaction: m.Transaction,
		OccurredAt:  m.OccurredAt,
	}
}

func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes and checks the fields the consumer relies on.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" {
		return nil, errors.New("missing event_id")
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown activity kind %q", msg.Kind)
	}
	if msg.Transaction.ID == "" {
		return nil, errors.New("missing transaction id")
	}
	return &msg, nil
}
