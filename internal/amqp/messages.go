package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"minshare/internal/core"
	"minshare/internal/events"
)

var errUnknownOperation = errors.New("unknown operation")

// StatusChangedMessage announces one successful write to a period status.
// It carries only the key; consumers read the document from the store.
type StatusChangedMessage struct {
	MemberID  string         `json:"memberId"`
	Period    core.PeriodKey `json:"period"`
	Operation core.Operation `json:"operation"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewStatusChangedMessage builds the message for a hub change.
func NewStatusChangedMessage(c events.Change, now time.Time) *StatusChangedMessage {
	return &StatusChangedMessage{
		MemberID:  c.Status.MemberID,
		Period:    c.Status.Period,
		Operation: c.Operation,
		Timestamp: now.UTC(),
	}
}

// Key returns the status document the message refers to.
func (m *StatusChangedMessage) Key() core.StatusKey {
	return core.StatusKey{MemberID: m.MemberID, Period: m.Period}
}

func (m *StatusChangedMessage) Validate() error {
	if err := m.Key().Validate(); err != nil {
		return err
	}
	if _, ok := core.ParseOperation(string(m.Operation)); !ok {
		return fmt.Errorf("%w: %q", errUnknownOperation, m.Operation)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *StatusChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatusChangedMessageFromJSON decodes and validates a message body.
func StatusChangedMessageFromJSON(data []byte) (*StatusChangedMessage, error) {
	var msg StatusChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
