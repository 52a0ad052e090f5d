package kafka

import (
	"encoding/json"
	"time"
)

// EventTypeWorkSessionCompleted is the inbound event that triggers the
// milestone integrity sweep for the session's domain.
const EventTypeWorkSessionCompleted = "work_session.completed"

// WorkSessionEvent is the payload of a work session lifecycle message
type WorkSessionEvent struct {
	EventType     string    `json:"event_type"`
	DomainID      string    `json:"domain_id"`
	WorkSessionID string    `json:"work_session_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	WorkSessionEvent *WorkSessionEvent
}

// ParseWorkSessionEvent parses the message value as a work session event
func (m *IncomingMessage) ParseWorkSessionEvent() error {
	var event WorkSessionEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return err
	}
	m.WorkSessionEvent = &event
	return nil
}

// EventType returns the event type, preferring the parsed payload and
// falling back to the message header
func (m *IncomingMessage) EventType() string {
	if m.WorkSessionEvent != nil && m.WorkSessionEvent.EventType != "" {
		return m.WorkSessionEvent.EventType
	}
	return m.Headers["event_type"]
}

// GetDomainID returns the domain the message belongs to
func (m *IncomingMessage) GetDomainID() string {
	if m.WorkSessionEvent != nil && m.WorkSessionEvent.DomainID != "" {
		return m.WorkSessionEvent.DomainID
	}
	return m.Headers["domain_id"]
}
