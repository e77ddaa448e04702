package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/juniper/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
}

// EventType returns the event type for the message. The "type" header wins;
// otherwise the value is sniffed for a "type" field.
func (m *IncomingMessage) EventType() string {
	if t := m.Headers["type"]; t != "" {
		return t
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(m.Value, &envelope); err == nil && envelope.Type != "" {
		return envelope.Type
	}

	// Untyped messages default to instance batches, the common case.
	return models.EventTypeInstancesObserved
}

// ParseInstancesObserved parses the message value as an instance batch event.
func (m *IncomingMessage) ParseInstancesObserved() (*models.InstancesObservedEvent, error) {
	var evt models.InstancesObservedEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse instances observed event: %w", err)
	}
	return &evt, nil
}

// ParseReferenceImport parses the message value as a reference import event.
func (m *IncomingMessage) ParseReferenceImport() (*models.ReferenceImportEvent, error) {
	var evt models.ReferenceImportEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse reference import event: %w", err)
	}
	return &evt, nil
}
