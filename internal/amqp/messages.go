package amqp

import (
	"encoding/json"
	"time"
)

// EntrySyncMessage represents a lightweight message for mirroring a journal
// entry to the configured ledger mirror. It carries only the ID and version;
// the worker fetches the entry from the database and decides, based on its
// status, whether to append or remove the mirrored rows.
type EntrySyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntrySyncMessage creates a new sync message with just ID and version
func NewEntrySyncMessage(id, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
