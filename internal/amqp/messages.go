package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseCreatedMessage signals that an expense was persisted and is
// waiting to be mirrored to the export target. It carries only the ID;
// the worker fetches the full record from the database.
type ExpenseCreatedMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseCreatedMessage creates a message for the given expense id.
func NewExpenseCreatedMessage(id int64) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON creates a message from JSON bytes
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
