package events

import (
	"encoding/json"
	"time"
)

// Mutation kinds carried by TransactionEvent.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// TransactionEvent announces a write to the transaction table. It carries
// only the id and month; consumers reload whatever they need from the store.
type TransactionEvent struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent creates an event for the given mutation kind.
func NewTransactionEvent(kind string, id int64, month string) *TransactionEvent {
	return &TransactionEvent{
		Kind:      kind,
		ID:        id,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
