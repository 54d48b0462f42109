package amqp

import (
	"encoding/json"
	"time"

	"dailyexpense/internal/core"
)

// EventKind names the change an ExpenseEvent reports.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// ExpenseEvent is published after an expense write succeeds. Deleted events
// carry only the id and owner.
type ExpenseEvent struct {
	Type      EventKind   `json:"type"`
	ExpenseID string      `json:"expenseId"`
	Owner     string      `json:"owner"`
	Category  string      `json:"category,omitempty"`
	Amount    *core.Money `json:"amount,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewExpenseEvent builds the event for e.
func NewExpenseEvent(kind EventKind, e core.Expense) *ExpenseEvent {
	ev := &ExpenseEvent{
		Type:      kind,
		ExpenseID: e.ID,
		Owner:     e.Owner,
		Timestamp: time.Now().UTC(),
	}
	if kind != EventDeleted {
		amount := e.Amount
		ev.Amount = &amount
		ev.Category = string(e.Category)
	}
	return ev
}

// ToJSON converts the event to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes an event published by PublishExpenseEvent.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
