// Package notify hands committed withdrawal events to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalApproved  = "withdrawal.approved"
	EventWithdrawalDeclined  = "withdrawal.declined"
)

// Event describes a withdrawal request or its resolution
type Event struct {
	Type           string     `json:"type"`
	NotificationID uint       `json:"notification_id"`
	ApplicationID  uint       `json:"application_id"`
	PostingID      uint       `json:"posting_id"`
	CandidateID    uuid.UUID  `json:"candidate_id"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty"`
	Note           string     `json:"note,omitempty"`
	Status         string     `json:"status"`
	At             time.Time  `json:"at"`
}

// Yield encodes the event as JSON
func (e Event) Yield() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Publisher delivers events after the transaction that produced them committed.
// A failed publish never undoes the state change.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, e Event) error

// Publish calls f
func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}
