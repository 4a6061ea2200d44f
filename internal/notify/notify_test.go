package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventYield(t *testing.T) {
	candidate := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := Event{
		Type:           EventWithdrawalRequested,
		NotificationID: 7,
		ApplicationID:  3,
		PostingID:      1,
		CandidateID:    candidate,
		Note:           "schedule conflict",
		Status:         "pending",
		At:             at,
	}

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(e.Yield(), &decoded))
	assert.Equal(t, EventWithdrawalRequested, decoded["type"])
	assert.Equal(t, candidate.String(), decoded["candidate_id"])
	assert.Equal(t, "schedule conflict", decoded["note"])
	assert.NotContains(t, decoded, "actor_id")
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	err := p.Publish(context.Background(), Event{Type: EventWithdrawalApproved, ApplicationID: 9, Status: "approved"})
	require.NoError(t, err)

	entries := logs.FilterMessage("notification event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, EventWithdrawalApproved, entries[0].ContextMap()["type"])
	assert.Equal(t, uint64(9), entries[0].ContextMap()["application_id"])
}

func TestPublisherFunc(t *testing.T) {
	var got Event
	p := PublisherFunc(func(_ context.Context, e Event) error {
		got = e
		return nil
	})
	require.NoError(t, p.Publish(context.Background(), Event{Type: EventWithdrawalDeclined}))
	assert.Equal(t, EventWithdrawalDeclined, got.Type)
}
