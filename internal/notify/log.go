package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event
func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("notification event",
		zap.String("type", e.Type),
		zap.Uint("notification_id", e.NotificationID),
		zap.Uint("application_id", e.ApplicationID),
		zap.Uint("posting_id", e.PostingID),
		zap.String("candidate_id", e.CandidateID.String()),
		zap.String("status", e.Status),
	)
	return nil
}
