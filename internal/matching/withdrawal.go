package matching

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"AOTF-backend/internal/model"
	"AOTF-backend/internal/notify"
)

// Decision is the administrator's answer to a withdrawal request
type Decision string

// Decisions
const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

// ParseDecision accepts "approve" or "decline" in any case
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionDecline:
		return d, nil
	}
	return "", validation("decision must be %q or %q", DecisionApprove, DecisionDecline)
}

// WithdrawalResult is returned by both withdrawal operations
type WithdrawalResult struct {
	ApplicationID  uint              `json:"application_id"`
	Status         string            `json:"status"`
	NotificationID uint              `json:"notification_id"`
	AutoDeclined   bool              `json:"auto_declined,omitempty"`
	Application    model.Application `json:"application"`
}

// RequestWithdrawal lets the candidate ask to leave a pending or approved application. The record
// keeps its place until an administrator resolves the request.
func (e *Engine) RequestWithdrawal(ctx context.Context, applicationID uint, candidateID uuid.UUID, note string) (*WithdrawalResult, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxWithdrawalNoteLength {
		return nil, validation("withdrawal note must be at most %d characters", maxWithdrawalNoteLength)
	}

	var (
		result WithdrawalResult
		event  notify.Event
	)
	err := e.run(ctx, "request_withdrawal", func(tx Tx) error {
		app, _, err := lockApplication(tx, applicationID)
		if err != nil {
			return err
		}
		// other candidates' records are reported as missing
		if app.CandidateID != candidateID {
			return notFound("application %d not found", applicationID)
		}
		switch {
		case app.IsTerminal():
			return invalidTransition(app.Status, "application %d was already resolved and cannot be withdrawn", applicationID)
		case app.Status == model.ApplicationStatusWithdrawalRequested:
			return invalidTransition(app.Status, "application %d already has a pending withdrawal request", applicationID)
		case app.Status != model.ApplicationStatusPending && app.Status != model.ApplicationStatusApproved:
			return invalidTransition(app.Status, "application %d cannot be withdrawn", applicationID)
		}

		now := e.now()
		app.StatusBeforeWithdrawal = app.Status
		app.Status = model.ApplicationStatusWithdrawalRequested
		app.WithdrawalRequestedAt = &now
		app.WithdrawalRequestedBy = &candidateID
		app.WithdrawalNote = note
		app.WithdrawalRejectedAt = nil
		app.WithdrawalRejectedBy = nil
		app.WithdrawalAdminNote = ""
		if err := tx.SaveApplication(app); err != nil {
			return err
		}

		n := model.Notification{
			Type:          model.NotificationTypeWithdrawalRequest,
			ApplicationID: app.ID,
			CandidateID:   app.CandidateID,
			PostingID:     app.PostingID,
			Note:          note,
			Status:        model.NotificationStatusPending,
			CreatedAt:     now,
		}
		if err := tx.CreateNotification(&n); err != nil {
			return err
		}

		result = WithdrawalResult{
			ApplicationID:  app.ID,
			Status:         app.Status,
			NotificationID: n.ID,
			Application:    *app,
		}
		event = notify.Event{
			Type:           notify.EventWithdrawalRequested,
			NotificationID: n.ID,
			ApplicationID:  app.ID,
			PostingID:      app.PostingID,
			CandidateID:    app.CandidateID,
			ActorID:        &candidateID,
			Note:           note,
			Status:         n.Status,
			At:             now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("withdrawal requested",
		zap.Uint("application_id", applicationID),
		zap.Uint("notification_id", result.NotificationID),
		zap.String("candidate_id", candidateID.String()),
	)
	e.publish(ctx, event)
	return &result, nil
}

// ResolveWithdrawal ratifies or rejects a pending withdrawal request. Resolving an already
// resolved request fails with InvalidTransition and changes nothing.
func (e *Engine) ResolveWithdrawal(ctx context.Context, applicationID uint, decision Decision, adminID uuid.UUID, adminNote string) (*WithdrawalResult, error) {
	if decision != DecisionApprove && decision != DecisionDecline {
		return nil, validation("decision must be %q or %q", DecisionApprove, DecisionDecline)
	}
	adminNote = strings.TrimSpace(adminNote)
	if utf8.RuneCountInString(adminNote) > maxAdminNoteLength {
		return nil, validation("admin note must be at most %d characters", maxAdminNoteLength)
	}

	var (
		result WithdrawalResult
		event  notify.Event
	)
	err := e.run(ctx, "resolve_withdrawal", func(tx Tx) error {
		app, posting, err := lockApplication(tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationStatusWithdrawalRequested {
			return invalidTransition(app.Status, "application %d has no pending withdrawal request", applicationID)
		}

		n, err := tx.PendingNotification(app.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("withdrawal notification of application %d not found", applicationID)
			}
			return err
		}

		prior := app.StatusBeforeWithdrawal
		if prior != model.ApplicationStatusPending && prior != model.ApplicationStatusApproved {
			e.logger.Warn("unknown status before withdrawal, reverting to pending",
				zap.Uint("application_id", app.ID),
				zap.String("status_before_withdrawal", prior),
			)
			prior = model.ApplicationStatusPending
		}

		now := e.now()
		result = WithdrawalResult{ApplicationID: app.ID}
		eventType := notify.EventWithdrawalApproved

		switch decision {
		case DecisionApprove:
			app.Status = model.ApplicationStatusWithdrawn
			app.WithdrawalApprovedAt = &now
			app.WithdrawalApprovedBy = &adminID
			app.WithdrawalAdminNote = adminNote
			if err := tx.SaveApplication(app); err != nil {
				return err
			}
			if err := archive(tx, *app, &adminID, now); err != nil {
				return err
			}
			n.Resolve(model.NotificationStatusApproved, adminID, adminNote, now)

			if prior == model.ApplicationStatusApproved {
				setMatchState(posting, model.PostingStatusOpen)
				if err := tx.SavePosting(posting); err != nil {
					return err
				}
			}

		case DecisionDecline:
			eventType = notify.EventWithdrawalDeclined
			app.Status = prior
			app.StatusBeforeWithdrawal = ""
			app.WithdrawalRequestedAt = nil
			app.WithdrawalRequestedBy = nil
			app.WithdrawalNote = ""
			app.WithdrawalRejectedAt = &now
			app.WithdrawalRejectedBy = &adminID
			app.WithdrawalAdminNote = adminNote
			n.Resolve(model.NotificationStatusDeclined, adminID, adminNote, now)

			// the posting may have been matched while the request was open
			accepted, err := acceptedSibling(tx, app)
			if err != nil {
				return err
			}
			if prior == model.ApplicationStatusPending && accepted != nil {
				if err := autoDecline(tx, app, accepted, posting, now); err != nil {
					return err
				}
				result.AutoDeclined = true
			} else if err := tx.SaveApplication(app); err != nil {
				return err
			}
		}

		if err := tx.SaveNotification(n); err != nil {
			return err
		}

		result.Status = app.Status
		result.NotificationID = n.ID
		result.Application = *app
		event = notify.Event{
			Type:           eventType,
			NotificationID: n.ID,
			ApplicationID:  app.ID,
			PostingID:      app.PostingID,
			CandidateID:    app.CandidateID,
			ActorID:        &adminID,
			Note:           adminNote,
			Status:         n.Status,
			At:             now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("withdrawal resolved",
		zap.Uint("application_id", applicationID),
		zap.String("decision", string(decision)),
		zap.String("status", result.Status),
		zap.Bool("auto_declined", result.AutoDeclined),
		zap.String("admin_id", adminID.String()),
	)
	e.publish(ctx, event)
	return &result, nil
}

// acceptedSibling returns the other record of the posting that holds the match, if any
func acceptedSibling(tx Tx, app *model.Application) (*model.Application, error) {
	siblings, err := tx.ListApplications(app.PostingID, model.ApplicationFilter{})
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		if siblings[i].ID != app.ID && siblings[i].HoldsMatch() {
			return &siblings[i], nil
		}
	}
	return nil, nil
}

// publish hands a committed event to the publisher. Failures are logged only; the state change stays.
func (e *Engine) publish(ctx context.Context, event notify.Event) {
	if err := e.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Error("publishing notification event",
			zap.String("type", event.Type),
			zap.Uint("application_id", event.ApplicationID),
			zap.Error(err),
		)
	}
}
