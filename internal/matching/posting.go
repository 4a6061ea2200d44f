package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"AOTF-backend/internal/model"
)

// PostingSummary counts a posting's applications per status
type PostingSummary struct {
	PostingID    uint           `json:"posting_id"`
	Status       string         `json:"status"`
	Total        int            `json:"total"`
	AutoDeclined int            `json:"auto_declined"`
	ByStatus     map[string]int `json:"by_status"`
}

// derivePostingStatus is the status the applications imply: matched when exactly one holds the
// match, open otherwise. hold and closed are never derived.
func derivePostingStatus(apps []model.Application) string {
	if len(matchHolders(apps)) == 1 {
		return model.PostingStatusMatched
	}
	return model.PostingStatusOpen
}

func matchHolders(apps []model.Application) []model.Application {
	var holders []model.Application
	for _, a := range apps {
		if a.HoldsMatch() {
			holders = append(holders, a)
		}
	}
	return holders
}

// setMatchState records a change of the match state without breaking an overlay.
// A held posting gets the status it will return to, a closed posting stays closed.
func setMatchState(p *model.Posting, status string) {
	switch p.Status {
	case model.PostingStatusClosed:
	case model.PostingStatusHold:
		p.StatusBeforeHold = status
	default:
		p.Status = status
	}
}

// CreatePosting opens a new posting owned by the requester
func (e *Engine) CreatePosting(ctx context.Context, ownerID uuid.UUID, info model.EditablePostingInfo) (*model.Posting, error) {
	info.Title = strings.TrimSpace(info.Title)
	if info.Title == "" {
		return nil, validation("title is required")
	}
	if info.Kind != model.PostingKindTutoring && info.Kind != model.PostingKindProject {
		return nil, validation("kind must be %q or %q", model.PostingKindTutoring, model.PostingKindProject)
	}

	var posting model.Posting
	err := e.run(ctx, "create_posting", func(tx Tx) error {
		posting = model.Posting{
			OwnerID:             ownerID,
			EditablePostingInfo: info,
			Status:              model.PostingStatusOpen,
		}
		if err := tx.CreatePosting(&posting); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("owner %s not found", ownerID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("posting created", zap.Uint("posting_id", posting.ID), zap.String("owner_id", ownerID.String()))
	return &posting, nil
}

// GetPosting returns one posting
func (e *Engine) GetPosting(ctx context.Context, id uint) (*model.Posting, error) {
	posting, err := e.store.GetPosting(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("posting %d not found", id)
		}
		return nil, fmt.Errorf("loading posting %d: %w", id, err)
	}
	return posting, nil
}

// ListPostings returns postings matching the filter, newest first
func (e *Engine) ListPostings(ctx context.Context, filter model.PostingFilter) ([]model.Posting, error) {
	postings, err := e.store.ListPostings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	return postings, nil
}

// Hold suspends an open or matched posting. The current status is kept so Unhold can restore it.
func (e *Engine) Hold(ctx context.Context, postingID uint, adminID uuid.UUID) (*model.Posting, error) {
	return e.changePosting(ctx, "hold", postingID, adminID, func(p *model.Posting) error {
		if p.IsOverlay() {
			return invalidTransition(p.Status, "posting %d cannot be put on hold", p.ID)
		}
		p.StatusBeforeHold = p.Status
		p.Status = model.PostingStatusHold
		return nil
	})
}

// Unhold lifts a hold and restores the status the posting had, updated by any match changes made
// while it was held.
func (e *Engine) Unhold(ctx context.Context, postingID uint, adminID uuid.UUID) (*model.Posting, error) {
	return e.changePosting(ctx, "unhold", postingID, adminID, func(p *model.Posting) error {
		if p.Status != model.PostingStatusHold {
			return invalidTransition(p.Status, "posting %d is not on hold", p.ID)
		}
		restore := p.StatusBeforeHold
		if restore == "" {
			restore = model.PostingStatusOpen
		}
		p.Status = restore
		p.StatusBeforeHold = ""
		return nil
	})
}

// Close retires a posting. Closed postings accept no applications and no approvals.
func (e *Engine) Close(ctx context.Context, postingID uint, adminID uuid.UUID) (*model.Posting, error) {
	return e.changePosting(ctx, "close", postingID, adminID, func(p *model.Posting) error {
		if p.Status == model.PostingStatusClosed {
			return invalidTransition(p.Status, "posting %d is already closed", p.ID)
		}
		p.Status = model.PostingStatusClosed
		p.StatusBeforeHold = ""
		return nil
	})
}

// SyncPosting recomputes the match state of a posting from its applications
func (e *Engine) SyncPosting(ctx context.Context, postingID uint, adminID uuid.UUID) (*model.Posting, error) {
	var posting model.Posting
	err := e.run(ctx, "sync_posting", func(tx Tx) error {
		p, err := lockPosting(tx, postingID)
		if err != nil {
			return err
		}
		apps, err := tx.ListApplications(postingID, model.ApplicationFilter{})
		if err != nil {
			return err
		}
		if holders := matchHolders(apps); len(holders) > 1 {
			return fmt.Errorf("posting %d has %d accepted applications", postingID, len(holders))
		}

		setMatchState(p, derivePostingStatus(apps))
		if err := tx.SavePosting(p); err != nil {
			return err
		}
		posting = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("posting synchronized",
		zap.Uint("posting_id", postingID),
		zap.String("status", posting.Status),
		zap.String("admin_id", adminID.String()),
	)
	return &posting, nil
}

// Summary counts the posting's applications. The posting and its records are read under the
// posting lock, so the counts never show half of a cascade.
func (e *Engine) Summary(ctx context.Context, postingID uint) (*PostingSummary, error) {
	var summary *PostingSummary
	err := e.run(ctx, "summary", func(tx Tx) error {
		posting, err := lockPosting(tx, postingID)
		if err != nil {
			return err
		}
		apps, err := tx.ListApplications(postingID, model.ApplicationFilter{})
		if err != nil {
			return fmt.Errorf("listing applications of posting %d: %w", postingID, err)
		}

		summary = &PostingSummary{
			PostingID: postingID,
			Status:    posting.Status,
			Total:     len(apps),
			ByStatus:  map[string]int{},
		}
		for _, a := range apps {
			summary.ByStatus[a.Status]++
			if a.AutoDeclined {
				summary.AutoDeclined++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (e *Engine) changePosting(ctx context.Context, op string, postingID uint, adminID uuid.UUID, change func(p *model.Posting) error) (*model.Posting, error) {
	var posting model.Posting
	err := e.run(ctx, op, func(tx Tx) error {
		p, err := lockPosting(tx, postingID)
		if err != nil {
			return err
		}
		if err := change(p); err != nil {
			return err
		}
		if err := tx.SavePosting(p); err != nil {
			return err
		}
		posting = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("posting "+op,
		zap.Uint("posting_id", postingID),
		zap.String("status", posting.Status),
		zap.String("admin_id", adminID.String()),
	)
	return &posting, nil
}

// ListNotifications returns withdrawal notifications, newest first
func (e *Engine) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	if filter.Status != "" && !slices.Contains([]string{
		model.NotificationStatusPending,
		model.NotificationStatusApproved,
		model.NotificationStatusDeclined,
	}, filter.Status) {
		return nil, validation("unknown notification status %q", filter.Status)
	}
	notifications, err := e.store.ListNotifications(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification as seen. It is allowed in every status.
func (e *Engine) MarkNotificationRead(ctx context.Context, id uint) (*model.Notification, error) {
	var notification model.Notification
	err := e.run(ctx, "mark_notification_read", func(tx Tx) error {
		n, err := tx.GetNotification(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("notification %d not found", id)
			}
			return err
		}
		// resolution writes the same row under the posting lock
		if _, err := lockPosting(tx, n.PostingID); err != nil {
			return err
		}
		if n, err = tx.GetNotification(id); err != nil {
			return err
		}

		n.Read = true
		if err := tx.SaveNotification(n); err != nil {
			return err
		}
		notification = *n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &notification, nil
}
