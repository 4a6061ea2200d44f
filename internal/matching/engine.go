// Package matching owns the application lifecycle: it is the only code that changes the status of
// an application, it approves one candidate per posting and auto-declines the others in the same
// unit of work, and it archives every application that leaves the active pipeline.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"AOTF-backend/internal/declineref"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/notify"
)

// DefaultMaxRetries is how many times a unit of work is repeated after a write conflict
const DefaultMaxRetries = 3

const (
	defaultBackoff = 25 * time.Millisecond

	maxMessageLength        = 2000
	maxDeclineReasonLength  = 1000
	maxWithdrawalNoteLength = 500
	maxAdminNoteLength      = 1000
)

// Engine runs every state change of postings, applications and withdrawal notifications
type Engine struct {
	store      Store
	publisher  notify.Publisher
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPublisher sets where committed withdrawal events go. The default logs them.
func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxRetries sets how many times a conflicting unit of work is retried
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n < 0 {
			n = 0
		}
		e.maxRetries = n
	}
}

// WithBackoff sets the base wait between retries. Attempt n waits n times the base.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.backoff = d
	}
}

// NewEngine creates an Engine on top of store
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.publisher == nil {
		e.publisher = notify.NewLogPublisher(e.logger)
	}
	return e
}

// ApproveResult is returned by Approve
type ApproveResult struct {
	ApplicationID     uint              `json:"application_id"`
	AutoDeclinedCount int               `json:"auto_declined_count"`
	Application       model.Application `json:"application"`
}

// run executes fn atomically and repeats it when the store reports a write conflict.
// fn must reset anything it reports to the caller, since it can run more than once.
func (e *Engine) run(ctx context.Context, op string, fn func(tx Tx) error) error {
	attempts := e.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := e.store.Atomic(ctx, fn)
		if err == nil {
			return nil
		}

		var engineErr *Error
		if errors.As(err, &engineErr) {
			return engineErr
		}
		if !errors.Is(err, ErrConflict) {
			return e.classify(op, err)
		}

		lastErr = err
		e.logger.Warn("write conflict",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * e.backoff):
		}
	}

	e.logger.Error("giving up after write conflicts", zap.String("op", op), zap.Int("attempts", attempts))
	return persistenceConflict(attempts, lastErr)
}

func (e *Engine) classify(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "referenced record not found", Err: err}
	case errors.Is(err, ErrDuplicate):
		return &Error{Kind: KindValidation, Message: "record already exists", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// lockApplication loads the application and locks its posting. The record is read again after the
// lock is held so no concurrent writer can change it until the unit of work ends.
func lockApplication(tx Tx, id uint) (*model.Application, *model.Posting, error) {
	app, err := tx.GetApplication(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, notFound("application %d not found", id)
		}
		return nil, nil, err
	}

	posting, err := tx.LockPosting(app.PostingID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, notFound("posting %d not found", app.PostingID)
		}
		return nil, nil, err
	}

	app, err = tx.GetApplication(id)
	if err != nil {
		return nil, nil, err
	}
	return app, posting, nil
}

// notPending is the error for a decision on a record that already left pending
func notPending(app *model.Application) *Error {
	if app.IsTerminal() {
		return invalidTransition(app.Status, "application %d was already resolved", app.ID)
	}
	return invalidTransition(app.Status, "application %d is no longer pending", app.ID)
}

func lockPosting(tx Tx, id uint) (*model.Posting, error) {
	posting, err := tx.LockPosting(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("posting %d not found", id)
		}
		return nil, err
	}
	return posting, nil
}

func archive(tx Tx, app model.Application, actor *uuid.UUID, at time.Time) error {
	entry, err := model.NewArchiveEntry(app, actor, at)
	if err != nil {
		return fmt.Errorf("building archive entry for application %d: %w", app.ID, err)
	}
	if err := tx.CreateArchiveEntry(&entry); err != nil {
		return fmt.Errorf("archiving application %d: %w", app.ID, err)
	}
	return nil
}

// autoDecline declines a record because another one was accepted for the same posting
func autoDecline(tx Tx, app *model.Application, accepted *model.Application, posting *model.Posting, at time.Time) error {
	app.Status = model.ApplicationStatusDeclined
	app.AutoDeclined = true
	app.DeclineReason = autoDeclineReason(accepted, posting)
	if err := tx.SaveApplication(app); err != nil {
		return err
	}
	return archive(tx, *app, nil, at)
}

func autoDeclineReason(accepted *model.Application, posting *model.Posting) string {
	return "Another candidate (application " + strconv.FormatUint(uint64(accepted.ID), 10) +
		") was accepted for " + declineref.Format(posting.ID, posting.Title) +
		". Your application was closed automatically."
}

// Apply submits a candidate's application to an open posting
func (e *Engine) Apply(ctx context.Context, postingID uint, candidateID uuid.UUID, message string) (*model.Application, error) {
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, validation("message must be at most %d characters", maxMessageLength)
	}

	var app model.Application
	err := e.run(ctx, "apply", func(tx Tx) error {
		posting, err := lockPosting(tx, postingID)
		if err != nil {
			return err
		}
		if posting.Status != model.PostingStatusOpen {
			return invalidTransition(posting.Status, "posting %d is not accepting applications", postingID)
		}

		existing, err := tx.ListApplications(postingID, model.ApplicationFilter{CandidateID: &candidateID})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return validation("candidate already applied to posting %d", postingID)
		}

		app = model.Application{
			PostingID:   postingID,
			CandidateID: candidateID,
			Status:      model.ApplicationStatusPending,
			AppliedAt:   e.now(),
			Message:     message,
		}
		if err := tx.CreateApplication(&app); err != nil {
			switch {
			case errors.Is(err, ErrDuplicate):
				return validation("candidate already applied to posting %d", postingID)
			case errors.Is(err, ErrNotFound):
				return notFound("candidate %s not found", candidateID)
			}
			return err
		}

		posting.AddCandidate(candidateID)
		return tx.SavePosting(posting)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("application submitted",
		zap.Uint("application_id", app.ID),
		zap.Uint("posting_id", postingID),
		zap.String("candidate_id", candidateID.String()),
	)
	return &app, nil
}

// Approve accepts the application, declines every other pending application of the posting and
// marks the posting matched, all in one unit of work.
func (e *Engine) Approve(ctx context.Context, applicationID uint, adminID uuid.UUID) (*ApproveResult, error) {
	var result ApproveResult
	err := e.run(ctx, "approve", func(tx Tx) error {
		result = ApproveResult{ApplicationID: applicationID}

		app, posting, err := lockApplication(tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationStatusPending {
			return notPending(app)
		}
		if posting.IsOverlay() {
			return invalidTransition(posting.Status, "posting %d is %s", posting.ID, posting.Status)
		}

		siblings, err := tx.ListApplications(posting.ID, model.ApplicationFilter{})
		if err != nil {
			return err
		}
		for _, s := range siblings {
			if s.ID != app.ID && s.HoldsMatch() {
				return invalidTransition(model.PostingStatusMatched,
					"posting %d already has an accepted candidate (application %d)", posting.ID, s.ID)
			}
		}
		if posting.Status == model.PostingStatusMatched {
			return invalidTransition(posting.Status, "posting %d is already matched", posting.ID)
		}

		now := e.now()
		app.Status = model.ApplicationStatusApproved
		if err := tx.SaveApplication(app); err != nil {
			return err
		}

		for i := range siblings {
			s := &siblings[i]
			if s.ID == app.ID || s.Status != model.ApplicationStatusPending {
				continue
			}
			if err := autoDecline(tx, s, app, posting, now); err != nil {
				return err
			}
			result.AutoDeclinedCount++
		}

		setMatchState(posting, model.PostingStatusMatched)
		if err := tx.SavePosting(posting); err != nil {
			return err
		}

		result.Application = *app
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("application approved",
		zap.Uint("application_id", applicationID),
		zap.Uint("posting_id", result.Application.PostingID),
		zap.Int("auto_declined", result.AutoDeclinedCount),
		zap.String("admin_id", adminID.String()),
	)
	return &result, nil
}

// Decline rejects a pending application. The reason is stored as given and may carry posting
// reference tokens. The posting status is not touched.
func (e *Engine) Decline(ctx context.Context, applicationID uint, reason string, adminID uuid.UUID) (*model.Application, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validation("decline reason is required")
	}
	if utf8.RuneCountInString(reason) > maxDeclineReasonLength {
		return nil, validation("decline reason must be at most %d characters", maxDeclineReasonLength)
	}

	var declined model.Application
	err := e.run(ctx, "decline", func(tx Tx) error {
		app, _, err := lockApplication(tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationStatusPending {
			return notPending(app)
		}

		app.Status = model.ApplicationStatusDeclined
		app.AutoDeclined = false
		app.DeclineReason = reason
		if err := tx.SaveApplication(app); err != nil {
			return err
		}
		if err := archive(tx, *app, &adminID, e.now()); err != nil {
			return err
		}

		declined = *app
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("application declined",
		zap.Uint("application_id", applicationID),
		zap.Uint("posting_id", declined.PostingID),
		zap.String("admin_id", adminID.String()),
	)
	return &declined, nil
}

// Complete marks an approved engagement as finished and closes the posting
func (e *Engine) Complete(ctx context.Context, applicationID uint, adminID uuid.UUID) (*model.Application, error) {
	var completed model.Application
	err := e.run(ctx, "complete", func(tx Tx) error {
		app, posting, err := lockApplication(tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationStatusApproved {
			return invalidTransition(app.Status, "only approved applications can be completed")
		}

		now := e.now()
		app.Status = model.ApplicationStatusCompleted
		app.CompletedAt = &now
		if err := tx.SaveApplication(app); err != nil {
			return err
		}

		posting.Status = model.PostingStatusClosed
		posting.StatusBeforeHold = ""
		if err := tx.SavePosting(posting); err != nil {
			return err
		}

		completed = *app
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("application completed",
		zap.Uint("application_id", applicationID),
		zap.Uint("posting_id", completed.PostingID),
		zap.String("admin_id", adminID.String()),
	)
	return &completed, nil
}

// GetApplication returns one application
func (e *Engine) GetApplication(ctx context.Context, id uint) (*model.Application, error) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("application %d not found", id)
		}
		return nil, fmt.Errorf("loading application %d: %w", id, err)
	}
	return app, nil
}

// ListApplications returns the posting's applications ordered by applied time
func (e *Engine) ListApplications(ctx context.Context, postingID uint, filter model.ApplicationFilter) ([]model.Application, error) {
	if _, err := e.GetPosting(ctx, postingID); err != nil {
		return nil, err
	}
	apps, err := e.store.ListApplications(ctx, postingID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing applications of posting %d: %w", postingID, err)
	}
	return apps, nil
}

// ListCandidateApplications returns everything the candidate applied to, most recent first
func (e *Engine) ListCandidateApplications(ctx context.Context, candidateID uuid.UUID) ([]model.Application, error) {
	apps, err := e.store.ListCandidateApplications(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("listing applications of candidate %s: %w", candidateID, err)
	}
	return apps, nil
}

// ListArchive returns the archive trail of a posting
func (e *Engine) ListArchive(ctx context.Context, postingID uint) ([]model.ArchiveEntry, error) {
	if _, err := e.GetPosting(ctx, postingID); err != nil {
		return nil, err
	}
	entries, err := e.store.ListArchive(ctx, postingID)
	if err != nil {
		return nil, fmt.Errorf("listing archive of posting %d: %w", postingID, err)
	}
	return entries, nil
}
