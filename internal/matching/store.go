package matching

import (
	"context"

	"github.com/google/uuid"

	"AOTF-backend/internal/model"
)

// Store persists postings, applications, archive entries and notifications.
//
// Read methods run as single snapshots and never observe a partially applied unit of work.
// Implementations return ErrNotFound, ErrDuplicate and ErrConflict (possibly wrapped) so the
// engine can classify failures.
type Store interface {
	// Atomic runs fn as one all-or-nothing unit of work. When fn returns an error nothing
	// it wrote is kept.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	GetPosting(ctx context.Context, id uint) (*model.Posting, error)
	ListPostings(ctx context.Context, filter model.PostingFilter) ([]model.Posting, error)
	GetApplication(ctx context.Context, id uint) (*model.Application, error)
	ListApplications(ctx context.Context, postingID uint, filter model.ApplicationFilter) ([]model.Application, error)
	ListCandidateApplications(ctx context.Context, candidateID uuid.UUID) ([]model.Application, error)
	ListArchive(ctx context.Context, postingID uint) ([]model.ArchiveEntry, error)
	ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error)
}

// Tx is the view of the store inside Atomic
type Tx interface {
	// LockPosting loads the posting and holds it exclusively until the unit of work ends.
	LockPosting(id uint) (*model.Posting, error)
	CreatePosting(p *model.Posting) error
	SavePosting(p *model.Posting) error

	GetApplication(id uint) (*model.Application, error)
	// ListApplications returns the posting's records ordered by applied time.
	ListApplications(postingID uint, filter model.ApplicationFilter) ([]model.Application, error)
	CreateApplication(a *model.Application) error
	SaveApplication(a *model.Application) error

	CreateArchiveEntry(e *model.ArchiveEntry) error

	GetNotification(id uint) (*model.Notification, error)
	// PendingNotification returns the unresolved notification of an application.
	PendingNotification(applicationID uint) (*model.Notification, error)
	CreateNotification(n *model.Notification) error
	SaveNotification(n *model.Notification) error
}
