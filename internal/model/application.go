package model

import (
	"time"

	"github.com/google/uuid"
)

// Application status constants
const (
	// ApplicationStatusPending indicates that the application waits for an administrator decision
	ApplicationStatusPending = "pending"
	// ApplicationStatusApproved indicates that the candidate was accepted for the posting
	ApplicationStatusApproved = "approved"
	// ApplicationStatusDeclined indicates that the application was declined, manually or by cascade
	ApplicationStatusDeclined = "declined"
	// ApplicationStatusCompleted indicates that the engagement finished
	ApplicationStatusCompleted = "completed"
	// ApplicationStatusWithdrawalRequested indicates that the candidate asked to leave and an administrator has to decide
	ApplicationStatusWithdrawalRequested = "withdrawal-requested"
	// ApplicationStatusWithdrawn indicates that the withdrawal was ratified
	ApplicationStatusWithdrawn = "withdrawn"
)

// Application is one candidate's bid on one posting
type Application struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PostingID   uint      `gorm:"not null;uniqueIndex:idx_application_posting_candidate" json:"posting_id"`
	Posting     Posting   `gorm:"foreignKey:PostingID;references:ID" json:"-"`
	CandidateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_application_posting_candidate;index" json:"candidate_id"`
	Candidate   User      `gorm:"foreignKey:CandidateID;references:ID" json:"-"`

	Status    string    `gorm:"type:text;not null;index" json:"status"`
	AppliedAt time.Time `gorm:"type:timestamp;not null" json:"applied_at"`
	Message   string    `gorm:"type:text" json:"message"`

	DeclineReason string `gorm:"type:text" json:"decline_reason,omitempty"`
	AutoDeclined  bool   `gorm:"not null;default:false" json:"auto_declined"`

	// StatusBeforeWithdrawal is the status a rejected withdrawal request reverts to
	StatusBeforeWithdrawal string     `gorm:"type:text" json:"status_before_withdrawal,omitempty"`
	WithdrawalRequestedAt  *time.Time `gorm:"type:timestamp" json:"withdrawal_requested_at,omitempty"`
	WithdrawalRequestedBy  *uuid.UUID `gorm:"type:uuid" json:"withdrawal_requested_by,omitempty"`
	WithdrawalNote         string     `gorm:"type:varchar(500)" json:"withdrawal_note,omitempty"`
	WithdrawalApprovedAt   *time.Time `gorm:"type:timestamp" json:"withdrawal_approved_at,omitempty"`
	WithdrawalApprovedBy   *uuid.UUID `gorm:"type:uuid" json:"withdrawal_approved_by,omitempty"`
	WithdrawalRejectedAt   *time.Time `gorm:"type:timestamp" json:"withdrawal_rejected_at,omitempty"`
	WithdrawalRejectedBy   *uuid.UUID `gorm:"type:uuid" json:"withdrawal_rejected_by,omitempty"`
	WithdrawalAdminNote    string     `gorm:"type:text" json:"withdrawal_admin_note,omitempty"`

	CompletedAt *time.Time `gorm:"type:timestamp" json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether no transition leaves the current status
func (a *Application) IsTerminal() bool {
	switch a.Status {
	case ApplicationStatusDeclined, ApplicationStatusCompleted, ApplicationStatusWithdrawn:
		return true
	}
	return false
}

// HoldsMatch reports whether this record is the accepted candidate of its posting.
// A pending withdrawal request of an approved record still holds the match.
func (a *Application) HoldsMatch() bool {
	if a.Status == ApplicationStatusApproved {
		return true
	}
	return a.Status == ApplicationStatusWithdrawalRequested && a.StatusBeforeWithdrawal == ApplicationStatusApproved
}

// ApplicationFilter narrows application listings
type ApplicationFilter struct {
	Status       string
	CandidateID  *uuid.UUID
	AutoDeclined *bool
}

// Match reports whether the record passes the filter
func (f ApplicationFilter) Match(a *Application) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.CandidateID != nil && a.CandidateID != *f.CandidateID {
		return false
	}
	if f.AutoDeclined != nil && a.AutoDeclined != *f.AutoDeclined {
		return false
	}
	return true
}
