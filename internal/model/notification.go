package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotificationTypeWithdrawalRequest = "withdrawal-request"
)

// Notification status constants
const (
	NotificationStatusPending  = "pending"
	NotificationStatusApproved = "approved"
	NotificationStatusDeclined = "declined"
)

// Notification describes a pending administrative action or its resolution
type Notification struct {
	ID            uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          string      `gorm:"type:text;not null;index" json:"type"`
	ApplicationID uint        `gorm:"not null;index" json:"application_id"`
	Application   Application `gorm:"foreignKey:ApplicationID;references:ID" json:"-"`
	CandidateID   uuid.UUID   `gorm:"type:uuid;not null" json:"candidate_id"`
	PostingID     uint        `gorm:"not null;index" json:"posting_id"`

	Note      string `gorm:"type:varchar(500)" json:"note"`
	AdminNote string `gorm:"type:text" json:"admin_note,omitempty"`
	Status    string `gorm:"type:text;not null;default:'pending';index;check:chk_notification_status,status IN ('pending', 'approved', 'declined')" json:"status"`
	Read      bool   `gorm:"not null;default:false" json:"read"`

	CreatedAt  time.Time  `gorm:"type:timestamp;not null" json:"created_at"`
	ResolvedAt *time.Time `gorm:"type:timestamp" json:"resolved_at,omitempty"`
	ResolvedBy *uuid.UUID `gorm:"type:uuid" json:"resolved_by,omitempty"`
}

// Resolve moves a pending notification to its final status
func (n *Notification) Resolve(status string, adminID uuid.UUID, adminNote string, at time.Time) {
	n.Status = status
	n.AdminNote = adminNote
	n.ResolvedAt = &at
	n.ResolvedBy = &adminID
}

// NotificationFilter narrows notification listings
type NotificationFilter struct {
	Status     string
	UnreadOnly bool
}

// Match reports whether the notification passes the filter
func (f NotificationFilter) Match(n *Notification) bool {
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	if f.UnreadOnly && n.Read {
		return false
	}
	return true
}
