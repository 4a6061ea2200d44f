package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ArchiveEntry is the immutable copy of an application taken when it leaves the active pipeline
type ArchiveEntry struct {
	ID                    uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalApplicationID uint        `gorm:"not null;uniqueIndex;<-:create" json:"original_application_id"`
	OriginalApplication   Application `gorm:"foreignKey:OriginalApplicationID;references:ID" json:"-"`
	PostingID             uint        `gorm:"not null;index;<-:create" json:"posting_id"`
	CandidateID           uuid.UUID   `gorm:"type:uuid;not null;index;<-:create" json:"candidate_id"`

	Status       string     `gorm:"type:text;not null;<-:create" json:"status"`
	Reason       string     `gorm:"type:text;<-:create" json:"reason"`
	AutoDeclined bool       `gorm:"not null;default:false;<-:create" json:"auto_declined"`
	AppliedAt    time.Time  `gorm:"type:timestamp;<-:create" json:"applied_at"`
	ArchivedAt   time.Time  `gorm:"type:timestamp;not null;<-:create" json:"archived_at"`
	ArchivedBy   *uuid.UUID `gorm:"type:uuid;<-:create" json:"archived_by,omitempty"`

	Snapshot datatypes.JSON `gorm:"type:jsonb;<-:create" json:"snapshot"`
}

// NewArchiveEntry copies the record as it is right now. actor is nil for entries written by the cascade.
func NewArchiveEntry(app Application, actor *uuid.UUID, at time.Time) (ArchiveEntry, error) {
	snapshot, err := json.Marshal(app)
	if err != nil {
		return ArchiveEntry{}, err
	}

	reason := app.DeclineReason
	if app.Status == ApplicationStatusWithdrawn {
		reason = app.WithdrawalNote
	}

	return ArchiveEntry{
		OriginalApplicationID: app.ID,
		PostingID:             app.PostingID,
		CandidateID:           app.CandidateID,
		Status:                app.Status,
		Reason:                reason,
		AutoDeclined:          app.AutoDeclined,
		AppliedAt:             app.AppliedAt,
		ArchivedAt:            at,
		ArchivedBy:            actor,
		Snapshot:              datatypes.JSON(snapshot),
	}, nil
}
