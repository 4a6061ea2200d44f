package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Posting status constants
const (
	PostingStatusOpen    = "open"
	PostingStatusHold    = "hold"
	PostingStatusMatched = "matched"
	PostingStatusClosed  = "closed"
)

// Posting kind constants
const (
	PostingKindTutoring = "tutoring"
	PostingKindProject  = "project"
)

// EditablePostingInfo is the part of a posting the requester provides
type EditablePostingInfo struct {
	Kind        string         `gorm:"type:text;not null" json:"kind" binding:"required,oneof=tutoring project"`
	Title       string         `gorm:"type:text;not null" json:"title" binding:"required"`
	Description string         `gorm:"type:text" json:"description"`
	Subject     string         `gorm:"type:text" json:"subject"`
	Location    string         `gorm:"type:text" json:"location"`
	Budget      string         `gorm:"type:text" json:"budget"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
}

// Posting is a request for service that candidates apply to
type Posting struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index;<-:create" json:"owner_id"`
	Owner   User      `gorm:"foreignKey:OwnerID;references:ID" json:"-"`
	EditablePostingInfo

	Status string `gorm:"type:text;not null;default:'open';index" json:"status"`
	// StatusBeforeHold is the status restored when a hold is lifted
	StatusBeforeHold string         `gorm:"type:text" json:"status_before_hold,omitempty"`
	Candidates       pq.StringArray `gorm:"type:text[]" json:"candidates"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AddCandidate appends the candidate to the ordered candidate list once.
func (p *Posting) AddCandidate(candidateID uuid.UUID) {
	id := candidateID.String()
	if slices.Contains(p.Candidates, id) {
		return
	}
	p.Candidates = append(p.Candidates, id)
}

// IsOverlay reports whether the posting is under an administrative overlay
func (p *Posting) IsOverlay() bool {
	return p.Status == PostingStatusHold || p.Status == PostingStatusClosed
}

// PostingFilter narrows posting listings
type PostingFilter struct {
	Status  string
	Kind    string
	OwnerID *uuid.UUID
	Search  string
}

// Match reports whether the posting passes the filter
func (f PostingFilter) Match(p *Posting) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
