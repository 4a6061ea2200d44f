package model

import (
	"time"

	"github.com/google/uuid"
)

// Role constants
const (
	// RoleCandidate is a service provider (tutor, freelancer) who applies to postings
	RoleCandidate = "candidate"
	// RoleRequester is a guardian or project client who owns postings
	RoleRequester = "requester"
	// RoleAdmin moderates applications and withdrawal requests
	RoleAdmin = "admin"
)

// User is the identity record every role shares
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Username    string    `gorm:"type:text;uniqueIndex;not null" json:"username"`
	Password    string    `gorm:"type:text" json:"-"`
	Role        string    `gorm:"type:text;not null;index" json:"role"`
	Email       *string   `gorm:"type:text" json:"email"`
	DisplayName string    `gorm:"type:text" json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserResponse holds the user and the access token issued on login or registration
type UserResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}
