// File: internal/user/model.go
package user

import (
	"time"
)

// User is the persisted profile of an authenticated identity, keyed by the provider uid.
type User struct {
	UID       string    `gorm:"column:uid;primaryKey;type:varchar(128)" bson:"uid"`
	Email     string    `gorm:"column:email;type:varchar(255)" bson:"email,omitempty"`
	UserName  string    `gorm:"column:user_name;type:varchar(100)" bson:"userName"`
	CreatedAt time.Time `gorm:"column:created_at;not null;<-:create" bson:"createdAt"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Outcome tags what a provisioning call did with the store.
type Outcome int

const (
	// OutcomeCreated means a new profile row was inserted.
	OutcomeCreated Outcome = iota + 1
	// OutcomeAlreadyExists means a profile for the uid was already stored.
	OutcomeAlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// ProvisionResult is the tagged result of CreateProfile and FindOrCreateProfile.
type ProvisionResult struct {
	Outcome Outcome
	Profile *User
}

// --- DTOs for API requests/responses ---

// CreateProfileRequest is the body of POST /api/users.
type CreateProfileRequest struct {
	UserName string `json:"userName" binding:"max=100"`
}

// GoogleLoginRequest is the body of POST /api/users/google.
type GoogleLoginRequest struct {
	UserName string `json:"userName" binding:"max=100"`
	Email    string `json:"email" binding:"omitempty,email,max=255"`
}

// ProfileResponse defines the structure for profile data sent in API responses.
type ProfileResponse struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
}

// GoogleLoginResponse is the body returned by POST /api/users/google.
type GoogleLoginResponse struct {
	Message string          `json:"message"`
	User    ProfileResponse `json:"user"`
}

// ProtectedResponse is the body returned by GET /api/protected.
type ProtectedResponse struct {
	Message  string `json:"message"`
	UID      string `json:"uid"`
	UserName string `json:"userName,omitempty"`
}

// ToProfileResponse converts a User model to a ProfileResponse DTO.
func ToProfileResponse(u *User) ProfileResponse {
	return ProfileResponse{
		UID:       u.UID,
		Email:     u.Email,
		UserName:  u.UserName,
		CreatedAt: u.CreatedAt,
	}
}
