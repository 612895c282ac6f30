package entity

import "time"

const (
	RoleBrand   = "brand"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

const (
	UserStatusActive  = "active"
	UserStatusPending = "pending"
	UserStatusBanned  = "banned"
)

// User is the identity record the messaging core reads. Registration and
// approval workflows live elsewhere; the core never writes this entity.
type User struct {
	ID           string    `json:"id" firestore:"id"`
	Username     string    `json:"username" firestore:"username"`
	DisplayLabel string    `json:"display_label" firestore:"displayLabel"` // brand name or creator handle
	Role         string    `json:"role" firestore:"role"`
	Status       string    `json:"status" firestore:"status"`
	AvatarURL    string    `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
