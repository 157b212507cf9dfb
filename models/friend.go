package models

import "time"

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusDeclined = "declined"
)

// FriendRequest is a directed edge. A pair of users is "friends" iff an
// accepted edge exists in either direction.
type FriendRequest struct {
	ID        int64     `json:"id"`
	FromUser  int64     `json:"from_user"`
	ToUser    int64     `json:"to_user"`
	Status    string    `json:"status"` // pending, accepted, declined
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FriendRequestWithUser struct {
	FriendRequest
	From UserResponse `json:"from"`
}
