// Package entities contains main entities of service.
package entities

import (
	"time"
)

// User is an authenticated identity returned by the auth endpoint.
type User struct {
	ID    string
	Email string
}

// Profile is a public identity record.
type Profile struct {
	ID          string
	Username    string
	DisplayName string
	Bio         string
	AvatarURL   string
	CreatedAt   time.Time
}

// Post is a piece of user-authored content. Author is joined at read time
// by the data service and may be nil if the join failed.
type Post struct {
	ID        string
	OwnerID   string
	Content   string
	CreatedAt time.Time
	Author    *Profile
}

// Comment belongs to a post. Author is joined at read time.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	Author    *Profile
}
