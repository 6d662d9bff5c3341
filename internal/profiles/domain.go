package profiles

import "errors"

// User is a library member able to take loans.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Grade     string `json:"grade,omitempty"`
}

// FullName returns the display name.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// Group is a set of users sharing loan conditions (e.g. a school class).
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AdditionalEmail is an extra address tied to a user, optionally receiving
// notifications.
type AdditionalEmail struct {
	ID                   int64  `json:"id"`
	UserID               int64  `json:"user_id"`
	Email                string `json:"email"`
	ReceiveNotifications bool   `json:"receive_notifications"`
}

// UserInput carries fields for creating or updating a user.
type UserInput struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Grade     string  `json:"grade"`
	GroupIDs  []int64 `json:"group_ids"`
}

// ErrUserNotFound indicates the user does not exist.
var ErrUserNotFound = errors.New("profiles: user not found")
