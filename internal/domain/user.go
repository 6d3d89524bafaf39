package domain

import "time"

// User represents a Facebook user who has authorized the application.
// Identity is keyed by FacebookID; profile fields are synchronized from the
// Graph API and are not authoritative.
type User struct {
	ID           int64
	FacebookID   string
	FirstName    string
	LastName     string
	ProfileURL   string
	Gender       string
	Locale       string
	Email        string
	Verified     bool
	Authorized   bool
	OAuthTokenID int64
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

// FullName joins the user's first and last names.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
