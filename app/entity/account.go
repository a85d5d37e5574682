package entity

import (
	"database/sql"
	"time"
)

// Provider names an authentication method an account can sign in with.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

type Account struct {
	ID                     string
	Email                  string
	PasswordHash           sql.NullString
	FirstName              sql.NullString
	LastName               sql.NullString
	ProfileImageURL        sql.NullString
	EmailVerified          bool
	EmailVerificationToken sql.NullString
	PasswordResetToken     sql.NullString
	PasswordResetExpiresAt sql.NullTime
	GoogleID               sql.NullString
	GithubID               sql.NullString
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (a *Account) HasPassword() bool {
	return a.PasswordHash.Valid && a.PasswordHash.String != ""
}

func (a *Account) HasGoogleAuth() bool {
	return a.GoogleID.Valid && a.GoogleID.String != ""
}

func (a *Account) HasGithubAuth() bool {
	return a.GithubID.Valid && a.GithubID.String != ""
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Email           *string
	PasswordHash    *string
	FirstName       *string
	LastName        *string
	ProfileImageURL *string
	GoogleID        *string
	GithubID        *string
}

func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.FirstName == nil && u.LastName == nil &&
		u.ProfileImageURL == nil && u.GoogleID == nil && u.GithubID == nil
}

type Session struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ActiveAt reports whether the session still authorizes requests at t.
func (s *Session) ActiveAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}
