package types

import (
	"database/sql"

	"github.com/witos44/UserAuthSystem/app/entity"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// AccountView is the public projection of an account.
type AccountView struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	ProfileImageURL *string `json:"profileImageUrl"`
	EmailVerified   bool    `json:"emailVerified"`
}

func NewAccountView(account *entity.Account) AccountView {
	return AccountView{
		ID:              account.ID,
		Email:           account.Email,
		FirstName:       optional(account.FirstName),
		LastName:        optional(account.LastName),
		ProfileImageURL: optional(account.ProfileImageURL),
		EmailVerified:   account.EmailVerified,
	}
}

type LoginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    AccountView `json:"user"`
}

// UserResponse is the full view served to the account owner.
type UserResponse struct {
	AccountView
	HasPassword   bool `json:"hasPassword"`
	HasGoogleAuth bool `json:"hasGoogleAuth"`
	HasGithubAuth bool `json:"hasGithubAuth"`
}

func NewUserResponse(account *entity.Account) UserResponse {
	return UserResponse{
		AccountView:   NewAccountView(account),
		HasPassword:   account.HasPassword(),
		HasGoogleAuth: account.HasGoogleAuth(),
		HasGithubAuth: account.HasGithubAuth(),
	}
}

type ProfileResponse struct {
	Message string      `json:"message"`
	User    AccountView `json:"user"`
}

func optional(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
