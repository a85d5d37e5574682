package dto

import (
	"time"

	"github.com/witos44/UserAuthSystem/app/entity"
)

// SignInResult is returned by every successful sign-in regardless of provider.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *entity.Account
}

// Principal is the authenticated caller: the account and the session whose
// token authorized the request.
type Principal struct {
	Account *entity.Account
	Session *entity.Session
}
