package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/witos44/UserAuthSystem/app/entity"
	"github.com/witos44/UserAuthSystem/app/repository"
)

// OAuthProfile is the identity a provider vouches for after a successful code exchange.
type OAuthProfile struct {
	Provider  entity.Provider
	SubjectID string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

type linkerStore interface {
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (*entity.Account, error)
	FindByGithubID(ctx context.Context, githubID string) (*entity.Account, error)
	Create(ctx context.Context, account *entity.Account) error
	Update(ctx context.Context, id string, upd entity.AccountUpdate) (*entity.Account, error)
}

// IdentityLinker maps a provider profile onto exactly one account, linking
// by email when the provider id is new and creating an account otherwise.
type IdentityLinker struct {
	accounts linkerStore
}

func NewIdentityLinker(accounts linkerStore) *IdentityLinker {
	return &IdentityLinker{accounts: accounts}
}

func (l *IdentityLinker) Resolve(ctx context.Context, profile OAuthProfile) (*entity.Account, error) {
	profile.Email = strings.TrimSpace(profile.Email)
	if profile.SubjectID == "" || profile.Email == "" {
		return nil, ErrIncompleteProfile
	}
	if profile.Provider != entity.ProviderGoogle && profile.Provider != entity.ProviderGitHub {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, profile.Provider)
	}

	account, err := l.resolve(ctx, profile)
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent callback created or linked the same identity first
		account, err = l.resolve(ctx, profile)
	}
	return account, err
}

func (l *IdentityLinker) resolve(ctx context.Context, profile OAuthProfile) (*entity.Account, error) {
	account, err := l.findBySubject(ctx, profile)
	if err != nil || account != nil {
		return account, err
	}

	account, err = l.accounts.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	if account != nil {
		upd := subjectUpdate(profile)
		if profile.AvatarURL != "" {
			upd.ProfileImageURL = &profile.AvatarURL
		}
		updated, err := l.accounts.Update(ctx, account.ID, upd)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, fmt.Errorf("account %s disappeared while linking %s", account.ID, profile.Provider)
		}
		return updated, nil
	}

	account = &entity.Account{
		Email:           profile.Email,
		FirstName:       nullString(profile.FirstName),
		LastName:        nullString(profile.LastName),
		ProfileImageURL: nullString(profile.AvatarURL),
		EmailVerified:   true,
	}
	switch profile.Provider {
	case entity.ProviderGoogle:
		account.GoogleID = nullString(profile.SubjectID)
	case entity.ProviderGitHub:
		account.GithubID = nullString(profile.SubjectID)
	}
	if err = l.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (l *IdentityLinker) findBySubject(ctx context.Context, profile OAuthProfile) (*entity.Account, error) {
	if profile.Provider == entity.ProviderGoogle {
		return l.accounts.FindByGoogleID(ctx, profile.SubjectID)
	}
	return l.accounts.FindByGithubID(ctx, profile.SubjectID)
}

func subjectUpdate(profile OAuthProfile) entity.AccountUpdate {
	subject := profile.SubjectID
	if profile.Provider == entity.ProviderGoogle {
		return entity.AccountUpdate{GoogleID: &subject}
	}
	return entity.AccountUpdate{GithubID: &subject}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
