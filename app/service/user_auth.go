package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/witos44/UserAuthSystem/app/dto"
	"github.com/witos44/UserAuthSystem/app/entity"
	"github.com/witos44/UserAuthSystem/app/repository"
	"github.com/witos44/UserAuthSystem/app/types"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmailTaken          = errors.New("email is already taken")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUnauthorized        = errors.New("authentication required")
	ErrEmailNotVerified    = errors.New("email is not verified")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrAlreadyVerified     = errors.New("email is already verified")
	ErrPasswordNotSet      = errors.New("cannot change password for social auth only accounts")
	ErrPasswordMismatch    = errors.New("current password is incorrect")
	ErrWeakPassword        = errors.New("password does not meet policy requirements")
	ErrIncompleteProfile   = errors.New("provider profile is missing an id or email")
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")
)

const notifyTimeout = 10 * time.Second

type accountRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	Create(ctx context.Context, account *entity.Account) error
	Update(ctx context.Context, id string, upd entity.AccountUpdate) (*entity.Account, error)
}

type sessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByToken(ctx context.Context, token string) (*entity.Session, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByAccountID(ctx context.Context, accountID string) (int64, error)
}

// Credential is what a caller presents to sign in. Provider selects which of
// the remaining fields apply: Email and Password for local sign-in, Profile
// for the OAuth providers.
type Credential struct {
	Provider entity.Provider
	Email    string
	Password string
	Profile  *OAuthProfile
}

func PasswordCredential(email, password string) Credential {
	return Credential{Provider: entity.ProviderLocal, Email: email, Password: password}
}

func OAuthCredential(profile OAuthProfile) Credential {
	return Credential{Provider: profile.Provider, Profile: &profile}
}

type UserAuthService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*entity.Account, error)
	Login(ctx context.Context, req *types.LoginRequest) (*dto.SignInResult, error)
	OAuthCallback(ctx context.Context, profile OAuthProfile) (*dto.SignInResult, error)
	SignIn(ctx context.Context, cred Credential) (*dto.SignInResult, error)
	Authenticate(ctx context.Context, token string) (*dto.Principal, error)
	Logout(ctx context.Context, principal *dto.Principal) error
	CurrentUser(principal *dto.Principal) *entity.Account
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, principal *dto.Principal) error
	ForgotPassword(ctx context.Context, req *types.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error
	UpdateProfile(ctx context.Context, principal *dto.Principal, req *types.UpdateProfileRequest) (*entity.Account, error)
	ChangePassword(ctx context.Context, principal *dto.Principal, req *types.ChangePasswordRequest) error
	RevokeSessions(ctx context.Context, accountID string) (int64, error)
	TokenTTL() time.Duration
}

type AsyncRunner func(task func())

type UserAuthServiceOption func(*userAuthService)

type userAuthService struct {
	accounts accountRepository
	sessions sessionRepository
	hasher   *PasswordHasher
	tokens   *TokenCodec
	ephemera *EphemeralTokenManager
	linker   *IdentityLinker
	notifier Notifier
	policy   config.PasswordPolicy

	asyncRunner AsyncRunner
}

// NewUserAuthService wires the gateway over a single account store. The store
// must also satisfy the ephemeral-token and linker contracts, as both the MySQL
// and in-memory account repositories do.
func NewUserAuthService(
	accounts AccountStore,
	sessions sessionRepository,
	notifier Notifier,
	cfg *config.Config,
	opts ...UserAuthServiceOption,
) UserAuthService {
	svc := &userAuthService{
		accounts: accounts,
		sessions: sessions,
		hasher:   NewPasswordHasher(cfg.Password.BcryptCost),
		tokens:   NewTokenCodec(cfg.JWT.Secret, cfg.JWT.TokenTTL),
		ephemera: NewEphemeralTokenManager(accounts, cfg.Tokens.ResetTTL),
		linker:   NewIdentityLinker(accounts),
		notifier: notifier,
		policy:   cfg.Password.Policy,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// AccountStore is the full account persistence contract the gateway needs.
type AccountStore interface {
	accountRepository
	ephemeralTokenStore
	linkerStore
}

// SessionStore is the session persistence contract shared by the gateway and the sweeper.
type SessionStore interface {
	sessionRepository
	expiredSessionDeleter
}

func WithAsyncRunner(runner AsyncRunner) UserAuthServiceOption {
	return func(s *userAuthService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

// WithClock replaces the time source of the token codec and the reset token expiry.
func WithClock(now func() time.Time) UserAuthServiceOption {
	return func(s *userAuthService) {
		if now != nil {
			s.tokens.now = now
			s.ephemera.now = now
		}
	}
}

func (s *userAuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *userAuthService) Register(ctx context.Context, req *types.RegisterRequest) (*entity.Account, error) {
	email := strings.TrimSpace(req.Email)

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	if err = s.policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	verificationToken, err := s.ephemera.NewToken()
	if err != nil {
		return nil, err
	}

	account := &entity.Account{
		Email:                  email,
		PasswordHash:           sql.NullString{String: hashedPassword, Valid: true},
		FirstName:              nullString(strings.TrimSpace(req.FirstName)),
		LastName:               nullString(strings.TrimSpace(req.LastName)),
		EmailVerified:          false,
		EmailVerificationToken: sql.NullString{String: verificationToken, Valid: true},
	}
	if err = s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.notify(account.Email, verificationToken, s.notifier.SendVerificationEmail)

	return account, nil
}

func (s *userAuthService) Login(ctx context.Context, req *types.LoginRequest) (*dto.SignInResult, error) {
	return s.SignIn(ctx, PasswordCredential(req.Email, req.Password))
}

func (s *userAuthService) OAuthCallback(ctx context.Context, profile OAuthProfile) (*dto.SignInResult, error) {
	return s.SignIn(ctx, OAuthCredential(profile))
}

// SignIn resolves the credential to an account and starts a session for it.
// Every provider ends in the same session issuance.
func (s *userAuthService) SignIn(ctx context.Context, cred Credential) (*dto.SignInResult, error) {
	account, err := s.resolveIdentity(ctx, cred)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, account)
}

func (s *userAuthService) resolveIdentity(ctx context.Context, cred Credential) (*entity.Account, error) {
	switch cred.Provider {
	case entity.ProviderLocal:
		account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(cred.Email))
		if err != nil {
			return nil, err
		}
		if account == nil || !account.HasPassword() {
			return nil, ErrInvalidCredentials
		}
		if !s.hasher.Verify(cred.Password, account.PasswordHash.String) {
			return nil, ErrInvalidCredentials
		}
		return account, nil
	case entity.ProviderGoogle, entity.ProviderGitHub:
		if cred.Profile == nil {
			return nil, ErrIncompleteProfile
		}
		profile := *cred.Profile
		profile.Provider = cred.Provider
		return s.linker.Resolve(ctx, profile)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cred.Provider)
	}
}

func (s *userAuthService) startSession(ctx context.Context, account *entity.Account) (*dto.SignInResult, error) {
	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		AccountID: account.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err = s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &dto.SignInResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}

// Authenticate requires a well-formed token, a live session stored under it
// for the same account, and an existing account.
func (s *userAuthService) Authenticate(ctx context.Context, token string) (*dto.Principal, error) {
	accountID, ok := s.tokens.Parse(token)
	if !ok {
		return nil, ErrUnauthorized
	}

	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || session.AccountID != accountID {
		return nil, ErrUnauthorized
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrUnauthorized
	}

	return &dto.Principal{Account: account, Session: session}, nil
}

func (s *userAuthService) Logout(ctx context.Context, principal *dto.Principal) error {
	_, err := s.sessions.DeleteByToken(ctx, principal.Session.Token)
	return err
}

func (s *userAuthService) CurrentUser(principal *dto.Principal) *entity.Account {
	return principal.Account
}

func (s *userAuthService) VerifyEmail(ctx context.Context, token string) error {
	account, err := s.ephemera.ConsumeVerification(ctx, token)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrInvalidToken
	}
	return nil
}

func (s *userAuthService) ResendVerification(ctx context.Context, principal *dto.Principal) error {
	account := principal.Account
	if account.EmailVerified {
		return ErrAlreadyVerified
	}

	token, err := s.ephemera.IssueVerification(ctx, account.ID)
	if err != nil {
		return err
	}

	s.notify(account.Email, token, s.notifier.SendVerificationEmail)
	return nil
}

// ForgotPassword never reveals whether the email belongs to an account.
func (s *userAuthService) ForgotPassword(ctx context.Context, req *types.ForgotPasswordRequest) error {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	token, err := s.ephemera.IssueReset(ctx, account.ID)
	if err != nil {
		return err
	}

	s.notify(account.Email, token, s.notifier.SendPasswordResetEmail)
	return nil
}

// ResetPassword leaves existing sessions in place.
func (s *userAuthService) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error {
	if err := s.policy.Validate(req.Password); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return err
	}

	account, err := s.ephemera.ConsumeReset(ctx, req.Token, hashedPassword)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrInvalidToken
	}
	return nil
}

func (s *userAuthService) UpdateProfile(ctx context.Context, principal *dto.Principal, req *types.UpdateProfileRequest) (*entity.Account, error) {
	current := principal.Account
	upd := entity.AccountUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != current.Email {
			existing, err := s.accounts.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != current.ID {
				return nil, ErrEmailTaken
			}
			upd.Email = &email
		}
	}

	updated, err := s.accounts.Update(ctx, current.ID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if updated == nil {
		return nil, ErrUnauthorized
	}
	return updated, nil
}

// ChangePassword revokes every session of the account except the caller's,
// which is re-created under the same token and expiry.
func (s *userAuthService) ChangePassword(ctx context.Context, principal *dto.Principal, req *types.ChangePasswordRequest) error {
	account, err := s.accounts.FindByID(ctx, principal.Account.ID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrUnauthorized
	}

	if !account.HasPassword() {
		return ErrPasswordNotSet
	}
	if !s.hasher.Verify(req.CurrentPassword, account.PasswordHash.String) {
		return ErrPasswordMismatch
	}
	if err = s.policy.Validate(req.NewPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if _, err = s.accounts.Update(ctx, account.ID, entity.AccountUpdate{PasswordHash: &hashedPassword}); err != nil {
		return err
	}

	if _, err = s.sessions.DeleteByAccountID(ctx, account.ID); err != nil {
		return err
	}

	return s.sessions.Create(ctx, &entity.Session{
		AccountID: account.ID,
		Token:     principal.Session.Token,
		ExpiresAt: principal.Session.ExpiresAt,
	})
}

// RevokeSessions ends every session of the account.
func (s *userAuthService) RevokeSessions(ctx context.Context, accountID string) (int64, error) {
	return s.sessions.DeleteByAccountID(ctx, accountID)
}

func (s *userAuthService) notify(email, token string, send func(ctx context.Context, email, token string) error) {
	s.asyncRunner(func() {
		notifyCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := send(notifyCtx, email, token); err != nil {
			logrus.WithError(err).WithField("email", email).Error("failed to send notification")
		}
	})
}
