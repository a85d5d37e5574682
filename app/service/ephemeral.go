package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/witos44/UserAuthSystem/app/entity"
)

const ephemeralTokenBytes = 32

type ephemeralTokenStore interface {
	SetVerificationToken(ctx context.Context, id, token string) error
	ConsumeVerificationToken(ctx context.Context, token string) (*entity.Account, error)
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, token, passwordHash string) (*entity.Account, error)
}

// EphemeralTokenManager issues and consumes the single-use email verification
// and password reset tokens stored on accounts.
type EphemeralTokenManager struct {
	store    ephemeralTokenStore
	resetTTL time.Duration
	now      func() time.Time
}

func NewEphemeralTokenManager(store ephemeralTokenStore, resetTTL time.Duration) *EphemeralTokenManager {
	return &EphemeralTokenManager{
		store:    store,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// NewToken returns 32 random bytes, hex encoded.
func (m *EphemeralTokenManager) NewToken() (string, error) {
	buf := make([]byte, ephemeralTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// IssueVerification replaces any outstanding verification token for the account.
func (m *EphemeralTokenManager) IssueVerification(ctx context.Context, accountID string) (string, error) {
	token, err := m.NewToken()
	if err != nil {
		return "", err
	}
	if err = m.store.SetVerificationToken(ctx, accountID, token); err != nil {
		return "", err
	}
	return token, nil
}

func (m *EphemeralTokenManager) ConsumeVerification(ctx context.Context, token string) (*entity.Account, error) {
	if token == "" {
		return nil, nil
	}
	return m.store.ConsumeVerificationToken(ctx, token)
}

// IssueReset replaces any outstanding reset token; the new one expires after the reset TTL.
func (m *EphemeralTokenManager) IssueReset(ctx context.Context, accountID string) (string, error) {
	token, err := m.NewToken()
	if err != nil {
		return "", err
	}
	if err = m.store.SetResetToken(ctx, accountID, token, m.now().Add(m.resetTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func (m *EphemeralTokenManager) ConsumeReset(ctx context.Context, token, passwordHash string) (*entity.Account, error) {
	if token == "" {
		return nil, nil
	}
	return m.store.ConsumeResetToken(ctx, token, passwordHash)
}
