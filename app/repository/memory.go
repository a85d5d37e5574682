package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/witos44/UserAuthSystem/app/entity"
)

// MemoryStore keeps accounts and sessions in process memory. It enforces the
// same unique keys as the MySQL schema and serialises every operation behind
// one mutex, which makes the consume operations trivially atomic.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*entity.Account
	sessions map[string]*entity.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*entity.Account),
		sessions: make(map[string]*entity.Session),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for expiry checks.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

func (m *MemoryStore) PingContext(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Accounts() *MemoryAccountRepository {
	return &MemoryAccountRepository{store: m}
}

func (m *MemoryStore) Sessions() *MemorySessionRepository {
	return &MemorySessionRepository{store: m}
}

type MemoryAccountRepository struct {
	store *MemoryStore
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *entity.Account) error {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := m.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	if _, ok := m.accounts[account.ID]; ok {
		return fmt.Errorf("%w: id", ErrDuplicate)
	}
	if err := m.checkUniqueLocked(account); err != nil {
		return err
	}

	m.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool { return a.ID == id }), nil
}

func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool { return a.Email == email }), nil
}

func (r *MemoryAccountRepository) FindByGoogleID(_ context.Context, googleID string) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool { return a.GoogleID.Valid && a.GoogleID.String == googleID }), nil
}

func (r *MemoryAccountRepository) FindByGithubID(_ context.Context, githubID string) (*entity.Account, error) {
	return r.find(func(a *entity.Account) bool { return a.GithubID.Valid && a.GithubID.String == githubID }), nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, id string, upd entity.AccountUpdate) (*entity.Account, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	if upd.IsEmpty() {
		return cloneAccount(current), nil
	}

	next := cloneAccount(current)
	if upd.Email != nil {
		next.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		next.PasswordHash = sql.NullString{String: *upd.PasswordHash, Valid: true}
	}
	if upd.FirstName != nil {
		next.FirstName = sql.NullString{String: *upd.FirstName, Valid: true}
	}
	if upd.LastName != nil {
		next.LastName = sql.NullString{String: *upd.LastName, Valid: true}
	}
	if upd.ProfileImageURL != nil {
		next.ProfileImageURL = sql.NullString{String: *upd.ProfileImageURL, Valid: true}
	}
	if upd.GoogleID != nil {
		next.GoogleID = sql.NullString{String: *upd.GoogleID, Valid: true}
	}
	if upd.GithubID != nil {
		next.GithubID = sql.NullString{String: *upd.GithubID, Valid: true}
	}
	if err := m.checkUniqueLocked(next); err != nil {
		return nil, err
	}

	next.UpdatedAt = m.now()
	m.accounts[id] = next
	return cloneAccount(next), nil
}

// Delete removes the account and, like the foreign key in the SQL schema,
// every session it owns.
func (r *MemoryAccountRepository) Delete(_ context.Context, id string) error {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.accounts, id)
	for token, s := range m.sessions {
		if s.AccountID == id {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (r *MemoryAccountRepository) SetVerificationToken(_ context.Context, id, token string) error {
	return r.mutate(id, func(a *entity.Account) {
		a.EmailVerificationToken = sql.NullString{String: token, Valid: true}
	})
}

func (r *MemoryAccountRepository) ConsumeVerificationToken(_ context.Context, token string) (*entity.Account, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.EmailVerificationToken.Valid && a.EmailVerificationToken.String == token {
			a.EmailVerified = true
			a.EmailVerificationToken = sql.NullString{}
			a.UpdatedAt = m.now()
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (r *MemoryAccountRepository) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return r.mutate(id, func(a *entity.Account) {
		a.PasswordResetToken = sql.NullString{String: token, Valid: true}
		a.PasswordResetExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
	})
}

func (r *MemoryAccountRepository) ConsumeResetToken(_ context.Context, token, passwordHash string) (*entity.Account, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, a := range m.accounts {
		if !a.PasswordResetToken.Valid || a.PasswordResetToken.String != token {
			continue
		}
		if !a.PasswordResetExpiresAt.Valid || !a.PasswordResetExpiresAt.Time.After(now) {
			return nil, nil
		}
		a.PasswordHash = sql.NullString{String: passwordHash, Valid: true}
		a.PasswordResetToken = sql.NullString{}
		a.PasswordResetExpiresAt = sql.NullTime{}
		a.UpdatedAt = now
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (r *MemoryAccountRepository) find(match func(*entity.Account) bool) *entity.Account {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if match(a) {
			return cloneAccount(a)
		}
	}
	return nil
}

func (r *MemoryAccountRepository) mutate(id string, apply func(*entity.Account)) error {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.accounts[id]
	if !ok {
		return nil
	}
	next := cloneAccount(current)
	apply(next)
	if err := m.checkUniqueLocked(next); err != nil {
		return err
	}
	next.UpdatedAt = m.now()
	m.accounts[id] = next
	return nil
}

func (m *MemoryStore) checkUniqueLocked(candidate *entity.Account) error {
	for id, a := range m.accounts {
		if id == candidate.ID {
			continue
		}
		switch {
		case a.Email == candidate.Email:
			return fmt.Errorf("%w: email", ErrDuplicate)
		case sameNullString(a.EmailVerificationToken, candidate.EmailVerificationToken):
			return fmt.Errorf("%w: email_verification_token", ErrDuplicate)
		case sameNullString(a.PasswordResetToken, candidate.PasswordResetToken):
			return fmt.Errorf("%w: password_reset_token", ErrDuplicate)
		case sameNullString(a.GoogleID, candidate.GoogleID):
			return fmt.Errorf("%w: google_id", ErrDuplicate)
		case sameNullString(a.GithubID, candidate.GithubID):
			return fmt.Errorf("%w: github_id", ErrDuplicate)
		}
	}
	return nil
}

type MemorySessionRepository struct {
	store *MemoryStore
}

func (r *MemorySessionRepository) Create(_ context.Context, session *entity.Session) error {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = m.now()
	}
	if _, ok := m.accounts[session.AccountID]; !ok {
		return fmt.Errorf("session owner %s does not exist", session.AccountID)
	}

	s := *session
	m.sessions[s.Token] = &s
	return nil
}

func (r *MemorySessionRepository) FindByToken(_ context.Context, token string) (*entity.Session, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || !s.ActiveAt(m.now()) {
		return nil, nil
	}
	found := *s
	return &found, nil
}

func (r *MemorySessionRepository) DeleteByToken(_ context.Context, token string) (int64, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[token]; !ok {
		return 0, nil
	}
	delete(m.sessions, token)
	return 1, nil
}

func (r *MemorySessionRepository) DeleteByAccountID(_ context.Context, accountID string) (int64, error) {
	return r.deleteWhere(func(s *entity.Session) bool { return s.AccountID == accountID }), nil
}

func (r *MemorySessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	now := r.store.clock()
	return r.deleteWhere(func(s *entity.Session) bool { return !s.ActiveAt(now) }), nil
}

func (r *MemorySessionRepository) deleteWhere(match func(*entity.Session) bool) int64 {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for token, s := range m.sessions {
		if match(s) {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

func (m *MemoryStore) clock() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now()
}

func sameNullString(a, b sql.NullString) bool {
	return a.Valid && b.Valid && a.String == b.String
}

func cloneAccount(a *entity.Account) *entity.Account {
	c := *a
	return &c
}
