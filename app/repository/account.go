package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/witos44/UserAuthSystem/app/entity"
)

const accountColumns = `id, email, password_hash, first_name, last_name, profile_image_url, email_verified,
		       email_verification_token, password_reset_token, password_reset_expires_at,
		       google_id, github_id, created_at, updated_at`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	query := `
		INSERT INTO accounts (id, email, password_hash, first_name, last_name, profile_image_url, email_verified,
		                      email_verification_token, password_reset_token, password_reset_expires_at,
		                      google_id, github_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		account.ProfileImageURL,
		account.EmailVerified,
		account.EmailVerificationToken,
		account.PasswordResetToken,
		account.PasswordResetExpiresAt,
		account.GoogleID,
		account.GithubID,
		account.CreatedAt,
		account.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *AccountRepository) FindByGoogleID(ctx context.Context, googleID string) (*entity.Account, error) {
	return r.findOne(ctx, "google_id = ?", googleID)
}

func (r *AccountRepository) FindByGithubID(ctx context.Context, githubID string) (*entity.Account, error) {
	return r.findOne(ctx, "github_id = ?", githubID)
}

// Update applies the non-nil fields of upd and returns the stored account,
// or nil if no account has the given id.
func (r *AccountRepository) Update(ctx context.Context, id string, upd entity.AccountUpdate) (*entity.Account, error) {
	if upd.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	var sets []string
	var args []any
	set := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}
	set("email", upd.Email)
	set("password_hash", upd.PasswordHash)
	set("first_name", upd.FirstName)
	set("last_name", upd.LastName)
	set("profile_image_url", upd.ProfileImageURL)
	set("google_id", upd.GoogleID)
	set("github_id", upd.GithubID)
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapWriteError(err)
	}

	return r.FindByID(ctx, id)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM accounts WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *AccountRepository) SetVerificationToken(ctx context.Context, id, token string) error {
	query := `UPDATE accounts SET email_verification_token = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, token, time.Now(), id)
	return mapWriteError(err)
}

// ConsumeVerificationToken marks the owning account verified and clears the
// token. The clearing UPDATE is conditional on the token still being present,
// so of two concurrent calls at most one returns an account.
func (r *AccountRepository) ConsumeVerificationToken(ctx context.Context, token string) (*entity.Account, error) {
	account, err := r.findOne(ctx, "email_verification_token = ?", token)
	if err != nil || account == nil {
		return nil, err
	}

	now := time.Now()
	query := `
		UPDATE accounts SET email_verified = ?, email_verification_token = NULL, updated_at = ?
		WHERE id = ? AND email_verification_token = ?
	`
	result, err := r.db.ExecContext(ctx, query, true, now, account.ID, token)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, nil
	}

	account.EmailVerified = true
	account.EmailVerificationToken = sql.NullString{}
	account.UpdatedAt = now
	return account, nil
}

func (r *AccountRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	query := `UPDATE accounts SET password_reset_token = ?, password_reset_expires_at = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, token, expiresAt, time.Now(), id)
	return mapWriteError(err)
}

// ConsumeResetToken replaces the password hash if token matches and has not
// expired, clearing the token and its expiry in the same statement.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string) (*entity.Account, error) {
	account, err := r.findOne(ctx, "password_reset_token = ?", token)
	if err != nil || account == nil {
		return nil, err
	}

	now := time.Now()
	query := `
		UPDATE accounts SET password_hash = ?, password_reset_token = NULL, password_reset_expires_at = NULL, updated_at = ?
		WHERE id = ? AND password_reset_token = ? AND password_reset_expires_at > ?
	`
	result, err := r.db.ExecContext(ctx, query, passwordHash, now, account.ID, token, now)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, nil
	}

	account.PasswordHash = sql.NullString{String: passwordHash, Valid: true}
	account.PasswordResetToken = sql.NullString{}
	account.PasswordResetExpiresAt = sql.NullTime{}
	account.UpdatedAt = now
	return account, nil
}

func (r *AccountRepository) findOne(ctx context.Context, where string, arg any) (*entity.Account, error) {
	query := "SELECT " + accountColumns + "\n\t\tFROM accounts WHERE " + where
	account := &entity.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&account.ProfileImageURL,
		&account.EmailVerified,
		&account.EmailVerificationToken,
		&account.PasswordResetToken,
		&account.PasswordResetExpiresAt,
		&account.GoogleID,
		&account.GithubID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}
