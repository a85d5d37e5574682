package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/witos44/UserAuthSystem/app/entity"
)

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sessions (id, account_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

// FindByToken returns the session for token only while it has not expired.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*entity.Session, error) {
	query := `
		SELECT id, account_id, token, expires_at, created_at
		FROM sessions WHERE token = ? AND expires_at > ?
		LIMIT 1
	`
	s := &entity.Session{}
	err := r.db.QueryRowContext(ctx, query, token, time.Now()).Scan(
		&s.ID,
		&s.AccountID,
		&s.Token,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	query := `DELETE FROM sessions WHERE token = ?`
	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SessionRepository) DeleteByAccountID(ctx context.Context, accountID string) (int64, error) {
	query := `DELETE FROM sessions WHERE account_id = ?`
	result, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= ?`
	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
