// Package identity answers one question for the rest of the system: which
// user, if any, is behind this request. Cart mirroring and per-user voucher
// limits only apply when there is an answer.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNoSession          = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const sessionTTL = 30 * 24 * time.Hour

type PGSessions struct{ db *pgxpool.Pool }

func NewPGSessions(db *pgxpool.Pool) *PGSessions { return &PGSessions{db: db} }

// Resolve maps a session token to its user id. Expired tokens resolve to
// ErrNoSession, not an error the caller should surface.
func (r *PGSessions) Resolve(ctx context.Context, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var userID string
	err := r.db.QueryRow(ctx, `
		SELECT user_id FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoSession
		}
		return "", err
	}
	return userID, nil
}

// Login verifies the credentials against the customers table and issues a
// fresh session token.
func (r *PGSessions) Login(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var userID, hash string
	err := r.db.QueryRow(ctx, `
		SELECT id, password_hash FROM customers WHERE email = $1
	`, email).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !CheckPassword(hash, password) {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	_, err = r.db.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`, token, userID, time.Now().Add(sessionTTL))
	if err != nil {
		return "", err
	}
	return token, nil
}
