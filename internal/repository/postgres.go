package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jgorset/fandjango/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository  = (*PostgresUserRepo)(nil)
	_ TokenRepository = (*PostgresTokenRepo)(nil)
)

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, facebook_id, first_name, last_name, profile_url, gender, locale, email, verified, authorized, oauth_token_id, created_at, last_seen_at`

func (r *PostgresUserRepo) GetByFacebookID(ctx context.Context, facebookID string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE facebook_id = $1 LIMIT 1`
	user, err := scanUser(r.db.QueryRow(ctx, query, facebookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
INSERT INTO users (id, facebook_id, first_name, last_name, profile_url, gender, locale, email, verified, authorized, oauth_token_id, created_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.FacebookID, user.FirstName, user.LastName, user.ProfileURL,
		user.Gender, user.Locale, user.Email, user.Verified, user.Authorized,
		user.OAuthTokenID, user.CreatedAt, user.LastSeenAt,
	))
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, user domain.User) error {
	const query = `
UPDATE users
SET first_name = $2, last_name = $3, profile_url = $4, gender = $5, locale = $6,
    email = $7, verified = $8, authorized = $9, oauth_token_id = $10, last_seen_at = $11
WHERE id = $1`

	if _, err := r.db.Exec(ctx, query,
		user.ID, user.FirstName, user.LastName, user.ProfileURL, user.Gender,
		user.Locale, user.Email, user.Verified, user.Authorized,
		user.OAuthTokenID, user.LastSeenAt,
	); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) SetAuthorized(ctx context.Context, facebookID string, authorized bool) error {
	if _, err := r.db.Exec(ctx, `UPDATE users SET authorized = $2 WHERE facebook_id = $1`, facebookID, authorized); err != nil {
		return fmt.Errorf("set authorized: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) Touch(ctx context.Context, userID int64, seenAt time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, userID, seenAt); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.FacebookID, &user.FirstName, &user.LastName, &user.ProfileURL,
		&user.Gender, &user.Locale, &user.Email, &user.Verified, &user.Authorized,
		&user.OAuthTokenID, &user.CreatedAt, &user.LastSeenAt,
	)
	return user, err
}

// PostgresTokenRepo implements TokenRepository. The token column is TEXT;
// access tokens have no documented length bound.
type PostgresTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTokenRepo(pool *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: pool}
}

func (r *PostgresTokenRepo) Get(ctx context.Context, id int64) (domain.OAuthToken, error) {
	var token domain.OAuthToken
	err := r.db.QueryRow(ctx, `SELECT id, token, issued_at, expires_at FROM oauth_tokens WHERE id = $1`, id).
		Scan(&token.ID, &token.Token, &token.IssuedAt, &token.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OAuthToken{}, domain.ErrTokenNotFound
		}
		return domain.OAuthToken{}, fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

func (r *PostgresTokenRepo) Create(ctx context.Context, token domain.OAuthToken) (domain.OAuthToken, error) {
	const query = `
INSERT INTO oauth_tokens (id, token, issued_at, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, token, issued_at, expires_at`

	var created domain.OAuthToken
	if err := r.db.QueryRow(ctx, query, token.ID, token.Token, token.IssuedAt, token.ExpiresAt).
		Scan(&created.ID, &created.Token, &created.IssuedAt, &created.ExpiresAt); err != nil {
		return domain.OAuthToken{}, fmt.Errorf("insert token: %w", err)
	}
	return created, nil
}

func (r *PostgresTokenRepo) Update(ctx context.Context, token domain.OAuthToken) error {
	if _, err := r.db.Exec(ctx, `UPDATE oauth_tokens SET token = $2, issued_at = $3, expires_at = $4 WHERE id = $1`,
		token.ID, token.Token, token.IssuedAt, token.ExpiresAt); err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return nil
}

func (r *PostgresTokenRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
