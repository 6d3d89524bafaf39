package repository

import (
	"context"
	"time"

	"github.com/jgorset/fandjango/internal/domain"
)

// UserRepository exposes persistence for Facebook users.
type UserRepository interface {
	GetByFacebookID(ctx context.Context, facebookID string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) error
	SetAuthorized(ctx context.Context, facebookID string, authorized bool) error
	Touch(ctx context.Context, userID int64, seenAt time.Time) error
}

// TokenRepository handles OAuth token persistence. Each user owns exactly one
// token row at a time.
type TokenRepository interface {
	Get(ctx context.Context, id int64) (domain.OAuthToken, error)
	Create(ctx context.Context, token domain.OAuthToken) (domain.OAuthToken, error)
	Update(ctx context.Context, token domain.OAuthToken) error
	Delete(ctx context.Context, id int64) error
}
