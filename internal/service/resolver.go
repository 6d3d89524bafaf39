package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jgorset/fandjango/internal/adapter/graph"
	"github.com/jgorset/fandjango/internal/domain"
	"github.com/jgorset/fandjango/internal/repository"
)

// TokenMaterial carries fresh credential fields from a verified request.
type TokenMaterial struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt *time.Time
	// Exchanged marks material produced by a web OAuth code exchange. When
	// the stored token differs, the old row is superseded (new row created,
	// old row deleted) instead of overwritten in place.
	Exchanged bool
}

// Resolver maps verified Facebook identities onto persistent users.
type Resolver struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	graph     graph.Client
	snowflake *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewResolver wires dependencies.
func NewResolver(users repository.UserRepository, tokens repository.TokenRepository, client graph.Client, node *snowflake.Node, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:     users,
		tokens:    tokens,
		graph:     client,
		snowflake: node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/jgorset/fandjango/internal/service"),
	}
}

// Resolve finds or creates the user behind a verified Facebook id and reports
// whether the user is new. First-time resolution persists the token, creates
// the user, and synchronizes the profile from the Graph API; that fetch is
// mandatory and its failure propagates. Repeat resolution refreshes
// last-seen and authorization state and folds in fresh token material.
func (r *Resolver) Resolve(ctx context.Context, facebookID string, material *TokenMaterial) (*domain.User, bool, error) {
	ctx, span := r.startSpan(ctx, "Resolver.Resolve")
	defer span.End()

	user, err := r.users.GetByFacebookID(ctx, facebookID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			created, err := r.register(ctx, facebookID, material)
			if err != nil {
				span.RecordError(err)
				return nil, false, err
			}
			r.logger.Info("registered facebook user", zap.String("facebook_id", facebookID), zap.Int64("user_id", created.ID))
			return created, true, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("resolve user: %w", err)
	}

	user.LastSeenAt = time.Now()

	// Without fresh credentials (a session restore) only the last-seen
	// timestamp moves; authorization state is refreshed when the viewer
	// actually re-presents a credential.
	if material == nil {
		if err := r.users.Touch(ctx, user.ID, user.LastSeenAt); err != nil {
			span.RecordError(err)
			return nil, false, fmt.Errorf("touch user: %w", err)
		}
		return &user, false, nil
	}

	user.Authorized = true
	if err := r.refreshToken(ctx, &user, material); err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if err := r.users.Update(ctx, user); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("refresh user: %w", err)
	}
	return &user, false, nil
}

// ResolveExchanged identifies the viewer behind freshly exchanged token
// material: the web OAuth flow carries no user id, so the Graph API is asked
// who the token belongs to before resolving.
func (r *Resolver) ResolveExchanged(ctx context.Context, material *TokenMaterial) (*domain.User, bool, error) {
	ctx, span := r.startSpan(ctx, "Resolver.ResolveExchanged")
	defer span.End()

	profile, err := r.graph.FetchProfile(ctx, material.Token)
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("identify token owner: %w", err)
	}
	return r.Resolve(ctx, profile.ID, material)
}

// register persists the token and user for a first authorization.
func (r *Resolver) register(ctx context.Context, facebookID string, material *TokenMaterial) (*domain.User, error) {
	if material == nil || material.Token == "" {
		return nil, fmt.Errorf("register %s: no token material", facebookID)
	}

	token, err := r.tokens.Create(ctx, domain.OAuthToken{
		ID:        r.snowflake.Generate().Int64(),
		Token:     material.Token,
		IssuedAt:  material.IssuedAt,
		ExpiresAt: material.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("register token: %w", err)
	}

	now := time.Now()
	user, err := r.users.Create(ctx, domain.User{
		ID:           r.snowflake.Generate().Int64(),
		FacebookID:   facebookID,
		Authorized:   true,
		OAuthTokenID: token.ID,
		CreatedAt:    now,
		LastSeenAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	if err := r.Synchronize(ctx, &user, material.Token); err != nil {
		return nil, err
	}
	return &user, nil
}

// refreshToken folds fresh token material into the stored credential. Canvas
// re-authorizations overwrite the row in place; a web re-login through a
// different code supersedes it so no orphaned credential rows remain.
func (r *Resolver) refreshToken(ctx context.Context, user *domain.User, material *TokenMaterial) error {
	stored, err := r.tokens.Get(ctx, user.OAuthTokenID)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenNotFound) {
			return fmt.Errorf("load stored token: %w", err)
		}
		created, err := r.tokens.Create(ctx, domain.OAuthToken{
			ID:        r.snowflake.Generate().Int64(),
			Token:     material.Token,
			IssuedAt:  material.IssuedAt,
			ExpiresAt: material.ExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("recreate token: %w", err)
		}
		user.OAuthTokenID = created.ID
		return nil
	}

	if material.Exchanged && stored.Token != material.Token {
		created, err := r.tokens.Create(ctx, domain.OAuthToken{
			ID:        r.snowflake.Generate().Int64(),
			Token:     material.Token,
			IssuedAt:  material.IssuedAt,
			ExpiresAt: material.ExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("supersede token: %w", err)
		}
		previousID := stored.ID
		user.OAuthTokenID = created.ID
		if err := r.users.Update(ctx, *user); err != nil {
			return fmt.Errorf("repoint user token: %w", err)
		}
		if err := r.tokens.Delete(ctx, previousID); err != nil {
			return fmt.Errorf("delete superseded token: %w", err)
		}
		return nil
	}

	stored.Token = material.Token
	stored.IssuedAt = material.IssuedAt
	stored.ExpiresAt = material.ExpiresAt
	if err := r.tokens.Update(ctx, stored); err != nil {
		return fmt.Errorf("overwrite token: %w", err)
	}
	return nil
}

// Synchronize copies profile attributes from the Graph API onto the user.
// Re-running with identical source data is a no-op; absent optional fields
// leave the stored values untouched.
func (r *Resolver) Synchronize(ctx context.Context, user *domain.User, accessToken string) error {
	ctx, span := r.startSpan(ctx, "Resolver.Synchronize")
	defer span.End()

	profile, err := r.graph.FetchProfile(ctx, accessToken)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("synchronize profile: %w", err)
	}

	if profile.FirstName != "" {
		user.FirstName = profile.FirstName
	}
	if profile.LastName != "" {
		user.LastName = profile.LastName
	}
	if profile.Link != "" {
		user.ProfileURL = profile.Link
	}
	if profile.Gender != "" {
		user.Gender = profile.Gender
	}
	if profile.Locale != "" {
		user.Locale = profile.Locale
	}
	if profile.Email != "" {
		user.Email = profile.Email
	}
	user.Verified = profile.Verified

	if err := r.users.Update(ctx, *user); err != nil {
		span.RecordError(err)
		return fmt.Errorf("persist profile: %w", err)
	}
	return nil
}

// Deauthorize marks the user as no longer authorizing the application.
// Unknown users and repeat calls are no-ops; Facebook retries the webhook on
// failure, so this must stay idempotent.
func (r *Resolver) Deauthorize(ctx context.Context, facebookID string) error {
	ctx, span := r.startSpan(ctx, "Resolver.Deauthorize")
	defer span.End()

	if err := r.users.SetAuthorized(ctx, facebookID, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deauthorize %s: %w", facebookID, err)
	}
	return nil
}

// UserByFacebookID loads a user without mutating freshness state.
func (r *Resolver) UserByFacebookID(ctx context.Context, facebookID string) (*domain.User, error) {
	user, err := r.users.GetByFacebookID(ctx, facebookID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// TokenByID loads a stored credential for session validation.
func (r *Resolver) TokenByID(ctx context.Context, id int64) (*domain.OAuthToken, error) {
	token, err := r.tokens.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *Resolver) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name)
}
