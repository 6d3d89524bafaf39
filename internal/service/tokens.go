package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jgorset/fandjango/internal/adapter/graph"
	"github.com/jgorset/fandjango/internal/domain"
	"github.com/jgorset/fandjango/internal/repository"
)

// TokenManager models the access credential lifecycle: exchanging
// authorization codes, and extending short-lived tokens to long-lived ones.
type TokenManager struct {
	graph  graph.Client
	tokens repository.TokenRepository
	logger *zap.Logger
	tracer trace.Tracer
}

// NewTokenManager wires dependencies.
func NewTokenManager(client graph.Client, tokens repository.TokenRepository, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		graph:  client,
		tokens: tokens,
		logger: logger,
		tracer: otel.Tracer("github.com/jgorset/fandjango/internal/service"),
	}
}

// Exchange trades an authorization code for token material. Failures here
// mean no identity can be established and propagate to the caller.
func (m *TokenManager) Exchange(ctx context.Context, code, redirectURI string) (*TokenMaterial, error) {
	ctx, span := m.tracer.Start(ctx, "TokenManager.Exchange")
	defer span.End()

	token, err := m.graph.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return materialFrom(token, time.Now(), true), nil
}

// ExtendBestEffort upgrades the user's stored token to a long-lived one via
// the fb_exchange_token grant. Already long-lived tokens are left alone. The
// returned error exists for logging only; callers discard it on purpose since
// extension failures must never abort request handling.
func (m *TokenManager) ExtendBestEffort(ctx context.Context, user *domain.User) error {
	ctx, span := m.tracer.Start(ctx, "TokenManager.ExtendBestEffort")
	defer span.End()

	stored, err := m.tokens.Get(ctx, user.OAuthTokenID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("extend: load token: %w", err)
	}
	if stored.Extended() {
		return nil
	}

	extended, err := m.graph.ExtendToken(ctx, stored.Token)
	if err != nil {
		span.RecordError(err)
		m.logger.Debug("token extension failed",
			zap.String("facebook_id", user.FacebookID),
			zap.Error(err),
		)
		return fmt.Errorf("extend token: %w", err)
	}

	now := time.Now()
	stored.Token = extended.AccessToken
	stored.IssuedAt = now
	stored.ExpiresAt = expiryFrom(extended, now)
	if err := m.tokens.Update(ctx, stored); err != nil {
		span.RecordError(err)
		return fmt.Errorf("extend: persist token: %w", err)
	}
	return nil
}

func materialFrom(token *graph.Token, now time.Time, exchanged bool) *TokenMaterial {
	return &TokenMaterial{
		Token:     token.AccessToken,
		IssuedAt:  now,
		ExpiresAt: expiryFrom(token, now),
		Exchanged: exchanged,
	}
}

func expiryFrom(token *graph.Token, now time.Time) *time.Time {
	if token.Expires == 0 {
		return nil
	}
	at := now.Add(time.Duration(token.Expires) * time.Second)
	return &at
}
