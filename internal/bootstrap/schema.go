package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// The token column is TEXT on purpose: Facebook access tokens carry no
// documented length bound and capping them truncates credentials.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS oauth_tokens (
	id          BIGINT PRIMARY KEY,
	token       TEXT NOT NULL,
	issued_at   TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS users (
	id              BIGINT PRIMARY KEY,
	facebook_id     TEXT NOT NULL UNIQUE,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	profile_url     TEXT NOT NULL DEFAULT '',
	gender          TEXT NOT NULL DEFAULT '',
	locale          TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	verified        BOOLEAN NOT NULL DEFAULT FALSE,
	authorized      BOOLEAN NOT NULL DEFAULT TRUE,
	oauth_token_id  BIGINT NOT NULL UNIQUE REFERENCES oauth_tokens (id),
	created_at      TIMESTAMPTZ NOT NULL,
	last_seen_at    TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the users and oauth_tokens tables on startup when they
// do not exist yet.
func EnsureSchema(lc fx.Lifecycle, pool *pgxpool.Pool, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureSchema(ctx, pool, logger)
		},
	})
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	if logger != nil {
		logger.Info("database schema ensured")
	}
	return nil
}
