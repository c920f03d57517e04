package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUniqueViolation
	}
	return err
}

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS metafield_rules (
    id               BIGSERIAL PRIMARY KEY,
    collection_title TEXT NOT NULL,
    namespace        TEXT NOT NULL,
    key              TEXT NOT NULL,
    type             TEXT NOT NULL DEFAULT 'single_line_text_field',
    value            TEXT NOT NULL,
    owner_resource   TEXT NOT NULL DEFAULT 'product',
    condition        TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ DEFAULT NOW(),
    updated_at       TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS metafield_logs (
    id         BIGSERIAL PRIMARY KEY,
    rule_id    BIGINT REFERENCES metafield_rules(id) ON DELETE SET NULL,
    product_id TEXT NOT NULL,
    status     TEXT NOT NULL,
    message    TEXT,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_metafield_logs_created ON metafield_logs(created_at DESC);

CREATE TABLE IF NOT EXISTS shop_sessions (
    id           TEXT PRIMARY KEY,
    shop         TEXT NOT NULL,
    access_token TEXT NOT NULL,
    scope        TEXT NOT NULL DEFAULT '',
    expires_at   TIMESTAMPTZ,
    created_at   TIMESTAMPTZ DEFAULT NOW(),
    updated_at   TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_shop_sessions_shop ON shop_sessions(shop);

CREATE TABLE IF NOT EXISTS _users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    active        BOOLEAN DEFAULT true,
    created_at    TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _refresh_tokens (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES _users(id) ON DELETE CASCADE,
    token      TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token ON _refresh_tokens(token);
`
