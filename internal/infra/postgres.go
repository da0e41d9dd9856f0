package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

func NewPgxPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgxpool: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Tables holds quoted, prefixed table names.
type Tables struct {
	Posts    string
	PostMeta string
	Options  string
}

func NewTables(prefix string) Tables {
	return Tables{
		Posts:    pq.QuoteIdentifier(prefix + "posts"),
		PostMeta: pq.QuoteIdentifier(prefix + "postmeta"),
		Options:  pq.QuoteIdentifier(prefix + "options"),
	}
}

func (t Tables) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + t.Posts + ` (
			id             BIGSERIAL PRIMARY KEY,
			post_type      TEXT NOT NULL DEFAULT 'post',
			post_title     TEXT NOT NULL DEFAULT '',
			post_excerpt   TEXT NOT NULL DEFAULT '',
			post_mime_type TEXT NOT NULL DEFAULT '',
			guid           TEXT NOT NULL DEFAULT '',
			file_path      TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + t.PostMeta + ` (
			meta_id    BIGSERIAL PRIMARY KEY,
			post_id    BIGINT NOT NULL,
			meta_key   TEXT NOT NULL,
			meta_value TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(unquote(t.PostMeta)+"_post_key") +
			` ON ` + t.PostMeta + ` (post_id, meta_key)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Options + ` (
			option_name  TEXT PRIMARY KEY,
			option_value TEXT NOT NULL DEFAULT ''
		)`,
	}
}

// EnsureSchema creates the tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, t Tables) error {
	for _, stmt := range t.schema() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}

// PoolStats reports connection counters for support diagnostics.
func PoolStats(pool *pgxpool.Pool) func() map[string]any {
	return func() map[string]any {
		s := pool.Stat()
		return map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
			"max_conns":      s.MaxConns(),
		}
	}
}
