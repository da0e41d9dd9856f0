package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPostRepo reads and writes posts, post meta and options.
type PostgresPostRepo struct {
	pool   *pgxpool.Pool
	tables Tables
}

func NewPostgresPostRepo(pool *pgxpool.Pool, tables Tables) *PostgresPostRepo {
	return &PostgresPostRepo{pool: pool, tables: tables}
}

func (r *PostgresPostRepo) InsertPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	query := `
		INSERT INTO ` + r.tables.Posts + ` (post_type, post_title, post_excerpt, post_mime_type, guid, file_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	row := r.pool.QueryRow(ctx, query,
		post.Type, post.Title, post.Excerpt, post.MimeType, post.GUID, post.FilePath,
	)
	if err := row.Scan(&post.ID, &post.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

func (r *PostgresPostRepo) GetPostByID(ctx context.Context, id int) (*models.Post, error) {
	query := `
		SELECT id, post_type, post_title, post_excerpt, post_mime_type, guid, file_path, created_at
		FROM ` + r.tables.Posts + `
		WHERE id = $1
	`

	var p models.Post

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Type,
		&p.Title,
		&p.Excerpt,
		&p.MimeType,
		&p.GUID,
		&p.FilePath,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post by id: %w", err)
	}

	return &p, nil
}

func (r *PostgresPostRepo) GetPostMeta(ctx context.Context, postID int, key string) (string, bool, error) {
	query := `
		SELECT meta_value
		FROM ` + r.tables.PostMeta + `
		WHERE post_id = $1 AND meta_key = $2
		ORDER BY meta_id ASC
		LIMIT 1
	`
	var value string
	err := r.pool.QueryRow(ctx, query, postID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get post meta: %w", err)
	}
	return value, true, nil
}

// UpdatePostMeta replaces every value of key on the post with value.
func (r *PostgresPostRepo) UpdatePostMeta(ctx context.Context, postID int, key, value string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("update post meta: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE `+r.tables.PostMeta+`
		SET meta_value = $3
		WHERE post_id = $1 AND meta_key = $2
	`, postID, key, value)
	if err != nil {
		return fmt.Errorf("update post meta: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+r.tables.PostMeta+` (post_id, meta_key, meta_value)
			VALUES ($1, $2, $3)
		`, postID, key, value); err != nil {
			return fmt.Errorf("insert post meta: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresPostRepo) ListAssets(ctx context.Context) ([]models.AssetGUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, guid
		FROM `+r.tables.Posts+`
		WHERE post_type = $1
	`, models.PostTypeAttachment)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []models.AssetGUID
	for rows.Next() {
		var a models.AssetGUID
		if err := rows.Scan(&a.ID, &a.GUID); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresPostRepo) ListSourceURLTags(ctx context.Context) ([]models.SourceURLTag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, pm.meta_value
		FROM `+r.tables.Posts+` p
		JOIN `+r.tables.PostMeta+` pm ON p.id = pm.post_id
		WHERE p.post_type = $1 AND pm.meta_key = $2
	`, models.PostTypeAttachment, models.MetaOriginalURL)
	if err != nil {
		return nil, fmt.Errorf("list source url tags: %w", err)
	}
	defer rows.Close()

	var out []models.SourceURLTag
	for rows.Next() {
		var tag models.SourceURLTag
		if err := rows.Scan(&tag.AssetID, &tag.SourceURL); err != nil {
			return nil, fmt.Errorf("scan source url tag: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

func (r *PostgresPostRepo) GetOption(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT option_value FROM `+r.tables.Options+` WHERE option_name = $1`,
		name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get option: %w", err)
	}
	return value, true, nil
}

func (r *PostgresPostRepo) UpdateOption(ctx context.Context, name, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO `+r.tables.Options+` (option_name, option_value)
		VALUES ($1, $2)
		ON CONFLICT (option_name) DO UPDATE SET option_value = EXCLUDED.option_value
	`, name, value)
	if err != nil {
		return fmt.Errorf("update option: %w", err)
	}
	return nil
}

func (r *PostgresPostRepo) DeleteOption(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM `+r.tables.Options+` WHERE option_name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	return nil
}

func (r *PostgresPostRepo) ListOptions(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT option_name, option_value
		FROM `+r.tables.Options+`
		WHERE starts_with(option_name, $1)
		ORDER BY option_name
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}
