package sqlitevec

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/model"
)

// PutContent inserts or replaces a content item in the bundled content store.
func (d *DB) PutContent(ctx context.Context, c model.Content) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO content(id, author_id, description, category, like_count, comment_count, created_at)
	VALUES(?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
	  author_id=excluded.author_id,
	  description=excluded.description,
	  category=excluded.category,
	  like_count=excluded.like_count,
	  comment_count=excluded.comment_count,
	  created_at=excluded.created_at`,
		c.ID, c.AuthorID, c.Description, c.Category, c.LikeCount, c.CommentCount, c.CreatedAt.UnixMilli())
	if err != nil {
		return storeErr(err, "failed to put content", goerr.V("content_id", c.ID))
	}
	return nil
}

// GetContent returns the content item, or model.ErrNotFound.
func (d *DB) GetContent(ctx context.Context, id string) (model.Content, error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT id, author_id, description, category, like_count, comment_count, created_at FROM content WHERE id=?`, id)
	c, err := scanContent(row)
	if err != nil {
		return model.Content{}, storeErr(err, "failed to get content", goerr.V("content_id", id))
	}
	return c, nil
}

// ContentExists reports whether the content item exists.
func (d *DB) ContentExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := d.sql.QueryRowContext(ctx, `SELECT 1 FROM content WHERE id=?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "failed to check content", goerr.V("content_id", id))
	}
	return true, nil
}

// ListContent returns content of the category (all categories when empty),
// oldest first.
func (d *DB) ListContent(ctx context.Context, category string) ([]model.Content, error) {
	rows, err := d.sql.QueryContext(ctx, `
	SELECT id, author_id, description, category, like_count, comment_count, created_at
	FROM content WHERE (?='' OR category=?) ORDER BY created_at, id`, category, category)
	if err != nil {
		return nil, storeErr(err, "failed to list content", goerr.V("category", category))
	}
	defer rows.Close()
	var out []model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, storeErr(err, "failed to scan content")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to iterate content")
	}
	return out, nil
}

// ContentIDs returns every content id.
func (d *DB) ContentIDs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id FROM content ORDER BY id`)
	if err != nil {
		return nil, storeErr(err, "failed to list content ids")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err, "failed to scan content id")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to iterate content ids")
	}
	return out, nil
}

// DeleteContent removes the content item, its fingerprint, and every ledger
// entry referencing it in one transaction. It returns the purged entry count.
func (d *DB) DeleteContent(ctx context.Context, id string) (int64, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(err, "failed to begin delete", goerr.V("content_id", id))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM content WHERE id=?`, id)
	if err != nil {
		return 0, storeErr(err, "failed to delete content", goerr.V("content_id", id))
	}
	removed, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM content_fingerprints WHERE content_id=?`, id); err != nil {
		return 0, storeErr(err, "failed to delete content fingerprint", goerr.V("content_id", id))
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM interactions WHERE content_id=?`, id)
	if err != nil {
		return 0, storeErr(err, "failed to purge interactions", goerr.V("content_id", id))
	}
	purged, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, storeErr(err, "failed to commit delete", goerr.V("content_id", id))
	}
	if removed == 0 && purged == 0 {
		return 0, goerr.Wrap(model.ErrNotFound, "content not found", goerr.V("content_id", id))
	}
	return purged, nil
}

// PutUser registers a user id with the bundled identity store.
func (d *DB) PutUser(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO users(id, created_at) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`, id, time.Now().UTC().UnixMilli())
	if err != nil {
		return storeErr(err, "failed to put user", goerr.V("user_id", id))
	}
	return nil
}

// UserExists reports whether the identity store knows the user.
func (d *DB) UserExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := d.sql.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "failed to check user", goerr.V("user_id", id))
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(s scanner) (model.Content, error) {
	var (
		c       model.Content
		created int64
	)
	if err := s.Scan(&c.ID, &c.AuthorID, &c.Description, &c.Category, &c.LikeCount, &c.CommentCount, &created); err != nil {
		return model.Content{}, err
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	return c, nil
}
