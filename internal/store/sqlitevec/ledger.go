package sqlitevec

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/model"
)

// AppendInteraction stores one ledger entry. Entries are never updated: a
// repeated id is ignored and reported as not inserted.
func (d *DB) AppendInteraction(ctx context.Context, in model.Interaction) (bool, error) {
	var meta *string
	if len(in.Metadata) > 0 {
		mb, err := json.Marshal(in.Metadata)
		if err != nil {
			return false, goerr.Wrap(model.ErrValidation, "metadata is not JSON-encodable", goerr.V("cause", err.Error()))
		}
		ms := string(mb)
		meta = &ms
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO interactions(id, user_id, content_id, kind, weight, duration, metadata, ts) VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		in.ID, in.UserID, in.ContentID, string(in.Kind), in.Weight, in.Duration, meta, in.Timestamp.UnixMilli())
	if err != nil {
		return false, storeErr(err, "failed to append interaction", goerr.V("user_id", in.UserID), goerr.V("content_id", in.ContentID))
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// InteractionsForUser returns the user's entries with timestamp >= since, oldest first.
func (d *DB) InteractionsForUser(ctx context.Context, userID string, since time.Time) ([]model.Interaction, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, content_id, kind, weight, duration, metadata, ts FROM interactions WHERE user_id=? AND ts>=? ORDER BY ts, seq`,
		userID, since.UnixMilli())
	if err != nil {
		return nil, storeErr(err, "failed to load interactions", goerr.V("user_id", userID))
	}
	return scanInteractions(rows)
}

// GetInteraction returns the ledger entry with the given id, or model.ErrNotFound.
func (d *DB) GetInteraction(ctx context.Context, id string) (model.Interaction, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, content_id, kind, weight, duration, metadata, ts FROM interactions WHERE id=?`, id)
	if err != nil {
		return model.Interaction{}, storeErr(err, "failed to load interaction", goerr.V("interaction_id", id))
	}
	out, err := scanInteractions(rows)
	if err != nil {
		return model.Interaction{}, err
	}
	if len(out) == 0 {
		return model.Interaction{}, storeErr(sql.ErrNoRows, "interaction not found", goerr.V("interaction_id", id))
	}
	return out[0], nil
}

// InteractionsRange returns all entries in [start, end), oldest first.
func (d *DB) InteractionsRange(ctx context.Context, start, end time.Time) ([]model.Interaction, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, content_id, kind, weight, duration, metadata, ts FROM interactions WHERE ts>=? AND ts<? ORDER BY ts, seq`,
		start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, storeErr(err, "failed to load interactions")
	}
	return scanInteractions(rows)
}

// PurgeContentInteractions deletes every entry referencing contentID.
func (d *DB) PurgeContentInteractions(ctx context.Context, contentID string) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM interactions WHERE content_id=?`, contentID)
	if err != nil {
		return 0, storeErr(err, "failed to purge interactions", goerr.V("content_id", contentID))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanInteractions(rows *sql.Rows) ([]model.Interaction, error) {
	defer rows.Close()
	var out []model.Interaction
	for rows.Next() {
		var (
			in       model.Interaction
			kind     string
			duration sql.NullInt64
			meta     sql.NullString
			ts       int64
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.ContentID, &kind, &in.Weight, &duration, &meta, &ts); err != nil {
			return nil, storeErr(err, "failed to scan interaction")
		}
		in.Kind = model.BehaviorKind(kind)
		in.Timestamp = time.UnixMilli(ts).UTC()
		if duration.Valid {
			v := int(duration.Int64)
			in.Duration = &v
		}
		if meta.Valid && meta.String != "" {
			// a corrupt metadata column does not invalidate the entry
			_ = json.Unmarshal([]byte(meta.String), &in.Metadata)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to iterate interactions")
	}
	return out, nil
}

// CountHidesSince counts the user's hide feedback entries with timestamp >= since.
func (d *DB) CountHidesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM interactions
	WHERE user_id=? AND ts>=? AND json_extract(metadata, '$.feedback_kind')=?`,
		userID, since.UnixMilli(), model.FeedbackHide).Scan(&n)
	if err != nil {
		return 0, storeErr(err, "failed to count feedback", goerr.V("user_id", userID))
	}
	return n, nil
}
