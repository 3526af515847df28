package sqlitevec

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/model"
)

// UpsertContentFingerprint replaces the fingerprint of fp.ContentID. An
// existing row keeps its accumulated demotion: popularity is reduced by it and
// freshness scaled by its freshness factor, so feedback survives rebuilds.
func (d *DB) UpsertContentFingerprint(ctx context.Context, fp model.ContentFingerprint) error {
	tags, hashtags := encodeTags(fp.Tags), encodeTags(fp.Hashtags)
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO content_fingerprints(content_id, vector, tags, hashtags, popularity, freshness, updated_at)
	VALUES(?,?,?,?,?,?,?)
	ON CONFLICT(content_id) DO UPDATE SET
	  vector=excluded.vector,
	  tags=excluded.tags,
	  hashtags=excluded.hashtags,
	  popularity=MAX(0, excluded.popularity - content_fingerprints.demotion),
	  freshness=MAX(0.1, MIN(1.0, excluded.freshness * content_fingerprints.freshness_factor)),
	  updated_at=excluded.updated_at`,
		fp.ContentID, encodeF32(fp.Vector), tags, hashtags,
		model.ClampPopularity(fp.Popularity), model.ClampFreshness(fp.Freshness), fp.UpdatedAt.UnixMilli())
	if err != nil {
		return storeErr(err, "failed to upsert content fingerprint", goerr.V("content_id", fp.ContentID))
	}
	return nil
}

// GetContentFingerprint returns the fingerprint, or model.ErrNotFound.
func (d *DB) GetContentFingerprint(ctx context.Context, contentID string) (model.ContentFingerprint, error) {
	var (
		fp             model.ContentFingerprint
		blob           []byte
		tags, hashtags string
		updated        int64
	)
	err := d.sql.QueryRowContext(ctx, `
	SELECT content_id, vector, tags, hashtags, popularity, freshness, updated_at
	FROM content_fingerprints WHERE content_id=?`, contentID).
		Scan(&fp.ContentID, &blob, &tags, &hashtags, &fp.Popularity, &fp.Freshness, &updated)
	if err != nil {
		return model.ContentFingerprint{}, storeErr(err, "failed to get content fingerprint", goerr.V("content_id", contentID))
	}
	fp.Vector = decodeF32(blob)
	fp.Tags = decodeTags(tags)
	fp.Hashtags = decodeTags(hashtags)
	fp.UpdatedAt = time.UnixMilli(updated).UTC()
	return fp, nil
}

// DeleteContentFingerprint removes a fingerprint. Missing rows are not an error.
func (d *DB) DeleteContentFingerprint(ctx context.Context, contentID string) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM content_fingerprints WHERE content_id=?`, contentID); err != nil {
		return storeErr(err, "failed to delete content fingerprint", goerr.V("content_id", contentID))
	}
	return nil
}

// ContentCandidates returns every fingerprinted content item of the category
// (all categories when empty), ordered by creation time then id. Fingerprints
// whose content no longer exists are not returned.
func (d *DB) ContentCandidates(ctx context.Context, category string) ([]model.Candidate, error) {
	rows, err := d.sql.QueryContext(ctx, `
	SELECT c.id, c.author_id, c.description, c.category, c.like_count, c.comment_count, c.created_at,
	       f.vector, f.tags, f.hashtags, f.popularity, f.freshness, f.updated_at
	FROM content_fingerprints f
	JOIN content c ON c.id = f.content_id
	WHERE (?='' OR c.category=?)
	ORDER BY c.created_at, c.id`, category, category)
	if err != nil {
		return nil, storeErr(err, "failed to load candidates", goerr.V("category", category))
	}
	defer rows.Close()
	var out []model.Candidate
	for rows.Next() {
		var (
			cc               model.Candidate
			created, updated int64
			blob             []byte
			tags, hashtags   string
		)
		c := &cc.Content
		f := &cc.Fingerprint
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.Description, &c.Category, &c.LikeCount, &c.CommentCount, &created,
			&blob, &tags, &hashtags, &f.Popularity, &f.Freshness, &updated); err != nil {
			return nil, storeErr(err, "failed to scan candidate")
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		f.ContentID = c.ID
		f.Vector = decodeF32(blob)
		f.Tags = decodeTags(tags)
		f.Hashtags = decodeTags(hashtags)
		f.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to iterate candidates")
	}
	return out, nil
}

// UpsertUserFingerprint replaces the fingerprint of fp.UserID.
func (d *DB) UpsertUserFingerprint(ctx context.Context, fp model.UserFingerprint) error {
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO user_fingerprints(user_id, vector, interest_tags, category_tags, behavior_count, avg_engagement, updated_at)
	VALUES(?,?,?,?,?,?,?)
	ON CONFLICT(user_id) DO UPDATE SET
	  vector=excluded.vector,
	  interest_tags=excluded.interest_tags,
	  category_tags=excluded.category_tags,
	  behavior_count=excluded.behavior_count,
	  avg_engagement=excluded.avg_engagement,
	  updated_at=excluded.updated_at`,
		fp.UserID, encodeF32(fp.Vector), encodeTags(fp.InterestTags), encodeTags(fp.CategoryTags),
		fp.BehaviorCount, fp.AvgEngagement, fp.UpdatedAt.UnixMilli())
	if err != nil {
		return storeErr(err, "failed to upsert user fingerprint", goerr.V("user_id", fp.UserID))
	}
	return nil
}

// GetUserFingerprint returns the fingerprint, or model.ErrNotFound.
func (d *DB) GetUserFingerprint(ctx context.Context, userID string) (model.UserFingerprint, error) {
	var (
		fp                 model.UserFingerprint
		blob               []byte
		interest, category string
		updated            int64
	)
	err := d.sql.QueryRowContext(ctx, `
	SELECT user_id, vector, interest_tags, category_tags, behavior_count, avg_engagement, updated_at
	FROM user_fingerprints WHERE user_id=?`, userID).
		Scan(&fp.UserID, &blob, &interest, &category, &fp.BehaviorCount, &fp.AvgEngagement, &updated)
	if err != nil {
		return model.UserFingerprint{}, storeErr(err, "failed to get user fingerprint", goerr.V("user_id", userID))
	}
	fp.Vector = decodeF32(blob)
	fp.InterestTags = decodeTags(interest)
	fp.CategoryTags = decodeTags(category)
	fp.UpdatedAt = time.UnixMilli(updated).UTC()
	return fp, nil
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
