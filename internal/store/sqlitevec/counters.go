package sqlitevec

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"feedcore/internal/model"
)

// Increment adds delta to a content fingerprint field and returns the new value.
//
// Popularity changes also move the row's demotion, so a negative delta keeps
// applying to later fingerprint rebuilds and a positive one pays it back.
func (d *DB) Increment(ctx context.Context, contentID, field string, delta float64) (float64, error) {
	var q string
	switch field {
	case model.FieldPopularity:
		q = `UPDATE content_fingerprints
		SET popularity = MAX(0, popularity + ?1), demotion = MAX(0, demotion - ?1)
		WHERE content_id=?2 RETURNING popularity`
	case model.FieldFreshness:
		q = `UPDATE content_fingerprints SET freshness = MAX(0.1, MIN(1.0, freshness + ?1)) WHERE content_id=?2 RETURNING freshness`
	default:
		return 0, unknownField(field)
	}
	return d.updateReturning(ctx, q, contentID, field, delta)
}

// Decrement subtracts delta from a field, floored at the field's minimum.
func (d *DB) Decrement(ctx context.Context, contentID, field string, delta float64) (float64, error) {
	return d.Increment(ctx, contentID, field, -delta)
}

// Scale multiplies a field by factor, clamped to the field's range. Freshness
// scaling is remembered as a factor applied to every later rebuild.
func (d *DB) Scale(ctx context.Context, contentID, field string, factor float64) (float64, error) {
	var q string
	switch field {
	case model.FieldPopularity:
		q = `UPDATE content_fingerprints SET popularity = MAX(0, popularity * ?1) WHERE content_id=?2 RETURNING popularity`
	case model.FieldFreshness:
		q = `UPDATE content_fingerprints
		SET freshness = MAX(0.1, MIN(1.0, freshness * ?1)), freshness_factor = MAX(0.1, MIN(1.0, freshness_factor * ?1))
		WHERE content_id=?2 RETURNING freshness`
	default:
		return 0, unknownField(field)
	}
	return d.updateReturning(ctx, q, contentID, field, factor)
}

func (d *DB) updateReturning(ctx context.Context, q, contentID, field string, arg float64) (float64, error) {
	var v float64
	if err := d.sql.QueryRowContext(ctx, q, arg, contentID).Scan(&v); err != nil {
		return 0, storeErr(err, "failed to update fingerprint field", goerr.V("content_id", contentID), goerr.V("field", field))
	}
	return v, nil
}

func unknownField(field string) error {
	return goerr.Wrap(model.ErrValidation, "unknown counter field", goerr.V("field", field))
}
