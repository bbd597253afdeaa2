package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// Override is an admin-entered category for one biomarker name.
type Override struct {
	BiomarkerName string    `json:"biomarker_name"`
	Category      string    `json:"category"`
	DisplayOrder  int       `json:"display_order"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CategoryOrder is the display position of one category heading.
type CategoryOrder struct {
	CategoryKey  string `json:"category_key"`
	DisplayOrder int    `json:"display_order"`
}

// OverrideRepository reads and maintains the override and variation tables.
// Names are matched on their normalized key, so "Glicose" and "GLICOSE"
// address the same row.  It satisfies normalizer.OverrideLookup.
type OverrideRepository struct {
	executor queryExecutor
	log      logging.Logger
	opts     options
}

var _ normalizer.OverrideLookup = (*OverrideRepository)(nil)

// NewOverrideRepository returns a repository on conn.
func NewOverrideRepository(conn *postgres.Connection, log logging.Logger, opts ...Option) *OverrideRepository {
	return &OverrideRepository{
		executor: conn.DB(),
		log:      logging.OrNop(log),
		opts:     buildOptions(opts),
	}
}

// GetOverride returns the category override of name.
func (r *OverrideRepository) GetOverride(ctx context.Context, name string) (string, bool, error) {
	key := normalizer.Normalize(name)
	if key == "" {
		return "", false, nil
	}

	start := time.Now()
	var category string
	err := r.executor.QueryRowContext(ctx,
		`SELECT category FROM biomarker_category_overrides WHERE name_key = $1`, key,
	).Scan(&category)
	r.opts.observe("get_override", start, err)

	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query category override")
	}
	return category, true, nil
}

// GetVariation returns the active variation registered for raw.  When several
// rows share a key the most recently updated wins.
func (r *OverrideRepository) GetVariation(ctx context.Context, raw string) (*biomarker.Variation, bool, error) {
	key := normalizer.Normalize(raw)
	if key == "" {
		return nil, false, nil
	}

	start := time.Now()
	var (
		v        biomarker.Variation
		category sql.NullString
		unit     sql.NullString
	)
	err := r.executor.QueryRowContext(ctx, `
		SELECT biomarker_normalized_name, category, unit
		FROM biomarker_variations
		WHERE variation_key = $1 AND active
		ORDER BY updated_at DESC
		LIMIT 1`, key,
	).Scan(&v.StandardName, &category, &unit)
	r.opts.observe("get_variation", start, err)

	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query biomarker variation")
	}
	v.Category = category.String
	v.Unit = unit.String
	return &v, true, nil
}

// UpsertOverride creates or replaces the override of o.BiomarkerName.
func (r *OverrideRepository) UpsertOverride(ctx context.Context, o Override, createdBy string) error {
	key := normalizer.Normalize(o.BiomarkerName)
	if key == "" || strings.TrimSpace(o.Category) == "" {
		return errors.InvalidParam("biomarker name and category are required")
	}

	start := time.Now()
	_, err := r.executor.ExecContext(ctx, `
		INSERT INTO biomarker_category_overrides (biomarker_name, name_key, category, display_order, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name_key) DO UPDATE
		SET biomarker_name = EXCLUDED.biomarker_name,
		    category = EXCLUDED.category,
		    display_order = EXCLUDED.display_order,
		    updated_at = now()`,
		strings.TrimSpace(o.BiomarkerName), key, strings.TrimSpace(o.Category), o.DisplayOrder, nullString(createdBy))
	r.opts.observe("upsert_override", start, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert category override")
	}
	r.log.Info("category override saved",
		logging.String("biomarker", o.BiomarkerName),
		logging.String("category", o.Category))
	return nil
}

// DeleteOverride removes the override of name.
func (r *OverrideRepository) DeleteOverride(ctx context.Context, name string) error {
	start := time.Now()
	res, err := r.executor.ExecContext(ctx,
		`DELETE FROM biomarker_category_overrides WHERE name_key = $1`, normalizer.Normalize(name))
	r.opts.observe("delete_override", start, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete category override")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("no override for " + name)
	}
	return nil
}

// ListOverrides returns every override in display order.
func (r *OverrideRepository) ListOverrides(ctx context.Context) ([]Override, error) {
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx, `
		SELECT biomarker_name, category, COALESCE(display_order, 0), updated_at
		FROM biomarker_category_overrides
		ORDER BY display_order NULLS LAST, biomarker_name`)
	r.opts.observe("list_overrides", start, err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list category overrides")
	}
	defer rows.Close()

	out := make([]Override, 0)
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.BiomarkerName, &o.Category, &o.DisplayOrder, &o.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan category override")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate category overrides")
	}
	return out, nil
}

// UpsertVariation registers raw as a label of v.StandardName.
func (r *OverrideRepository) UpsertVariation(ctx context.Context, raw string, v biomarker.Variation, createdBy string) error {
	key := normalizer.Normalize(raw)
	if key == "" || strings.TrimSpace(v.StandardName) == "" {
		return errors.InvalidParam("variation and standard name are required")
	}

	start := time.Now()
	res, err := r.executor.ExecContext(ctx, `
		UPDATE biomarker_variations
		SET variation = $2, biomarker_normalized_name = $3, category = $4, unit = $5, active = TRUE, updated_at = now()
		WHERE variation_key = $1`,
		key, strings.TrimSpace(raw), v.StandardName, nullString(v.Category), nullString(v.Unit))
	if err == nil {
		if n, _ := res.RowsAffected(); n == 0 {
			_, err = r.executor.ExecContext(ctx, `
				INSERT INTO biomarker_variations
				    (variation, variation_key, biomarker_normalized_name, category, unit, created_by)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				strings.TrimSpace(raw), key, v.StandardName, nullString(v.Category), nullString(v.Unit), nullString(createdBy))
		}
	}
	r.opts.observe("upsert_variation", start, err)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(err, errors.ErrCodeConflict, "variation already exists")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert biomarker variation")
	}
	return nil
}

// CategoryOrders returns the category display order table.
func (r *OverrideRepository) CategoryOrders(ctx context.Context) ([]CategoryOrder, error) {
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx,
		`SELECT category_key, display_order FROM category_display_order ORDER BY display_order, category_key`)
	r.opts.observe("list_category_order", start, err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list category order")
	}
	defer rows.Close()

	out := make([]CategoryOrder, 0)
	for rows.Next() {
		c, err := scanCategoryOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate category order")
	}
	return out, nil
}

func scanCategoryOrder(s scanner) (CategoryOrder, error) {
	var c CategoryOrder
	if err := s.Scan(&c.CategoryKey, &c.DisplayOrder); err != nil {
		return c, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan category order")
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
