package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// importBatchSize bounds the rows of one multi-row INSERT.
const importBatchSize = 100

// ImportSummary reports what an import wrote.
type ImportSummary struct {
	Version    string `json:"version"`
	UpdatedAt  string `json:"updated_at,omitempty"`
	Categories int    `json:"categories"`
	Overrides  int    `json:"overrides"`
	Variations int    `json:"variations"`
}

// SpecImporter replaces the override tables with the content of a
// specification.
type SpecImporter struct {
	conn *postgres.Connection
	log  logging.Logger
	opts options
}

// NewSpecImporter returns an importer on conn.
func NewSpecImporter(conn *postgres.Connection, log logging.Logger, opts ...Option) *SpecImporter {
	return &SpecImporter{conn: conn, log: logging.OrNop(log).Named("spec_import"), opts: buildOptions(opts)}
}

type categoryRow struct {
	key   string
	order int
}

type overrideRow struct {
	name, key, category string
	order               int
}

type variationRow struct {
	variation, key, standard, category, unit string
}

// Import checks spec and, in one transaction, clears and refills
// category_display_order, biomarker_category_overrides and
// biomarker_variations.  Nothing is written when spec is inconsistent.
func (i *SpecImporter) Import(ctx context.Context, spec *biomarker.Specification) (*ImportSummary, error) {
	if _, err := normalizer.NewReferenceIndex(spec); err != nil {
		i.record(err)
		return nil, err
	}
	cats, overrides, variations := planImport(spec)

	start := time.Now()
	err := i.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"biomarker_variations", "biomarker_category_overrides", "category_display_order"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return errors.Wrapf(err, errors.ErrCodeSpecificationImport, "failed to clear %s", table)
			}
		}
		if err := insertBatches(ctx, tx, "category_display_order (category_key, display_order)", 2, len(cats),
			func(n int) []interface{} { return []interface{}{cats[n].key, cats[n].order} }); err != nil {
			return err
		}
		if err := insertBatches(ctx, tx, "biomarker_category_overrides (biomarker_name, name_key, category, display_order)", 4, len(overrides),
			func(n int) []interface{} {
				o := overrides[n]
				return []interface{}{o.name, o.key, o.category, o.order}
			}); err != nil {
			return err
		}
		return insertBatches(ctx, tx, "biomarker_variations (variation, variation_key, biomarker_normalized_name, category, unit)", 5, len(variations),
			func(n int) []interface{} {
				v := variations[n]
				return []interface{}{v.variation, v.key, v.standard, nullString(v.category), nullString(v.unit)}
			})
	})
	i.opts.observe("spec_import", start, err)
	i.record(err)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		Version:    spec.Version,
		UpdatedAt:  spec.UpdatedAt,
		Categories: len(cats),
		Overrides:  len(overrides),
		Variations: len(variations),
	}
	i.log.Info("specification imported",
		logging.String("version", summary.Version),
		logging.Int("categories", summary.Categories),
		logging.Int("overrides", summary.Overrides),
		logging.Int("variations", summary.Variations))
	return summary, nil
}

func (i *SpecImporter) record(err error) {
	if i.opts.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	i.opts.metrics.SpecImportsTotal.WithLabelValues(status).Inc()
}

func (i *SpecImporter) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := i.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			i.log.Error("rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// planImport derives the rows to write.  Categories appear in first-seen
// order; a declared category heading supplies its order, otherwise the
// position is used.  A synonym equal to its standard name is skipped.
func planImport(spec *biomarker.Specification) ([]categoryRow, []overrideRow, []variationRow) {
	declared := make(map[string]int, len(spec.Categories))
	for _, c := range spec.Categories {
		declared[strings.TrimSpace(c.Name)] = c.Order
	}

	var (
		cats       []categoryRow
		overrides  []overrideRow
		variations []variationRow
		seen       = make(map[string]bool)
	)
	for pos, b := range spec.Biomarkers {
		category := strings.TrimSpace(b.Category)
		if category != "" && !seen[category] {
			seen[category] = true
			order, ok := declared[category]
			if !ok {
				order = len(cats) + 1
			}
			cats = append(cats, categoryRow{key: category, order: order})
		}

		standard := strings.TrimSpace(b.StandardName)
		overrides = append(overrides, overrideRow{
			name:     standard,
			key:      normalizer.Normalize(standard),
			category: category,
			order:    pos + 1,
		})

		for _, syn := range b.Synonyms {
			syn = strings.TrimSpace(syn)
			if syn == "" || syn == standard {
				continue
			}
			variations = append(variations, variationRow{
				variation: syn,
				key:       normalizer.Normalize(syn),
				standard:  standard,
				category:  category,
				unit:      b.Unit,
			})
		}
	}
	return cats, overrides, variations
}

// insertBatches writes total rows of width columns in INSERTs of at most
// importBatchSize rows.  row(n) returns the arguments of row n.
func insertBatches(ctx context.Context, tx *sql.Tx, target string, width, total int, row func(n int) []interface{}) error {
	for lo := 0; lo < total; lo += importBatchSize {
		hi := lo + importBatchSize
		if hi > total {
			hi = total
		}
		args := make([]interface{}, 0, (hi-lo)*width)
		for n := lo; n < hi; n++ {
			args = append(args, row(n)...)
		}
		query := "INSERT INTO " + target + " VALUES " + placeholders(hi-lo, width)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return errors.Wrapf(err, errors.ErrCodeConflict, "duplicate key importing %s", target)
			}
			return errors.Wrapf(err, errors.ErrCodeSpecificationImport, "failed to insert rows %d-%d into %s", lo+1, hi, target)
		}
	}
	return nil
}
