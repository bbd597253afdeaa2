package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// DuplicateRecord is a stored duplicate conflict awaiting review.
type DuplicateRecord struct {
	ID             uuid.UUID                 `json:"id"`
	ExamID         string                    `json:"exam_id,omitempty"`
	BiomarkerName  string                    `json:"biomarker_name"`
	ConflictType   string                    `json:"conflict_type"`
	Values         []biomarker.ConflictValue `json:"values"`
	Resolved       bool                      `json:"resolved"`
	ResolutionNote string                    `json:"resolution_notes,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// DuplicateRepository keeps the duplicate review queue.
type DuplicateRepository struct {
	executor queryExecutor
	log      logging.Logger
	opts     options
}

// NewDuplicateRepository returns a repository on conn.
func NewDuplicateRepository(conn *postgres.Connection, log logging.Logger, opts ...Option) *DuplicateRepository {
	return &DuplicateRepository{executor: conn.DB(), log: logging.OrNop(log), opts: buildOptions(opts)}
}

// SaveConflicts queues every conflict of one exam in a single INSERT.
func (r *DuplicateRepository) SaveConflicts(ctx context.Context, examID string, conflicts []biomarker.DuplicateConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(conflicts)*4)
	for _, c := range conflicts {
		values, err := json.Marshal(c.Values)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode conflict values")
		}
		args = append(args, nullString(examID), c.BiomarkerName, c.ConflictType, values)
	}

	start := time.Now()
	_, err := r.executor.ExecContext(ctx,
		"INSERT INTO biomarker_duplicates (exam_id, biomarker_name, conflict_type, conflicting_values) VALUES "+
			placeholders(len(conflicts), 4), args...)
	r.opts.observe("save_duplicates", start, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save duplicate conflicts")
	}
	r.log.Debug("duplicate conflicts queued", logging.String("exam_id", examID), logging.Int("count", len(conflicts)))
	return nil
}

// ListUnresolved returns up to limit unresolved conflicts, oldest first.
func (r *DuplicateRepository) ListUnresolved(ctx context.Context, limit int) ([]DuplicateRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	rows, err := r.executor.QueryContext(ctx, `
		SELECT id, COALESCE(exam_id, ''), biomarker_name, conflict_type, conflicting_values,
		       resolved, COALESCE(resolution_notes, ''), created_at
		FROM biomarker_duplicates
		WHERE NOT resolved
		ORDER BY created_at
		LIMIT $1`, limit)
	r.opts.observe("list_duplicates", start, err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list duplicate conflicts")
	}
	defer rows.Close()

	out := make([]DuplicateRecord, 0)
	for rows.Next() {
		rec, err := scanDuplicate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate duplicate conflicts")
	}
	return out, nil
}

// Resolve marks a conflict reviewed.
func (r *DuplicateRepository) Resolve(ctx context.Context, id uuid.UUID, notes string) error {
	start := time.Now()
	res, err := r.executor.ExecContext(ctx,
		`UPDATE biomarker_duplicates SET resolved = TRUE, resolution_notes = $2 WHERE id = $1`, id, nullString(notes))
	r.opts.observe("resolve_duplicate", start, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to resolve duplicate conflict")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("duplicate conflict " + id.String())
	}
	return nil
}

func scanDuplicate(s scanner) (DuplicateRecord, error) {
	var (
		rec DuplicateRecord
		raw []byte
	)
	if err := s.Scan(&rec.ID, &rec.ExamID, &rec.BiomarkerName, &rec.ConflictType, &raw,
		&rec.Resolved, &rec.ResolutionNote, &rec.CreatedAt); err != nil {
		return rec, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan duplicate conflict")
	}
	if err := json.Unmarshal(raw, &rec.Values); err != nil {
		return rec, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode conflict values")
	}
	return rec, nil
}
