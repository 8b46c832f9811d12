package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// ApplyTarget records which patient a mapping was applied to and the value it replaced.
type ApplyTarget struct {
	PatientID    *uuid.UUID
	CurrentValue *string
}

type FieldMappingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FieldMapping, error)
	ListByResult(ctx context.Context, ocrResultID uuid.UUID) ([]*entity.FieldMapping, error)
	// Apply moves a pending mapping to applied; anything else is InvalidState.
	Apply(ctx context.Context, id uuid.UUID, actorID string, target ApplyTarget) (*entity.FieldMapping, error)
	// Reject moves a pending mapping to rejected; anything else is InvalidState.
	Reject(ctx context.Context, id uuid.UUID, actorID string) (*entity.FieldMapping, error)
}

type fieldMappingRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewFieldMappingRepository(db *DB, logger *slog.Logger) FieldMappingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &fieldMappingRepo{db: db, logger: logger}
}

func insertMappings(ctx context.Context, db *DB, q querier, resultID uuid.UUID, mappings []NewMapping, ts time.Time) error {
	if len(mappings) == 0 {
		return nil
	}
	ib := db.builder().Insert(tableMappings).
		Columns("id", "ocr_result_id", "field_name", "extracted_value", "confidence", "status", "created_at")
	for _, m := range mappings {
		ib = ib.Values(uuid.New(), resultID, string(m.FieldName), m.ExtractedValue,
			nullFloat(m.Confidence), string(constants.MappingPending), ts)
	}
	query, args := ib.Query()
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func (r *fieldMappingRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.FieldMapping, error) {
	q, args := r.db.builder().Select(mappingColumns...).
		From(entsql.Table(tableMappings)).
		Where(entsql.EQ("id", id)).
		Query()
	m, err := scanFieldMapping(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("field mapping", id)
	}
	if err != nil {
		return nil, dbError("get field mapping", err)
	}
	return m, nil
}

func (r *fieldMappingRepo) ListByResult(ctx context.Context, ocrResultID uuid.UUID) ([]*entity.FieldMapping, error) {
	q, args := r.db.builder().Select(mappingColumns...).
		From(entsql.Table(tableMappings)).
		Where(entsql.EQ("ocr_result_id", ocrResultID)).
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError("list field mappings", err)
	}
	defer rows.Close()

	out := []*entity.FieldMapping{}
	for rows.Next() {
		m, err := scanFieldMapping(rows)
		if err != nil {
			return nil, dbError("scan field mapping", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list field mappings", err)
	}
	// Mappings of one result share created_at; present them in vocabulary order.
	slices.SortStableFunc(out, func(a, b *entity.FieldMapping) int {
		return slices.Index(constants.FieldNames, a.FieldName) - slices.Index(constants.FieldNames, b.FieldName)
	})
	return out, nil
}

func (r *fieldMappingRepo) Apply(ctx context.Context, id uuid.UUID, actorID string, target ApplyTarget) (*entity.FieldMapping, error) {
	ub := r.db.builder().Update(tableMappings).
		Set("status", string(constants.MappingApplied)).
		Set("applied_at", now()).
		Set("applied_by", actorID)
	if target.PatientID != nil {
		ub = ub.Set("patient_id", *target.PatientID)
	}
	if target.CurrentValue != nil {
		ub = ub.Set("current_value", *target.CurrentValue)
	}
	return r.transition(ctx, id, ub)
}

func (r *fieldMappingRepo) Reject(ctx context.Context, id uuid.UUID, actorID string) (*entity.FieldMapping, error) {
	ub := r.db.builder().Update(tableMappings).
		Set("status", string(constants.MappingRejected)).
		Set("rejected_at", now()).
		Set("rejected_by", actorID)
	return r.transition(ctx, id, ub)
}

func (r *fieldMappingRepo) transition(ctx context.Context, id uuid.UUID, ub *entsql.UpdateBuilder) (*entity.FieldMapping, error) {
	q, args := ub.Where(entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("status", string(constants.MappingPending)),
	)).Query()
	n, err := execAffected(ctx, r.db, q, args)
	if err != nil {
		r.logger.Error("failed to update field mapping", "mapping_id", id, "error", err)
		return nil, dbError("update field mapping", err)
	}
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, common.InvalidState("field mapping", id, string(cur.Status))
	}
	return cur, nil
}
