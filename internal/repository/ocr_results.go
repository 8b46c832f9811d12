package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// Completion is everything a successful pipeline run writes to its result.
type Completion struct {
	RawText      string
	Confidence   float64
	DocumentType constants.DocumentType
	Data         *entity.ExtractedData
	Mappings     []NewMapping
}

// NewMapping is one pending field proposal created on completion.
type NewMapping struct {
	FieldName      constants.FieldName
	ExtractedValue string
	Confidence     *float64
}

// Resolution is a terminal review decision for one OcrResult.
type Resolution struct {
	Status    constants.ResolutionStatus
	PatientID *uuid.UUID
	ActorID   string
}

type OcrResultRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.OcrResult, error)
	// Claim moves a pending result to processing. Only one caller wins.
	Claim(ctx context.Context, id uuid.UUID) (*entity.OcrResult, error)
	// Complete settles a processing result and inserts its field mappings atomically.
	Complete(ctx context.Context, id uuid.UUID, c Completion) error
	// Fail settles a pending or processing result as failed, clearing partial output.
	Fail(ctx context.Context, id uuid.UUID, message string) error
	// Resolve applies a terminal resolution with a single conditional update.
	Resolve(ctx context.Context, id uuid.UUID, res Resolution) (*entity.OcrResult, error)
	// CheckResolvable reports why a result cannot be resolved, or nil.
	CheckResolvable(ctx context.Context, id uuid.UUID) error
	// RequeueUnsettled resets processing results to pending and returns every pending id.
	RequeueUnsettled(ctx context.Context) ([]uuid.UUID, error)
	// ListReviewQueue returns settled (completed or failed), unresolved results
	// oldest first.
	ListReviewQueue(ctx context.Context, limit int) ([]*entity.OcrResult, error)
}

type ocrResultRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewOcrResultRepository(db *DB, logger *slog.Logger) OcrResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ocrResultRepo{db: db, logger: logger}
}

func (r *ocrResultRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.OcrResult, error) {
	return getOcrResult(ctx, r.db, r.db, id)
}

func getOcrResult(ctx context.Context, db *DB, q querier, id uuid.UUID) (*entity.OcrResult, error) {
	query, args := db.builder().Select(resultColumns...).
		From(entsql.Table(tableResults)).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := scanOcrResult(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("ocr result", id)
	}
	if err != nil {
		return nil, dbError("get ocr result", err)
	}
	return res, nil
}

func (r *ocrResultRepo) Claim(ctx context.Context, id uuid.UUID) (*entity.OcrResult, error) {
	q, args := r.db.builder().Update(tableResults).
		Set("processing_status", string(constants.ProcessingRunning)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("processing_status", string(constants.ProcessingPending)),
		)).
		Query()
	n, err := execAffected(ctx, r.db, q, args)
	if err != nil {
		return nil, dbError("claim ocr result", err)
	}
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, common.InvalidState("ocr result", id, string(cur.ProcessingStatus))
	}
	return cur, nil
}

func (r *ocrResultRepo) Complete(ctx context.Context, id uuid.UUID, c Completion) error {
	var payload sql.NullString
	if c.Data != nil {
		b, err := json.Marshal(c.Data)
		if err != nil {
			return fmt.Errorf("encode extracted data: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	ts := now()

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		q, args := r.db.builder().Update(tableResults).
			Set("processing_status", string(constants.ProcessingCompleted)).
			Set("raw_text", c.RawText).
			Set("confidence", c.Confidence).
			Set("document_type", string(c.DocumentType)).
			Set("extracted_data", payload).
			Set("processed_at", ts).
			SetNull("error_message").
			Where(entsql.And(
				entsql.EQ("id", id),
				entsql.EQ("processing_status", string(constants.ProcessingRunning)),
			)).
			Query()
		n, err := execAffected(ctx, tx, q, args)
		if err != nil {
			return err
		}
		if n == 0 {
			cur, err := getOcrResult(ctx, r.db, tx, id)
			if err != nil {
				return err
			}
			return common.InvalidState("ocr result", id, string(cur.ProcessingStatus))
		}
		return insertMappings(ctx, r.db, tx, id, c.Mappings, ts)
	})
	if err != nil {
		r.logger.Error("failed to complete ocr result", "ocr_result_id", id, "error", err)
		return asRepoError("complete ocr result", err)
	}
	return nil
}

func (r *ocrResultRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	q, args := r.db.builder().Update(tableResults).
		Set("processing_status", string(constants.ProcessingFailed)).
		Set("error_message", message).
		Set("processed_at", now()).
		SetNull("raw_text").
		SetNull("confidence").
		SetNull("document_type").
		SetNull("extracted_data").
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.In("processing_status",
				string(constants.ProcessingPending), string(constants.ProcessingRunning)),
		)).
		Query()
	n, err := execAffected(ctx, r.db, q, args)
	if err != nil {
		r.logger.Error("failed to mark ocr result failed", "ocr_result_id", id, "error", err)
		return dbError("fail ocr result", err)
	}
	if n == 0 {
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return common.InvalidState("ocr result", id, string(cur.ProcessingStatus))
	}
	return nil
}

func (r *ocrResultRepo) Resolve(ctx context.Context, id uuid.UUID, res Resolution) (*entity.OcrResult, error) {
	if !res.Status.Terminal() {
		return nil, common.InvalidInput(fmt.Sprintf("resolution %q is not terminal", res.Status), nil)
	}
	ub := r.db.builder().Update(tableResults).
		Set("resolution_status", string(res.Status)).
		Set("resolved_by", res.ActorID).
		Set("resolved_at", now())
	if res.PatientID != nil {
		ub = ub.Set("patient_id", *res.PatientID)
	}
	// Both guards in one statement: still unresolved, and processing settled.
	q, args := ub.Where(entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("resolution_status", string(constants.ResolutionPending)),
		entsql.In("processing_status",
			string(constants.ProcessingCompleted), string(constants.ProcessingFailed)),
	)).Query()

	n, err := execAffected(ctx, r.db, q, args)
	if err != nil {
		r.logger.Error("failed to resolve ocr result", "ocr_result_id", id, "error", err)
		return nil, dbError("resolve ocr result", err)
	}
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, resolveRejection(cur)
	}
	return cur, nil
}

func (r *ocrResultRepo) CheckResolvable(ctx context.Context, id uuid.UUID) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur.ResolutionStatus == constants.ResolutionPending && cur.ProcessingStatus.Settled() {
		return nil
	}
	return resolveRejection(cur)
}

func resolveRejection(cur *entity.OcrResult) error {
	if cur.ResolutionStatus.Terminal() {
		return common.AlreadyResolved(cur.ID, string(cur.ResolutionStatus))
	}
	return common.InvalidState("ocr result", cur.ID, string(cur.ProcessingStatus))
}

func (r *ocrResultRepo) RequeueUnsettled(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		q, args := r.db.builder().Update(tableResults).
			Set("processing_status", string(constants.ProcessingPending)).
			Where(entsql.EQ("processing_status", string(constants.ProcessingRunning))).
			Query()
		reset, err := execAffected(ctx, tx, q, args)
		if err != nil {
			return err
		}

		q, args = r.db.builder().Select("id").
			From(entsql.Table(tableResults)).
			Where(entsql.EQ("processing_status", string(constants.ProcessingPending))).
			OrderBy(entsql.Asc("created_at")).
			Query()
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		r.logger.Info("repository.requeue", "reset_processing", reset, "pending", len(ids))
		return nil
	})
	if err != nil {
		return nil, dbError("requeue unsettled ocr results", err)
	}
	return ids, nil
}

func (r *ocrResultRepo) ListReviewQueue(ctx context.Context, limit int) ([]*entity.OcrResult, error) {
	sel := r.db.builder().Select(resultColumns...).
		From(entsql.Table(tableResults)).
		Where(entsql.And(
			entsql.In("processing_status",
				string(constants.ProcessingCompleted), string(constants.ProcessingFailed)),
			entsql.EQ("resolution_status", string(constants.ResolutionPending)),
		)).
		OrderBy(entsql.Asc("created_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbError("list review queue", err)
	}
	defer rows.Close()

	var out []*entity.OcrResult
	for rows.Next() {
		res, err := scanOcrResult(rows)
		if err != nil {
			return nil, dbError("scan review queue", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list review queue", err)
	}
	return out, nil
}

func execAffected(ctx context.Context, q querier, query string, args []any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// asRepoError keeps taxonomy errors and wraps everything else as DATABASE_ERROR.
func asRepoError(op string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return dbError(op, err)
}
