package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// NewScan is what the intake layer knows about an upload before it is stored.
type NewScan struct {
	UploaderID       string
	StoredFilename   string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	ContentHash      *string
}

type ScanRepository interface {
	// CreateWithResult stores the scan and its pending OcrResult in one transaction.
	CreateWithResult(ctx context.Context, in NewScan) (*entity.ReferralScan, *entity.OcrResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReferralScan, error)
	FindByHash(ctx context.Context, hash string) (*entity.ReferralScan, error)
}

type scanRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewScanRepository(db *DB, logger *slog.Logger) ScanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &scanRepo{db: db, logger: logger}
}

func (r *scanRepo) CreateWithResult(ctx context.Context, in NewScan) (*entity.ReferralScan, *entity.OcrResult, error) {
	ts := now()
	scan := &entity.ReferralScan{
		ID:               uuid.New(),
		UploaderID:       in.UploaderID,
		StoredFilename:   in.StoredFilename,
		OriginalFilename: in.OriginalFilename,
		MimeType:         in.MimeType,
		SizeBytes:        in.SizeBytes,
		ContentHash:      in.ContentHash,
		CreatedAt:        ts,
	}
	result := &entity.OcrResult{
		ID:               uuid.New(),
		ScanID:           scan.ID,
		ProcessingStatus: constants.ProcessingPending,
		ResolutionStatus: constants.ResolutionPending,
		CreatedAt:        ts,
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		q, args := r.db.builder().Insert(tableScans).
			Columns(scanColumns...).
			Values(scan.ID, scan.UploaderID, scan.StoredFilename, scan.OriginalFilename,
				scan.MimeType, scan.SizeBytes, nullString(scan.ContentHash), scan.CreatedAt).
			Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
		return insertPendingResult(ctx, r.db, tx, result)
	})
	if err != nil {
		r.logger.Error("failed to create referral scan", "original_filename", in.OriginalFilename, "error", err)
		return nil, nil, dbError("create referral scan", err)
	}
	return scan, result, nil
}

func insertPendingResult(ctx context.Context, db *DB, q querier, res *entity.OcrResult) error {
	query, args := db.builder().Insert(tableResults).
		Columns("id", "scan_id", "processing_status", "resolution_status", "created_at").
		Values(res.ID, res.ScanID, string(res.ProcessingStatus), string(res.ResolutionStatus), res.CreatedAt).
		Query()
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func (r *scanRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReferralScan, error) {
	q, args := r.db.builder().Select(scanColumns...).
		From(entsql.Table(tableScans)).
		Where(entsql.EQ("id", id)).
		Query()
	s, err := scanReferralScan(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("referral scan", id)
	}
	if err != nil {
		return nil, dbError("get referral scan", err)
	}
	return s, nil
}

func (r *scanRepo) FindByHash(ctx context.Context, hash string) (*entity.ReferralScan, error) {
	q, args := r.db.builder().Select(scanColumns...).
		From(entsql.Table(tableScans)).
		Where(entsql.EQ("content_hash", hash)).
		OrderBy(entsql.Asc("created_at")).
		Limit(1).
		Query()
	s, err := scanReferralScan(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "no referral scan with hash "+hash, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get referral scan by hash", "error", err)
		return nil, dbError("find referral scan by hash", err)
	}
	return s, nil
}
