package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/async"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/ocr"
	"github.com/joseph-ayodele/referral-intake/internal/repository"
)

// Service is the upward API of the intake pipeline: upload, inspect, review
// and resolve.
type Service struct {
	scans    repository.ScanRepository
	results  repository.OcrResultRepository
	mappings repository.FieldMappingRepository
	patients PatientDirectory
	queue    async.Queue
	logger   *slog.Logger
}

// NewService creates a new intake service. queue may be nil for read-only use.
func NewService(
	scans repository.ScanRepository,
	results repository.OcrResultRepository,
	mappings repository.FieldMappingRepository,
	patients PatientDirectory,
	queue async.Queue,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		scans:    scans,
		results:  results,
		mappings: mappings,
		patients: patients,
		queue:    queue,
		logger:   logger,
	}
}

// UploadInput describes a file already placed in storage.
type UploadInput struct {
	Path             string `validate:"required"`
	OriginalFilename string `validate:"required,max=255"`
	MimeType         string `validate:"omitempty,max=127"`
	UploaderID       string `validate:"required,max=128"`
	// SkipDuplicate returns the existing scan when the content was seen before.
	SkipDuplicate bool
}

// Enqueued identifies the rows created for an upload. OcrResultID is uuid.Nil
// when the upload was a skipped duplicate.
type Enqueued struct {
	ScanID      uuid.UUID
	OcrResultID uuid.UUID
	Duplicate   bool
	ContentHash string
	MimeType    string
	SubmittedAt time.Time
	Status      constants.ProcessingStatus
}

// EnqueueScan persists the scan with a pending OcrResult and schedules
// background processing. It returns without waiting for the pipeline.
func (s *Service) EnqueueScan(ctx context.Context, in UploadInput) (*Enqueued, error) {
	out, err := s.enqueueScan(ctx, in)
	switch {
	case err != nil:
		scansEnqueuedTotal.WithLabelValues(outcomeLabel(err)).Inc()
	case out.Duplicate:
		scansEnqueuedTotal.WithLabelValues("duplicate").Inc()
	default:
		scansEnqueuedTotal.WithLabelValues("ok").Inc()
	}
	return out, err
}

func (s *Service) enqueueScan(ctx context.Context, in UploadInput) (*Enqueued, error) {
	if err := common.ValidateStruct(in); err != nil {
		s.logger.Error("invalid upload", "original_filename", in.OriginalFilename, "error", err)
		return nil, err
	}
	info, err := os.Stat(in.Path)
	if err != nil || !info.Mode().IsRegular() {
		s.logger.Error("upload path is not a readable file", "path", in.Path, "error", err)
		return nil, common.InvalidInput(fmt.Sprintf("path %q is not a regular file", in.Path), err)
	}

	mt, err := ocr.ResolveMime(in.Path, in.MimeType)
	if err != nil {
		return nil, common.InvalidInput("could not determine file type", err)
	}
	if constants.MapMimeToFormat(mt) == "" {
		s.logger.Error("unsupported upload type", "path", in.Path, "mime", mt)
		return nil, common.InvalidInput(fmt.Sprintf("unsupported file type %q", mt), nil)
	}

	hash, err := hashFile(in.Path)
	if err != nil {
		return nil, common.InvalidInput("could not read upload", err)
	}

	if in.SkipDuplicate {
		existing, err := s.scans.FindByHash(ctx, hash)
		switch {
		case err == nil:
			s.logger.Info("intake.enqueue.duplicate", "scan_id", existing.ID, "path", in.Path)
			return &Enqueued{ScanID: existing.ID, Duplicate: true, ContentHash: hash, MimeType: existing.MimeType}, nil
		case !errors.Is(err, common.ErrNotFound):
			return nil, err
		}
	}

	scan, res, err := s.scans.CreateWithResult(ctx, repository.NewScan{
		UploaderID:       in.UploaderID,
		StoredFilename:   in.Path,
		OriginalFilename: filepath.Base(in.OriginalFilename),
		MimeType:         mt,
		SizeBytes:        info.Size(),
		ContentHash:      &hash,
	})
	if err != nil {
		return nil, err
	}

	submitted := time.Now()
	if err := s.schedule(ctx, res.ID, submitted); err != nil {
		// Nothing will ever pick the result up; settle it so it is not stuck pending.
		if ferr := s.results.Fail(context.WithoutCancel(ctx), res.ID, "could not schedule processing: "+err.Error()); ferr != nil {
			s.logger.Error("intake.enqueue.fail_record_failed", "ocr_result_id", res.ID, "error", ferr)
		}
		return nil, common.WrapError(err, fmt.Sprintf("schedule ocr result %s", res.ID))
	}

	s.logger.Info("intake.enqueue.ok",
		"scan_id", scan.ID,
		"ocr_result_id", res.ID,
		"uploader_id", in.UploaderID,
		"mime", mt,
		"size_bytes", info.Size(),
	)
	return &Enqueued{
		ScanID:      scan.ID,
		OcrResultID: res.ID,
		ContentHash: hash,
		MimeType:    mt,
		SubmittedAt: submitted,
		Status:      res.ProcessingStatus,
	}, nil
}

func (s *Service) schedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.queue == nil {
		return common.ErrQueueClosed
	}
	return s.queue.Enqueue(ctx, async.Job{
		OcrResultID: id,
		SubmittedAt: at,
		TraceID:     common.TraceIDFromContext(ctx),
	})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RequeueUnsettled re-enqueues results a previous process left pending or
// processing. It returns how many were scheduled.
func (s *Service) RequeueUnsettled(ctx context.Context) (int, error) {
	ids, err := s.results.RequeueUnsettled(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := s.schedule(ctx, id, time.Now()); err != nil {
			s.logger.Error("intake.requeue.failed", "ocr_result_id", id, "error", err)
			return n, err
		}
		n++
	}
	if n > 0 {
		s.logger.Info("intake.requeue.ok", "count", n)
	}
	return n, nil
}

func (s *Service) GetOcrResult(ctx context.Context, id uuid.UUID) (*entity.OcrResult, error) {
	return s.results.GetByID(ctx, id)
}

func (s *Service) ListFieldMappings(ctx context.Context, ocrResultID uuid.UUID) ([]*entity.FieldMapping, error) {
	if _, err := s.results.GetByID(ctx, ocrResultID); err != nil {
		return nil, err
	}
	return s.mappings.ListByResult(ctx, ocrResultID)
}
