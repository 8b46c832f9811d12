package intake

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/repository"
)

// ApplyMapping accepts one proposed field value. When the result is already
// linked to a patient, the mapping records that patient and its prior value.
func (s *Service) ApplyMapping(ctx context.Context, mappingID uuid.UUID, actorID string) (*entity.FieldMapping, error) {
	m, err := s.applyMapping(ctx, mappingID, actorID)
	mappingTransitionsTotal.WithLabelValues(string(constants.MappingApplied), outcomeLabel(err)).Inc()
	return m, err
}

func (s *Service) applyMapping(ctx context.Context, mappingID uuid.UUID, actorID string) (*entity.FieldMapping, error) {
	if err := common.ValidateActor(actorID); err != nil {
		return nil, err
	}
	m, err := s.mappings.GetByID(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	if m.Status != constants.MappingPending {
		return nil, common.InvalidState("field mapping", m.ID, string(m.Status))
	}

	var target repository.ApplyTarget
	res, err := s.results.GetByID(ctx, m.OcrResultID)
	if err != nil {
		return nil, err
	}
	if res.PatientID != nil && s.patients != nil {
		p, err := s.patients.FindByID(ctx, *res.PatientID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			target.PatientID = &p.ID
			target.CurrentValue = p.FieldValue(m.FieldName)
		}
	}

	out, err := s.mappings.Apply(ctx, mappingID, actorID, target)
	if err != nil {
		s.logger.Warn("intake.mapping.apply_rejected", "mapping_id", mappingID, "error", err)
		return nil, err
	}
	s.logger.Info("intake.mapping.applied", "mapping_id", mappingID, "field", out.FieldName, "actor_id", actorID)
	return out, nil
}

// RejectMapping declines one proposed field value.
func (s *Service) RejectMapping(ctx context.Context, mappingID uuid.UUID, actorID string) (*entity.FieldMapping, error) {
	m, err := s.rejectMapping(ctx, mappingID, actorID)
	mappingTransitionsTotal.WithLabelValues(string(constants.MappingRejected), outcomeLabel(err)).Inc()
	return m, err
}

func (s *Service) rejectMapping(ctx context.Context, mappingID uuid.UUID, actorID string) (*entity.FieldMapping, error) {
	if err := common.ValidateActor(actorID); err != nil {
		return nil, err
	}
	out, err := s.mappings.Reject(ctx, mappingID, actorID)
	if err != nil {
		s.logger.Warn("intake.mapping.reject_rejected", "mapping_id", mappingID, "error", err)
		return nil, err
	}
	s.logger.Info("intake.mapping.rejected", "mapping_id", mappingID, "field", out.FieldName, "actor_id", actorID)
	return out, nil
}

// ResolveAsCreated links the result to a patient the caller has just created.
func (s *Service) ResolveAsCreated(ctx context.Context, ocrResultID, newPatientID uuid.UUID, actorID string) (*entity.OcrResult, error) {
	return s.resolve(ctx, ocrResultID, repository.Resolution{
		Status:    constants.ResolutionCreatedPatient,
		PatientID: &newPatientID,
		ActorID:   actorID,
	})
}

// ResolveAsAdded links the result to an existing patient.
func (s *Service) ResolveAsAdded(ctx context.Context, ocrResultID, existingPatientID uuid.UUID, actorID string) (*entity.OcrResult, error) {
	if err := common.ValidateActor(actorID); err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, existingPatientID); err != nil {
		resolutionsTotal.WithLabelValues(string(constants.ResolutionAddedToPatient), outcomeLabel(err)).Inc()
		return nil, err
	}
	return s.resolve(ctx, ocrResultID, repository.Resolution{
		Status:    constants.ResolutionAddedToPatient,
		PatientID: &existingPatientID,
		ActorID:   actorID,
	})
}

// ResolveAsSkipped dismisses the result without a patient.
func (s *Service) ResolveAsSkipped(ctx context.Context, ocrResultID uuid.UUID, actorID string) (*entity.OcrResult, error) {
	return s.resolve(ctx, ocrResultID, repository.Resolution{
		Status:  constants.ResolutionSkipped,
		ActorID: actorID,
	})
}

// CreatePatientAndResolve checks the result is still resolvable before asking
// the directory for a new patient, then resolves as created. A nil input
// takes the identity fields from the extracted data.
func (s *Service) CreatePatientAndResolve(ctx context.Context, ocrResultID uuid.UUID, in *entity.PatientInput, actorID string) (*entity.Patient, *entity.OcrResult, error) {
	if err := common.ValidateActor(actorID); err != nil {
		return nil, nil, err
	}
	if s.patients == nil {
		return nil, nil, common.NewAppError(common.CodeConfig, "no patient directory configured", nil)
	}
	if err := s.results.CheckResolvable(ctx, ocrResultID); err != nil {
		resolutionsTotal.WithLabelValues(string(constants.ResolutionCreatedPatient), outcomeLabel(err)).Inc()
		return nil, nil, err
	}

	if in == nil {
		res, err := s.results.GetByID(ctx, ocrResultID)
		if err != nil {
			return nil, nil, err
		}
		var pi entity.PatientInput
		if res.ExtractedData != nil {
			pi = res.ExtractedData.PatientInput()
		}
		in = &pi
	}

	p, err := s.patients.Create(ctx, *in)
	if err != nil {
		s.logger.Error("intake.patient.create_failed", "ocr_result_id", ocrResultID, "error", err)
		return nil, nil, err
	}
	res, err := s.ResolveAsCreated(ctx, ocrResultID, p.ID, actorID)
	if err != nil {
		// Lost a race after the pre-check; the patient exists without a linked scan.
		s.logger.Warn("intake.resolve.orphaned_patient", "ocr_result_id", ocrResultID, "patient_id", p.ID, "error", err)
		return p, nil, err
	}
	return p, res, nil
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	if s.patients == nil {
		return common.NewAppError(common.CodeConfig, "no patient directory configured", nil)
	}
	p, err := s.patients.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return common.NotFound("patient", id)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, id uuid.UUID, res repository.Resolution) (*entity.OcrResult, error) {
	out, err := s.doResolve(ctx, id, res)
	resolutionsTotal.WithLabelValues(string(res.Status), outcomeLabel(err)).Inc()
	return out, err
}

func (s *Service) doResolve(ctx context.Context, id uuid.UUID, res repository.Resolution) (*entity.OcrResult, error) {
	if err := common.ValidateActor(res.ActorID); err != nil {
		return nil, err
	}
	out, err := s.results.Resolve(ctx, id, res)
	if err != nil {
		s.logger.Warn("intake.resolve.rejected", "ocr_result_id", id, "to", res.Status, "actor_id", res.ActorID, "error", err)
		return nil, err
	}
	s.logger.Info("intake.resolve.ok", "ocr_result_id", id, "status", out.ResolutionStatus, "patient_id", out.PatientID, "actor_id", res.ActorID)
	return out, nil
}

// ReviewItem is one settled, unresolved result with its context.
type ReviewItem struct {
	Result   *entity.OcrResult
	Scan     *entity.ReferralScan
	Mappings []*entity.FieldMapping
}

// ListReviewQueue returns completed and failed results awaiting resolution,
// oldest first. Failed results carry no mappings.
func (s *Service) ListReviewQueue(ctx context.Context, limit int) ([]ReviewItem, error) {
	results, err := s.results.ListReviewQueue(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ReviewItem, 0, len(results))
	for _, r := range results {
		scan, err := s.scans.GetByID(ctx, r.ScanID)
		if err != nil {
			return nil, err
		}
		ms, err := s.mappings.ListByResult(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ReviewItem{Result: r, Scan: scan, Mappings: ms})
	}
	return out, nil
}
