package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

type rowScanner interface {
	Scan(dest ...any) error
}

var scanColumns = []string{
	"id", "uploader_id", "stored_filename", "original_filename",
	"mime_type", "size_bytes", "content_hash", "created_at",
}

func scanReferralScan(rs rowScanner) (*entity.ReferralScan, error) {
	var (
		s    entity.ReferralScan
		hash sql.NullString
	)
	if err := rs.Scan(&s.ID, &s.UploaderID, &s.StoredFilename, &s.OriginalFilename,
		&s.MimeType, &s.SizeBytes, &hash, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.ContentHash = stringPtr(hash)
	return &s, nil
}

var resultColumns = []string{
	"id", "scan_id", "raw_text", "confidence", "document_type", "extracted_data",
	"processing_status", "error_message", "processed_at",
	"resolution_status", "patient_id", "resolved_by", "resolved_at", "created_at",
}

func scanOcrResult(rs rowScanner) (*entity.OcrResult, error) {
	var (
		r          entity.OcrResult
		rawText    sql.NullString
		confidence sql.NullFloat64
		docType    sql.NullString
		data       sql.NullString
		errMsg     sql.NullString
		processed  sql.NullTime
		patientID  uuid.NullUUID
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)
	if err := rs.Scan(&r.ID, &r.ScanID, &rawText, &confidence, &docType, &data,
		&r.ProcessingStatus, &errMsg, &processed,
		&r.ResolutionStatus, &patientID, &resolvedBy, &resolvedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.RawText = stringPtr(rawText)
	r.Confidence = floatPtr(confidence)
	if docType.Valid {
		dt := constants.DocumentType(docType.String)
		r.DocumentType = &dt
	}
	if data.Valid && data.String != "" {
		var ed entity.ExtractedData
		if err := json.Unmarshal([]byte(data.String), &ed); err != nil {
			return nil, fmt.Errorf("decode extracted_data of %s: %w", r.ID, err)
		}
		r.ExtractedData = &ed
	}
	r.ErrorMessage = stringPtr(errMsg)
	r.ProcessedAt = timePtr(processed)
	r.PatientID = uuidPtr(patientID)
	r.ResolvedBy = stringPtr(resolvedBy)
	r.ResolvedAt = timePtr(resolvedAt)
	return &r, nil
}

var mappingColumns = []string{
	"id", "ocr_result_id", "patient_id", "field_name", "extracted_value", "current_value",
	"confidence", "status", "applied_at", "applied_by", "rejected_at", "rejected_by", "created_at",
}

func scanFieldMapping(rs rowScanner) (*entity.FieldMapping, error) {
	var (
		m          entity.FieldMapping
		patientID  uuid.NullUUID
		current    sql.NullString
		confidence sql.NullFloat64
		appliedAt  sql.NullTime
		appliedBy  sql.NullString
		rejectedAt sql.NullTime
		rejectedBy sql.NullString
	)
	if err := rs.Scan(&m.ID, &m.OcrResultID, &patientID, &m.FieldName, &m.ExtractedValue, &current,
		&confidence, &m.Status, &appliedAt, &appliedBy, &rejectedAt, &rejectedBy, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.PatientID = uuidPtr(patientID)
	m.CurrentValue = stringPtr(current)
	m.Confidence = floatPtr(confidence)
	m.AppliedAt = timePtr(appliedAt)
	m.AppliedBy = stringPtr(appliedBy)
	m.RejectedAt = timePtr(rejectedAt)
	m.RejectedBy = stringPtr(rejectedBy)
	return &m, nil
}

var patientColumns = []string{
	"id", "first_name", "last_name", "date_of_birth", "phone", "gender", "created_at",
}

func scanPatient(rs rowScanner) (*entity.Patient, error) {
	var (
		p                               entity.Patient
		first, last, dob, phone, gender sql.NullString
	)
	if err := rs.Scan(&p.ID, &first, &last, &dob, &phone, &gender, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.FirstName = stringPtr(first)
	p.LastName = stringPtr(last)
	p.DateOfBirth = stringPtr(dob)
	p.Phone = stringPtr(phone)
	p.Gender = stringPtr(gender)
	return &p, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func uuidPtr(v uuid.NullUUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	return &v.UUID
}

func nullUUID(p *uuid.UUID) uuid.NullUUID {
	if p == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// dbError folds a driver error into the DATABASE_ERROR code.
func dbError(op string, err error) error {
	return common.NewAppError(common.CodeDatabase, op, err)
}

func now() time.Time {
	return time.Now().UTC()
}
