package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// PatientRepository is the local patient directory used when no external
// directory is wired in.
type PatientRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPatientRepository(db *DB, logger *slog.Logger) *PatientRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatientRepository{db: db, logger: logger}
}

// FindByID returns nil, nil when the patient does not exist.
func (r *PatientRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Patient, error) {
	q, args := r.db.builder().Select(patientColumns...).
		From(entsql.Table(tablePatients)).
		Where(entsql.EQ("id", id)).
		Query()
	p, err := scanPatient(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError("get patient", err)
	}
	return p, nil
}

func (r *PatientRepository) Create(ctx context.Context, in entity.PatientInput) (*entity.Patient, error) {
	p := &entity.Patient{
		ID:          uuid.New(),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: in.DateOfBirth,
		Phone:       in.Phone,
		Gender:      in.Gender,
		CreatedAt:   now(),
	}
	q, args := r.db.builder().Insert(tablePatients).
		Columns(patientColumns...).
		Values(p.ID, nullString(p.FirstName), nullString(p.LastName), nullString(p.DateOfBirth),
			nullString(p.Phone), nullString(p.Gender), p.CreatedAt).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to create patient", "error", err)
		return nil, dbError("create patient", err)
	}
	r.logger.Info("repository.patient.created", "patient_id", p.ID)
	return p, nil
}
