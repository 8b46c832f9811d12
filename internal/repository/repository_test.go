package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

type fixture struct {
	db       *DB
	scans    ScanRepository
	results  OcrResultRepository
	mappings FieldMappingRepository
	patients *PatientRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "intake.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrations are idempotent")

	return &fixture{
		db:       db,
		scans:    NewScanRepository(db, nil),
		results:  NewOcrResultRepository(db, nil),
		mappings: NewFieldMappingRepository(db, nil),
		patients: NewPatientRepository(db, nil),
	}
}

func (f *fixture) newResult(t *testing.T) *entity.OcrResult {
	t.Helper()
	hash := "abc123"
	_, res, err := f.scans.CreateWithResult(context.Background(), NewScan{
		UploaderID:       "uploader-1",
		StoredFilename:   "stored/letter.pdf",
		OriginalFilename: "letter.pdf",
		MimeType:         constants.MimePDF,
		SizeBytes:        2048,
		ContentHash:      &hash,
	})
	require.NoError(t, err)
	return res
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) completedResult(t *testing.T, mappings ...NewMapping) *entity.OcrResult {
	t.Helper()
	ctx := context.Background()
	res := f.newResult(t)
	_, err := f.results.Claim(ctx, res.ID)
	require.NoError(t, err)
	require.NoError(t, f.results.Complete(ctx, res.ID, Completion{
		RawText:      "Dear Dr. Smith, I am referring...",
		Confidence:   0.9,
		DocumentType: constants.DocumentReferral,
		Data: &entity.ExtractedData{
			Patient:    entity.PatientFields{DateOfBirth: ptr("1980-01-01")},
			Confidence: 0.6,
			Analysis:   "dob only",
		},
		Mappings: mappings,
	}))
	return res
}

func dobMapping() NewMapping {
	return NewMapping{FieldName: constants.FieldDateOfBirth, ExtractedValue: "1980-01-01", Confidence: ptr(0.6)}
}

func TestCreateWithResultStartsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.newResult(t)

	got, err := f.results.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProcessingPending, got.ProcessingStatus)
	assert.Equal(t, constants.ResolutionPending, got.ResolutionStatus)
	assert.Nil(t, got.RawText)
	assert.Nil(t, got.ProcessedAt)
	assert.Nil(t, got.ErrorMessage)

	scan, err := f.scans.GetByID(ctx, got.ScanID)
	require.NoError(t, err)
	assert.Equal(t, "letter.pdf", scan.OriginalFilename)
	assert.Equal(t, int64(2048), scan.SizeBytes)

	byHash, err := f.scans.FindByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, scan.ID, byHash.ID)

	_, err = f.scans.FindByHash(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := f.results.GetByID(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.results.Resolve(ctx, id, Resolution{Status: constants.ResolutionSkipped, ActorID: "r"})
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.mappings.Apply(ctx, id, "r", ApplyTarget{})
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.scans.GetByID(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	p, err := f.patients.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestClaimHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.newResult(t)

	claimed, err := f.results.Claim(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProcessingRunning, claimed.ProcessingStatus)

	_, err = f.results.Claim(ctx, res.ID)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestCompleteStoresOutputAndMappings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.completedResult(t,
		NewMapping{FieldName: constants.FieldReferringPhysician, ExtractedValue: "Dr. Chen"},
		dobMapping(),
	)

	got, err := f.results.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProcessingCompleted, got.ProcessingStatus)
	require.NotNil(t, got.ProcessedAt)
	require.NotNil(t, got.RawText)
	assert.Equal(t, "Dear Dr. Smith, I am referring...", *got.RawText)
	assert.InDelta(t, 0.9, *got.Confidence, 1e-9)
	assert.Equal(t, constants.DocumentReferral, *got.DocumentType)
	require.NotNil(t, got.ExtractedData)
	assert.Equal(t, "1980-01-01", *got.ExtractedData.Patient.DateOfBirth)
	assert.Nil(t, got.ExtractedData.Patient.LastName)

	ms, err := f.mappings.ListByResult(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, constants.FieldDateOfBirth, ms[0].FieldName)
	assert.Equal(t, constants.FieldReferringPhysician, ms[1].FieldName)
	for _, m := range ms {
		assert.Equal(t, constants.MappingPending, m.Status)
		assert.Nil(t, m.AppliedAt)
		assert.Nil(t, m.AppliedBy)
	}

	err = f.results.Complete(ctx, res.ID, Completion{RawText: "again"})
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestFailClearsPartialOutput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.newResult(t)
	_, err := f.results.Claim(ctx, res.ID)
	require.NoError(t, err)

	require.NoError(t, f.results.Fail(ctx, res.ID, "conversion rasterize: exit status 1"))
	got, err := f.results.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProcessingFailed, got.ProcessingStatus)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "conversion rasterize: exit status 1", *got.ErrorMessage)
	assert.NotNil(t, got.ProcessedAt)
	assert.Nil(t, got.RawText)
	assert.Nil(t, got.Confidence)

	assert.ErrorIs(t, f.results.Fail(ctx, res.ID, "twice"), common.ErrInvalidState)
}

func TestStatusInvariantsAreEnforcedByTheSchema(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.newResult(t)

	_, err := f.db.ExecContext(ctx, `UPDATE ocr_results SET processing_status = 'completed' WHERE id = ?`, res.ID)
	assert.Error(t, err, "completed without processed_at")

	_, err = f.db.ExecContext(ctx, `UPDATE ocr_results SET error_message = 'x' WHERE id = ?`, res.ID)
	assert.Error(t, err, "error message on a pending result")

	m := f.completedResult(t, dobMapping())
	ms, err := f.mappings.ListByResult(ctx, m.ID)
	require.NoError(t, err)
	_, err = f.db.ExecContext(ctx, `UPDATE ocr_field_mappings SET status = 'applied' WHERE id = ?`, ms[0].ID)
	assert.Error(t, err, "applied without applied_at")
}

func TestResolveRequiresSettledProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.newResult(t)

	_, err := f.results.Resolve(ctx, res.ID, Resolution{Status: constants.ResolutionSkipped, ActorID: "r"})
	assert.ErrorIs(t, err, common.ErrInvalidState)
	assert.ErrorIs(t, f.results.CheckResolvable(ctx, res.ID), common.ErrInvalidState)

	_, err = f.results.Resolve(ctx, res.ID, Resolution{Status: constants.ResolutionPending, ActorID: "r"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestResolveIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.completedResult(t)
	first, second := uuid.New(), uuid.New()

	got, err := f.results.Resolve(ctx, res.ID, Resolution{
		Status: constants.ResolutionCreatedPatient, PatientID: &first, ActorID: "reviewer-1",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.ResolutionCreatedPatient, got.ResolutionStatus)
	assert.Equal(t, first, *got.PatientID)
	assert.Equal(t, "reviewer-1", *got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	_, err = f.results.Resolve(ctx, res.ID, Resolution{
		Status: constants.ResolutionCreatedPatient, PatientID: &second, ActorID: "reviewer-2",
	})
	assert.ErrorIs(t, err, common.ErrAlreadyResolved)
	assert.ErrorIs(t, f.results.CheckResolvable(ctx, res.ID), common.ErrAlreadyResolved)

	after, err := f.results.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *after.PatientID)
	assert.Equal(t, "reviewer-1", *after.ResolvedBy)
	assert.True(t, got.ResolvedAt.Equal(*after.ResolvedAt))
}

func TestConcurrentResolveHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.completedResult(t)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.results.Resolve(ctx, res.ID, Resolution{Status: constants.ResolutionSkipped, ActorID: "r"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, common.ErrAlreadyResolved):
				rejected++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, rejected)
}

func TestMappingTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.completedResult(t, dobMapping(),
		NewMapping{FieldName: constants.FieldPhone, ExtractedValue: "5550102233"})
	ms, err := f.mappings.ListByResult(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	dob, phone := ms[0], ms[1]

	pid := uuid.New()
	applied, err := f.mappings.Apply(ctx, dob.ID, "reviewer-1", ApplyTarget{PatientID: &pid, CurrentValue: ptr("1979-12-31")})
	require.NoError(t, err)
	assert.Equal(t, constants.MappingApplied, applied.Status)
	assert.Equal(t, "reviewer-1", *applied.AppliedBy)
	assert.Equal(t, pid, *applied.PatientID)
	assert.Equal(t, "1979-12-31", *applied.CurrentValue)
	require.NotNil(t, applied.AppliedAt)

	_, err = f.mappings.Apply(ctx, dob.ID, "reviewer-2", ApplyTarget{})
	assert.ErrorIs(t, err, common.ErrInvalidState)
	_, err = f.mappings.Reject(ctx, dob.ID, "reviewer-2")
	assert.ErrorIs(t, err, common.ErrInvalidState)

	again, err := f.mappings.GetByID(ctx, dob.ID)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", *again.AppliedBy)
	assert.True(t, applied.AppliedAt.Equal(*again.AppliedAt))

	rejected, err := f.mappings.Reject(ctx, phone.ID, "reviewer-2")
	require.NoError(t, err)
	assert.Equal(t, constants.MappingRejected, rejected.Status)
	assert.Nil(t, rejected.AppliedAt)
	assert.Nil(t, rejected.AppliedBy)
	assert.Equal(t, "reviewer-2", *rejected.RejectedBy)
	assert.NotNil(t, rejected.RejectedAt)
}

func TestRequeueUnsettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.newResult(t)
	stuck := f.newResult(t)
	_, err := f.results.Claim(ctx, stuck.ID)
	require.NoError(t, err)
	f.completedResult(t)

	ids, err := f.results.RequeueUnsettled(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{pending.ID, stuck.ID}, ids)

	got, err := f.results.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ProcessingPending, got.ProcessingStatus)
}

func TestListReviewQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.newResult(t)
	open := f.completedResult(t)
	done := f.completedResult(t)
	_, err := f.results.Resolve(ctx, done.ID, Resolution{Status: constants.ResolutionSkipped, ActorID: "r"})
	require.NoError(t, err)

	failed := f.newResult(t)
	require.NoError(t, f.results.Fail(ctx, failed.ID, "processing timed out"))

	queue, err := f.results.ListReviewQueue(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.ElementsMatch(t, []uuid.UUID{open.ID, failed.ID}, []uuid.UUID{queue[0].ID, queue[1].ID})

	_, err = f.results.Resolve(ctx, failed.ID, Resolution{Status: constants.ResolutionSkipped, ActorID: "r"})
	require.NoError(t, err)
	queue, err = f.results.ListReviewQueue(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, open.ID, queue[0].ID)
}

func TestDeletingScanCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.completedResult(t, dobMapping())

	_, err := f.db.ExecContext(ctx, `DELETE FROM referral_scans WHERE id = ?`, res.ScanID)
	require.NoError(t, err)

	_, err = f.results.GetByID(ctx, res.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	ms, err := f.mappings.ListByResult(ctx, res.ID)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestPatientDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.patients.Create(ctx, entity.PatientInput{LastName: ptr("Okafor"), DateOfBirth: ptr("1980-01-01")})
	require.NoError(t, err)

	got, err := f.patients.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Okafor", *got.LastName)
	assert.Nil(t, got.FirstName)
	assert.Equal(t, "1980-01-01", *got.FieldValue(constants.FieldDateOfBirth))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, "postgres", DialectFor("postgres://u:p@localhost/db"))
	assert.Equal(t, "postgres", DialectFor("postgresql://localhost/db"))
	assert.Equal(t, "sqlite3", DialectFor("/var/lib/intake.db"))
	assert.Equal(t, "file:/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("sqlite:///tmp/a.db"))
}
