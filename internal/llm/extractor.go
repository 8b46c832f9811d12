package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// Extractor turns OCR text into ExtractedData through a Completer. It never
// returns an error: backend and parse failures become degraded Extractions.
type Extractor struct {
	backend Completer
	schema  *jsonschema.Schema
	logger  *slog.Logger
}

// NewExtractor builds an extractor. A nil backend is allowed and yields
// OutcomeUnavailable for every call.
func NewExtractor(backend Completer, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildExtractedDataSchema())
	if err != nil {
		return nil, err
	}
	return &Extractor{backend: backend, schema: schema, logger: logger}, nil
}

func (e *Extractor) Extract(ctx context.Context, rawText string) Extraction {
	rid := uuid.New().String()
	start := time.Now()

	if e.backend == nil {
		e.logger.Warn("llm.extract.degraded", "req_id", rid, "reason", "no backend configured")
		return degraded(OutcomeUnavailable, "extraction backend not configured; no fields extracted", "")
	}

	e.logger.Info("llm.extract.start", "req_id", rid, "backend", e.backend.Name(), "text_len", len(rawText))

	resp, err := e.backend.Complete(ctx, BuildSystemPrompt(), BuildUserPrompt(rawText))
	if err != nil {
		e.logger.Warn("llm.extract.degraded",
			"req_id", rid, "reason", "backend error", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return degraded(OutcomeUnavailable, fmt.Sprintf("extraction backend unavailable: %v", err), "")
	}

	data, notes, err := e.parse(resp)
	if err != nil {
		e.logger.Warn("llm.extract.degraded",
			"req_id", rid, "reason", "unparseable response", "error", err, "raw_bytes", len(resp),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return degraded(OutcomeUnparseable, fmt.Sprintf("could not parse extraction response: %v", err), resp)
	}
	data.RawResponse = resp
	if len(notes) > 0 {
		data.Analysis = strings.TrimSpace(data.Analysis + " Normalization: " + strings.Join(notes, "; ") + ".")
	}

	e.logger.Info("llm.extract.ok",
		"req_id", rid,
		"fields", len(data.Fields()),
		"confidence", data.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Extraction{Outcome: OutcomeOK, Data: data}
}

// wireData mirrors the schema; confidence and analysis may be null.
type wireData struct {
	Patient    entity.PatientFields  `json:"patient"`
	Referral   entity.ReferralFields `json:"referral"`
	Confidence *float64              `json:"confidence"`
	Analysis   *string               `json:"analysis"`
}

func (e *Extractor) parse(resp string) (entity.ExtractedData, []string, error) {
	raw, err := ExtractJSONObject(resp)
	if err != nil {
		return entity.ExtractedData{}, nil, err
	}
	if err := ValidateJSON(e.schema, raw); err != nil {
		return entity.ExtractedData{}, nil, err
	}
	var w wireData
	if err := json.Unmarshal(raw, &w); err != nil {
		return entity.ExtractedData{}, nil, fmt.Errorf("decode fields: %w", err)
	}

	var notes []string
	p := entity.PatientFields{
		FirstName:   cleanString(w.Patient.FirstName),
		LastName:    cleanString(w.Patient.LastName),
		DateOfBirth: cleanString(w.Patient.DateOfBirth),
		Phone:       cleanString(w.Patient.Phone),
		Gender:      cleanString(w.Patient.Gender),
	}
	if p.DateOfBirth != nil {
		if iso, ok := NormalizeDate(*p.DateOfBirth); ok {
			p.DateOfBirth = &iso
		} else {
			notes = append(notes, fmt.Sprintf("dropped unrecognized date of birth %q", *p.DateOfBirth))
			p.DateOfBirth = nil
		}
	}
	if p.Gender != nil {
		if g := NormalizeGender(*p.Gender); g != "unknown" {
			p.Gender = &g
		} else {
			p.Gender = nil
		}
	}
	if p.Phone != nil {
		if ph := NormalizePhone(*p.Phone); len(ph) >= 7 {
			p.Phone = &ph
		} else {
			notes = append(notes, fmt.Sprintf("dropped implausible phone %q", *p.Phone))
			p.Phone = nil
		}
	}

	out := entity.ExtractedData{
		Patient: p,
		Referral: entity.ReferralFields{
			ReferringPhysician: cleanString(w.Referral.ReferringPhysician),
			ReferringFacility:  cleanString(w.Referral.ReferringFacility),
			Reason:             cleanString(w.Referral.Reason),
		},
	}
	if w.Confidence != nil {
		out.Confidence = clamp01(*w.Confidence)
	}
	if a := cleanString(w.Analysis); a != nil {
		out.Analysis = *a
	} else {
		out.Analysis = fmt.Sprintf("extracted %d fields", len(out.Fields()))
	}
	return out, notes, nil
}

func degraded(outcome Outcome, analysis, raw string) Extraction {
	return Extraction{
		Outcome: outcome,
		Data: entity.ExtractedData{
			Confidence:  0,
			Analysis:    analysis,
			RawResponse: raw,
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
