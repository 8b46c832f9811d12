package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

const (
	tableScans    = "referral_scans"
	tableResults  = "ocr_results"
	tableMappings = "ocr_field_mappings"
	tablePatients = "patients"
)

// ddl uses {uuid} {ts} {json} {float} placeholders filled per dialect.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS referral_scans (
	id                {uuid} PRIMARY KEY,
	uploader_id       TEXT NOT NULL,
	stored_filename   TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	mime_type         TEXT NOT NULL,
	size_bytes        BIGINT NOT NULL CHECK (size_bytes >= 0),
	content_hash      TEXT,
	created_at        {ts} NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS referral_scans_content_hash_idx ON referral_scans (content_hash)`,

	`CREATE TABLE IF NOT EXISTS ocr_results (
	id                {uuid} PRIMARY KEY,
	scan_id           {uuid} NOT NULL REFERENCES referral_scans (id) ON DELETE CASCADE,
	raw_text          TEXT,
	confidence        {float} CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 1)),
	document_type     TEXT CHECK (document_type IS NULL OR document_type IN ('referral', 'lab_result', 'intake_form', 'unknown')),
	extracted_data    {json},
	processing_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (processing_status IN ('pending', 'processing', 'completed', 'failed')),
	error_message     TEXT,
	processed_at      {ts},
	resolution_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (resolution_status IN ('pending', 'created_patient', 'added_to_patient', 'skipped')),
	patient_id        {uuid},
	resolved_by       TEXT,
	resolved_at       {ts},
	created_at        {ts} NOT NULL,
	CONSTRAINT ocr_results_processed_at_chk
		CHECK ((processed_at IS NOT NULL) = (processing_status IN ('completed', 'failed'))),
	CONSTRAINT ocr_results_error_message_chk
		CHECK (error_message IS NULL OR processing_status = 'failed'),
	CONSTRAINT ocr_results_resolved_chk
		CHECK ((resolved_at IS NOT NULL) = (resolution_status <> 'pending')
			AND (resolved_by IS NOT NULL) = (resolution_status <> 'pending')),
	CONSTRAINT ocr_results_patient_chk
		CHECK (patient_id IS NOT NULL OR resolution_status NOT IN ('created_patient', 'added_to_patient'))
)`,
	`CREATE INDEX IF NOT EXISTS ocr_results_scan_id_idx ON ocr_results (scan_id)`,
	`CREATE INDEX IF NOT EXISTS ocr_results_status_idx ON ocr_results (processing_status, resolution_status)`,

	`CREATE TABLE IF NOT EXISTS ocr_field_mappings (
	id              {uuid} PRIMARY KEY,
	ocr_result_id   {uuid} NOT NULL REFERENCES ocr_results (id) ON DELETE CASCADE,
	patient_id      {uuid},
	field_name      TEXT NOT NULL,
	extracted_value TEXT NOT NULL,
	current_value   TEXT,
	confidence      {float} CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 1)),
	status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'applied', 'rejected')),
	applied_at      {ts},
	applied_by      TEXT,
	rejected_at     {ts},
	rejected_by     TEXT,
	created_at      {ts} NOT NULL,
	CONSTRAINT ocr_field_mappings_applied_chk
		CHECK ((applied_at IS NOT NULL) = (status = 'applied') AND (applied_by IS NOT NULL) = (status = 'applied')),
	CONSTRAINT ocr_field_mappings_rejected_chk
		CHECK ((rejected_at IS NOT NULL) = (status = 'rejected') AND (rejected_by IS NOT NULL) = (status = 'rejected'))
)`,
	`CREATE INDEX IF NOT EXISTS ocr_field_mappings_result_idx ON ocr_field_mappings (ocr_result_id)`,

	`CREATE TABLE IF NOT EXISTS patients (
	id            {uuid} PRIMARY KEY,
	first_name    TEXT,
	last_name     TEXT,
	date_of_birth TEXT,
	phone         TEXT,
	gender        TEXT,
	created_at    {ts} NOT NULL
)`,
}

func ddlReplacer(d string) *strings.Replacer {
	if d == dialect.Postgres {
		return strings.NewReplacer("{uuid}", "UUID", "{ts}", "TIMESTAMPTZ", "{json}", "JSONB", "{float}", "DOUBLE PRECISION")
	}
	// SQLite returns time.Time only for columns declared TIMESTAMP.
	return strings.NewReplacer("{uuid}", "TEXT", "{ts}", "TIMESTAMP", "{json}", "TEXT", "{float}", "REAL")
}

// Migrate creates the tables and indexes if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	r := ddlReplacer(d.dialect)
	for i, stmt := range ddl {
		if _, err := d.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	d.logger.Info("db.migrate.ok", "dialect", d.dialect, "statements", len(ddl))
	return nil
}
