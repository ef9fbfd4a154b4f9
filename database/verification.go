package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/model"
	"github.com/lib/pq"
)

const verificationColumns = `record_id, type, company_id, job_id, user_id, checks, status,
	overall_score, spam_score, is_spam, verified_at, checked_at, assessed_at,
	expires_at, schema_version, created_at, updated_at`

// CreateVerificationRecord persists a verification record, filling in the
// derived fields a caller may have left unset: identity, timestamps, schema
// version and the TTL-based expiry.
func (d *Datasource) CreateVerificationRecord(ctx context.Context, record *model.VerificationRecord) error {
	applyRecordDefaults(record)

	checksJSON, err := json.Marshal(record.Checks)
	if err != nil {
		return apierror.Validation("checks document is not serializable", err)
	}

	query := `
		INSERT INTO trustline.verification_records (record_id, type, company_id, job_id, user_id, checks, status, overall_score, spam_score, is_spam, verified_at, checked_at, assessed_at, expires_at, schema_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = d.Conn.ExecContext(
		ctx,
		query,
		record.RecordID,
		record.Type,
		nullString(record.CompanyID),
		nullString(record.JobID),
		nullString(record.UserID),
		checksJSON,
		record.Status,
		record.OverallScore,
		record.SpamScore,
		record.IsSpam,
		record.VerifiedAt,
		record.CheckedAt,
		record.AssessedAt,
		record.ExpiresAt,
		record.SchemaVersion,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apierror.Validation(fmt.Sprintf("verification record %s already exists", record.RecordID), err)
		}
		return apierror.Persistence("failed to insert verification record", err)
	}
	return nil
}

// applyRecordDefaults computes the fields the persistence layer owns when the
// caller left them unset. ExpiresAt always ends up populated: a record with no
// explicit expiry gets created_at plus the configured TTL for its type.
func applyRecordDefaults(record *model.VerificationRecord) {
	now := time.Now()
	if record.RecordID == "" {
		record.RecordID = model.GenerateUUIDWithSuffix("vrf")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if record.SchemaVersion == 0 {
		record.SchemaVersion = model.CurrentSchemaVersion
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(recordTTL(record.Type))
	}
}

// recordTTL resolves the configured TTL for a type, falling back to a day when
// config is unavailable (bulk backfill jobs run outside the worker process).
func recordTTL(typ model.VerificationType) time.Duration {
	cnf, err := config.Fetch()
	if err != nil {
		return 24 * time.Hour
	}
	v := cnf.Verification
	switch typ {
	case model.TypeCompanyVerification:
		return time.Duration(v.CompanyTTLSeconds) * time.Second
	case model.TypeSpamCheck:
		return time.Duration(v.SpamTTLSeconds) * time.Second
	case model.TypeSalaryVerification:
		return time.Duration(v.SalaryTTLSeconds) * time.Second
	case model.TypeDuplicateCheck:
		return time.Duration(v.DuplicateTTLSeconds) * time.Second
	case model.TypeQualityAssessment:
		return time.Duration(v.QualityTTLSeconds) * time.Second
	default:
		return 24 * time.Hour
	}
}

// GetVerificationByID retrieves a record by its ID regardless of expiry.
func (d *Datasource) GetVerificationByID(ctx context.Context, id string) (*model.VerificationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM trustline.verification_records
		WHERE record_id = $1
	`, verificationColumns)
	return d.scanVerification(d.Conn.QueryRowContext(ctx, query, id))
}

// GetCurrentVerification returns the latest record for a subject that has not
// passed its expiry. An expired record is indistinguishable from no record.
func (d *Datasource) GetCurrentVerification(ctx context.Context, typ model.VerificationType, subjectKey string) (*model.VerificationRecord, error) {
	where, args, err := subjectPredicate(typ, subjectKey)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM trustline.verification_records
		WHERE type = $1 AND %s AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`, verificationColumns, where)

	return d.scanVerification(d.Conn.QueryRowContext(ctx, query, append([]interface{}{typ}, args...)...))
}

// subjectPredicate maps a subject key to the column(s) the type keys records
// by. Duplicate checks key on the composite "userID:jobID".
func subjectPredicate(typ model.VerificationType, subjectKey string) (string, []interface{}, error) {
	switch typ {
	case model.TypeCompanyVerification:
		return "company_id = $2", []interface{}{subjectKey}, nil
	case model.TypeSpamCheck, model.TypeSalaryVerification, model.TypeQualityAssessment:
		return "job_id = $2", []interface{}{subjectKey}, nil
	case model.TypeDuplicateCheck:
		parts := strings.SplitN(subjectKey, ":", 2)
		if len(parts) != 2 {
			return "", nil, apierror.Validation("duplicate check subject key must be userID:jobID", subjectKey)
		}
		return "user_id = $2 AND job_id = $3", []interface{}{parts[0], parts[1]}, nil
	default:
		return "", nil, apierror.Validation("unknown verification type", string(typ))
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Datasource) scanVerification(row rowScanner) (*model.VerificationRecord, error) {
	var record model.VerificationRecord
	var companyID, jobID, userID sql.NullString
	var checksJSON []byte

	err := row.Scan(
		&record.RecordID,
		&record.Type,
		&companyID,
		&jobID,
		&userID,
		&checksJSON,
		&record.Status,
		&record.OverallScore,
		&record.SpamScore,
		&record.IsSpam,
		&record.VerifiedAt,
		&record.CheckedAt,
		&record.AssessedAt,
		&record.ExpiresAt,
		&record.SchemaVersion,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Return nil if not found
	}
	if err != nil {
		return nil, apierror.Persistence("failed to read verification record", err)
	}

	record.CompanyID = companyID.String
	record.JobID = jobID.String
	record.UserID = userID.String

	if len(checksJSON) > 0 {
		if err := json.Unmarshal(checksJSON, &record.Checks); err != nil {
			return nil, apierror.Persistence("stored checks document is corrupt", err)
		}
	}
	return &record, nil
}

// BulkInsertFailure reports one record that could not be inserted during a
// bulk load. The batch carries no ordering guarantee; surviving rows stay.
type BulkInsertFailure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// BulkInsertVerificationRecords inserts a batch without ordering guarantees.
// Each row succeeds or fails on its own; the count of inserted rows and the
// per-row failures come back together.
func (d *Datasource) BulkInsertVerificationRecords(ctx context.Context, records []*model.VerificationRecord) (int, []BulkInsertFailure) {
	inserted := 0
	var failures []BulkInsertFailure
	for _, record := range records {
		if err := d.CreateVerificationRecord(ctx, record); err != nil {
			failures = append(failures, BulkInsertFailure{RecordID: record.RecordID, Reason: err.Error()})
			continue
		}
		inserted++
	}
	return inserted, failures
}

// MigrateSchema backfills rows written before the expiry column existed:
// missing expires_at becomes created_at plus the current TTL for the row's
// type, and the row is stamped with the current schema version.
func (d *Datasource) MigrateSchema(ctx context.Context) (int64, error) {
	var total int64
	for _, typ := range model.AllVerificationTypes() {
		ttl := recordTTL(typ)
		result, err := d.Conn.ExecContext(ctx, `
			UPDATE trustline.verification_records
			SET expires_at = COALESCE(expires_at, created_at + $1 * INTERVAL '1 second'),
				schema_version = $2,
				updated_at = NOW()
			WHERE type = $3 AND schema_version < $2
		`, int64(ttl.Seconds()), model.CurrentSchemaVersion, typ)
		if err != nil {
			return total, apierror.Persistence("schema backfill failed", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, apierror.Persistence("schema backfill failed", err)
		}
		total += affected
	}
	return total, nil
}

// DeleteExpiredVerificationRecords removes records whose expiry is in the
// past. Reads already treat them as absent; this reclaims the rows.
func (d *Datasource) DeleteExpiredVerificationRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM trustline.verification_records
		WHERE expires_at < $1
	`, olderThan)
	if err != nil {
		return 0, apierror.Persistence("failed to delete expired verification records", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
