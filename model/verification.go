package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// VerificationType is the closed set of verification tasks the pipeline can
// run. Unknown tags are rejected at dispatch time.
type VerificationType string

const (
	TypeCompanyVerification VerificationType = "company_verification"
	TypeSpamCheck           VerificationType = "spam_check"
	TypeSalaryVerification  VerificationType = "salary_verification"
	TypeDuplicateCheck      VerificationType = "duplicate_check"
	TypeQualityAssessment   VerificationType = "quality_assessment"
)

// quality tasks historically arrived on their own topic name.
const legacyQualityTopic = "quality_tasks"

func AllVerificationTypes() []VerificationType {
	return []VerificationType{
		TypeCompanyVerification,
		TypeSpamCheck,
		TypeSalaryVerification,
		TypeDuplicateCheck,
		TypeQualityAssessment,
	}
}

// ParseVerificationType maps an incoming task tag to a VerificationType.
// The legacy "quality_tasks" topic name is accepted as an alias.
func ParseVerificationType(tag string) (VerificationType, error) {
	if tag == legacyQualityTopic {
		return TypeQualityAssessment, nil
	}
	t := VerificationType(tag)
	for _, known := range AllVerificationTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown verification type %q", tag)
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
	VerificationExpired  VerificationStatus = "expired"
)

// CurrentSchemaVersion is bumped whenever VerificationRecord gains fields that
// require a backfill of existing rows.
const CurrentSchemaVersion = 2

// maxChecksBytes caps the serialized size of the opaque checks document.
const maxChecksBytes = 64 * 1024

// VerificationRecord is the persisted outcome of one verification run.
// Subject references (company, job, user) are weak references to entities the
// pipeline does not own. ExpiresAt is always set; records past it are treated
// as not found, never as an error.
type VerificationRecord struct {
	RecordID      string                 `json:"record_id"`
	Type          VerificationType       `json:"type"`
	CompanyID     string                 `json:"company_id,omitempty"`
	JobID         string                 `json:"job_id,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	Checks        map[string]interface{} `json:"checks"`
	Status        VerificationStatus     `json:"status"`
	OverallScore  *float64               `json:"overall_score,omitempty"`
	SpamScore     *float64               `json:"spam_score,omitempty"`
	IsSpam        *bool                  `json:"is_spam,omitempty"`
	VerifiedAt    *time.Time             `json:"verified_at,omitempty"`
	CheckedAt     *time.Time             `json:"checked_at,omitempty"`
	AssessedAt    *time.Time             `json:"assessed_at,omitempty"`
	ExpiresAt     time.Time              `json:"expires_at"`
	SchemaVersion int                    `json:"schema_version"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// NewVerificationRecord builds a record with all derived fields computed up
// front: identity, expiry, schema version and the timestamp matching the
// initial status. Nothing mutates the record implicitly after this point.
func NewVerificationRecord(typ VerificationType, status VerificationStatus, checks map[string]interface{}, ttl time.Duration) (*VerificationRecord, error) {
	now := time.Now()
	record := &VerificationRecord{
		RecordID:      GenerateUUIDWithSuffix("vrf"),
		Type:          typ,
		Checks:        checks,
		Status:        status,
		ExpiresAt:     now.Add(ttl),
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := record.validateChecksSize(); err != nil {
		return nil, err
	}
	record.stampStatusTime(now)
	return record, nil
}

func (r *VerificationRecord) validateChecksSize() error {
	if r.Checks == nil {
		return nil
	}
	raw, err := json.Marshal(r.Checks)
	if err != nil {
		return errors.Wrap(err, "checks document is not serializable")
	}
	if len(raw) > maxChecksBytes {
		return fmt.Errorf("checks document is %d bytes, cap is %d", len(raw), maxChecksBytes)
	}
	return nil
}

// stampStatusTime records the type-specific timestamp for a terminal status.
// Company and salary verifications carry verified_at, spam and duplicate
// checks carry checked_at, quality assessments carry assessed_at.
func (r *VerificationRecord) stampStatusTime(now time.Time) {
	if r.Status != VerificationVerified && r.Status != VerificationRejected {
		return
	}
	switch r.Type {
	case TypeCompanyVerification, TypeSalaryVerification:
		r.VerifiedAt = &now
	case TypeSpamCheck, TypeDuplicateCheck:
		r.CheckedAt = &now
	case TypeQualityAssessment:
		r.AssessedAt = &now
	}
}

// TransitionStatus moves a pending record to a terminal status. Terminal
// statuses never regress; the explicit unlock path lives outside this core.
func (r *VerificationRecord) TransitionStatus(next VerificationStatus) error {
	if r.Status == next {
		return nil
	}
	if r.Status != VerificationPending {
		return fmt.Errorf("cannot transition verification record from %s to %s", r.Status, next)
	}
	if next != VerificationVerified && next != VerificationRejected {
		return fmt.Errorf("invalid verification status transition target %s", next)
	}
	now := time.Now()
	r.Status = next
	r.UpdatedAt = now
	r.stampStatusTime(now)
	return nil
}

// SetOverallScore clamps the score into [0, 100] before storing it.
func (r *VerificationRecord) SetOverallScore(score float64) {
	clamped := math.Max(0, math.Min(100, score))
	r.OverallScore = &clamped
}

// SetSpamScore clamps the score into [0, 1] and derives the spam flag from
// the supplied threshold.
func (r *VerificationRecord) SetSpamScore(score, threshold float64) {
	clamped := math.Max(0, math.Min(1, score))
	isSpam := clamped > threshold
	r.SpamScore = &clamped
	r.IsSpam = &isSpam
}

// Expired reports whether the record is past its TTL at the given instant.
func (r *VerificationRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// CrossValidateSalary guards salary-bearing records against obviously broken
// inputs: a provided salary below half the market minimum forces the embedded
// verification to failed with an explanatory note. Missing or malformed
// fields leave the record untouched.
func (r *VerificationRecord) CrossValidateSalary() {
	if r.Type != TypeSalaryVerification || r.Checks == nil {
		return
	}
	provided, ok := nestedNumber(r.Checks, "provided_salary", "amount")
	if !ok {
		return
	}
	marketMin, ok := nestedNumber(r.Checks, "market_data", "min_salary")
	if !ok {
		return
	}
	if provided >= 0.5*marketMin {
		return
	}
	verification, _ := r.Checks["verification"].(map[string]interface{})
	if verification == nil {
		verification = map[string]interface{}{}
	}
	verification["status"] = "failed"
	verification["note"] = fmt.Sprintf("provided salary %.0f is below half the market minimum %.0f", provided, marketMin)
	r.Checks["verification"] = verification
}

func nestedNumber(doc map[string]interface{}, key, field string) (float64, bool) {
	inner, ok := doc[key].(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := inner[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// TaskMessage is the queue input consumed by the dispatcher. Payload stays
// raw until the strategy for Type decodes it.
type TaskMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id"`
}

func (m TaskMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Type, validation.Required),
		validation.Field(&m.Payload, validation.Required),
		validation.Field(&m.RequestID, validation.Required),
	)
}

// ResultMessage is published on successful verification, echoing the task's
// request id so the caller can correlate.
type ResultMessage struct {
	Type      VerificationType `json:"type"`
	Payload   interface{}      `json:"payload"`
	RequestID string           `json:"request_id"`
}

// DeadLetterMessage is published when a task exhausts its retries or carries
// an unknown type.
type DeadLetterMessage struct {
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}
