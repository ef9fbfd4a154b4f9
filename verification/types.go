package verification

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hirewell/trustline/model"
)

// CheckResult is one independent company check outcome.
type CheckResult struct {
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details"`
}

// SpamSignal is one weighted spam check outcome. Only spammy signals
// contribute to the aggregate score.
type SpamSignal struct {
	Spammy     bool    `json:"spammy"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details"`
}

// QualityMetric is one weighted quality score in [0, 100].
type QualityMetric struct {
	Score   float64 `json:"score"`
	Details string  `json:"details"`
}

type OverallResult struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
}

type CompanyVerificationResult struct {
	RecordID  string                 `json:"record_id"`
	CompanyID string                 `json:"company_id"`
	Checks    map[string]CheckResult `json:"checks"`
	Overall   OverallResult          `json:"overall"`
}

type SpamCheckResult struct {
	RecordID  string                `json:"record_id"`
	JobID     string                `json:"job_id"`
	Signals   map[string]SpamSignal `json:"signals"`
	SpamScore float64               `json:"spam_score"`
	IsSpam    bool                  `json:"is_spam"`
}

// SalaryComparison is the oracle's judgement of provided vs market salary.
type SalaryComparison struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Comparison string   `json:"comparison"`
	Reasons    []string `json:"reasons"`
}

type SalaryVerificationResult struct {
	RecordID   string            `json:"record_id"`
	JobID      string            `json:"job_id"`
	MarketData model.SalaryStats `json:"market_data"`
	Comparison SalaryComparison  `json:"comparison"`
}

type RecommendationAction string

const (
	ActionAllow RecommendationAction = "allow"
	ActionWarn  RecommendationAction = "warn"
	ActionBlock RecommendationAction = "block"
)

type Recommendation struct {
	Action RecommendationAction `json:"action"`
	Reason string               `json:"reason"`
}

type DuplicateCheckResult struct {
	RecordID         string         `json:"record_id"`
	UserID           string         `json:"user_id"`
	JobID            string         `json:"job_id"`
	IsDuplicate      bool           `json:"is_duplicate"`
	HasSimilarRecent bool           `json:"has_similar_recent"`
	Recommendation   Recommendation `json:"recommendation"`
}

type QualityRecommendation struct {
	Metric   string `json:"metric"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

type QualityAssessmentResult struct {
	RecordID        string                   `json:"record_id"`
	JobID           string                   `json:"job_id"`
	Metrics         map[string]QualityMetric `json:"metrics"`
	OverallScore    int                      `json:"overall_score"`
	Grade           string                   `json:"grade"`
	Recommendations []QualityRecommendation  `json:"recommendations"`
}

// Task payloads. Each carries the subject reference(s) its strategy needs
// and exposes the partition key used for per-subject ordering.

type CompanyVerificationPayload struct {
	CompanyID string `json:"company_id"`
}

func (p CompanyVerificationPayload) Validate() error {
	return validation.ValidateStruct(&p, validation.Field(&p.CompanyID, validation.Required))
}

func (p CompanyVerificationPayload) SubjectKey() string { return p.CompanyID }

type SpamCheckPayload struct {
	JobID string `json:"job_id"`
}

func (p SpamCheckPayload) Validate() error {
	return validation.ValidateStruct(&p, validation.Field(&p.JobID, validation.Required))
}

func (p SpamCheckPayload) SubjectKey() string { return p.JobID }

type SalaryVerificationPayload struct {
	JobID string `json:"job_id"`
}

func (p SalaryVerificationPayload) Validate() error {
	return validation.ValidateStruct(&p, validation.Field(&p.JobID, validation.Required))
}

func (p SalaryVerificationPayload) SubjectKey() string { return p.JobID }

type DuplicateCheckPayload struct {
	UserID string `json:"user_id"`
	JobID  string `json:"job_id"`
}

func (p DuplicateCheckPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.UserID, validation.Required),
		validation.Field(&p.JobID, validation.Required),
	)
}

func (p DuplicateCheckPayload) SubjectKey() string {
	return fmt.Sprintf("%s:%s", p.UserID, p.JobID)
}

type QualityAssessmentPayload struct {
	JobID string `json:"job_id"`
}

func (p QualityAssessmentPayload) Validate() error {
	return validation.ValidateStruct(&p, validation.Field(&p.JobID, validation.Required))
}

func (p QualityAssessmentPayload) SubjectKey() string { return p.JobID }
