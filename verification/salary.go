package verification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/cache"
	"github.com/hirewell/trustline/model"
	"github.com/sirupsen/logrus"
)

// SalaryVerificationStrategy compares a posting's disclosed salary range
// against market benchmarks with an oracle judgement, cross-validates the
// numbers, and stamps the posting's salaryVerified flag.
type SalaryVerificationStrategy struct {
	service *Service
}

func (s *SalaryVerificationStrategy) Type() model.VerificationType {
	return model.TypeSalaryVerification
}

func (s *SalaryVerificationStrategy) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p SalaryVerificationPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	key := cache.Key(string(s.Type()), p.SubjectKey())
	var cached SalaryVerificationResult
	if s.service.fromCache(ctx, key, &cached) && cached.RecordID != "" {
		return &cached, nil
	}

	var result *SalaryVerificationResult
	err := s.service.withSubjectLock(ctx, s.Type(), p.SubjectKey(), func() error {
		var innerErr error
		result, innerErr = s.verify(ctx, p.JobID)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	s.service.toCache(ctx, key, result, s.service.TTL(s.Type()))
	return result, nil
}

func (s *SalaryVerificationStrategy) verify(ctx context.Context, jobID string) (*SalaryVerificationResult, error) {
	job, err := s.service.subjects.FindJob(ctx, jobID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}
	if job == nil {
		return nil, apierror.NotFound(fmt.Sprintf("job %s not found", jobID), nil)
	}

	stats := s.service.marketStats(ctx, job)

	var comparison SalaryComparison
	if !job.HasSalaryRange() {
		comparison = SalaryComparison{
			IsValid:    false,
			Confidence: 1,
			Comparison: "not_disclosed",
			Reasons:    []string{"posting discloses no salary range"},
		}
	} else {
		comparison, err = s.compare(ctx, job, stats)
		if err != nil {
			return nil, err
		}
	}

	provided := providedSalary(job)

	record, err := s.buildRecord(job, stats, comparison, provided)
	if err != nil {
		return nil, err
	}

	if err := s.service.persist(ctx, record); err != nil {
		return nil, err
	}

	verified := record.Status == model.VerificationVerified
	if err := s.service.subjects.MarkJobSalaryVerified(ctx, jobID, verified); err != nil {
		logrus.Warnf("failed to update salary_verified flag for job %s: %v", jobID, err)
	}

	return &SalaryVerificationResult{
		RecordID:   record.RecordID,
		JobID:      jobID,
		MarketData: *stats,
		Comparison: comparison,
	}, nil
}

func (s *SalaryVerificationStrategy) compare(ctx context.Context, job *model.Job, stats *model.SalaryStats) (SalaryComparison, error) {
	prompt := fmt.Sprintf(`Judge whether the salary range disclosed by a job posting is consistent with the market benchmark.

Posting: title %q, location %q, experience level %q.
Disclosed range: %d to %d %s.
Market benchmark: min %d, max %d, median %d %s (confidence %.1f).

Respond with a JSON object:
{"is_valid": bool, "confidence": number between 0 and 1, "comparison": "below_market"|"within_market"|"above_market", "reasons": [string]}.`,
		job.Title, job.Location, job.ExperienceLevel,
		job.SalaryMin, job.SalaryMax, job.SalaryCurrency,
		stats.MinSalary, stats.MaxSalary, stats.MedianSalary, stats.Currency, stats.Confidence)

	return askSalaryComparison(ctx, s.service.oracle, prompt)
}

// providedSalary collapses the disclosed range to a single comparable amount:
// the midpoint when both bounds are present, the disclosed bound otherwise.
func providedSalary(job *model.Job) int64 {
	switch {
	case job.SalaryMin > 0 && job.SalaryMax > 0:
		return (job.SalaryMin + job.SalaryMax) / 2
	case job.SalaryMin > 0:
		return job.SalaryMin
	default:
		return job.SalaryMax
	}
}

func (s *SalaryVerificationStrategy) buildRecord(job *model.Job, stats *model.SalaryStats, comparison SalaryComparison, provided int64) (*model.VerificationRecord, error) {
	verificationStatus := "passed"
	if !comparison.IsValid {
		verificationStatus = "failed"
	}

	checksDoc := map[string]interface{}{
		"provided_salary": map[string]interface{}{
			"amount":   float64(provided),
			"min":      job.SalaryMin,
			"max":      job.SalaryMax,
			"currency": job.SalaryCurrency,
		},
		"market_data": map[string]interface{}{
			"min_salary":    float64(stats.MinSalary),
			"max_salary":    float64(stats.MaxSalary),
			"median_salary": float64(stats.MedianSalary),
			"currency":      stats.Currency,
			"confidence":    stats.Confidence,
		},
		"comparison":   comparison,
		"verification": map[string]interface{}{"status": verificationStatus},
	}

	status := model.VerificationRejected
	if comparison.IsValid && (provided == 0 || float64(provided) >= 0.5*float64(stats.MinSalary)) {
		status = model.VerificationVerified
	}

	record, err := model.NewVerificationRecord(s.Type(), status, checksDoc, s.service.TTL(s.Type()))
	if err != nil {
		return nil, apierror.Validation("could not build verification record", err)
	}
	record.JobID = job.JobID
	record.CompanyID = job.CompanyID
	record.SetOverallScore(comparison.Confidence * 100)
	record.CrossValidateSalary()
	return record, nil
}
