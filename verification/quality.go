package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/cache"
	"github.com/hirewell/trustline/model"
)

// Grade boundaries for the overall quality score.
const (
	gradeAPlus = 90
	gradeA     = 80
	gradeB     = 70
	gradeC     = 60
)

// Metric scores below recommendationCutoff produce an improvement
// recommendation; below highPriorityCutoff it is high priority.
const (
	recommendationCutoff = 70
	highPriorityCutoff   = 50
)

// QualityAssessmentStrategy grades a posting across six weighted content
// metrics and emits targeted improvement recommendations.
type QualityAssessmentStrategy struct {
	service *Service
}

func (s *QualityAssessmentStrategy) Type() model.VerificationType {
	return model.TypeQualityAssessment
}

func (s *QualityAssessmentStrategy) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p QualityAssessmentPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	key := cache.Key(string(s.Type()), p.SubjectKey())
	var cached QualityAssessmentResult
	if s.service.fromCache(ctx, key, &cached) && cached.RecordID != "" {
		return &cached, nil
	}

	result, err := s.assess(ctx, p.JobID)
	if err != nil {
		return nil, err
	}

	s.service.toCache(ctx, key, result, s.service.TTL(s.Type()))
	return result, nil
}

func (s *QualityAssessmentStrategy) assess(ctx context.Context, jobID string) (*QualityAssessmentResult, error) {
	job, err := s.service.subjects.FindJob(ctx, jobID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}
	if job == nil {
		return nil, apierror.NotFound(fmt.Sprintf("job %s not found", jobID), nil)
	}

	company, err := s.service.subjects.FindCompany(ctx, job.CompanyID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}

	metrics := map[string]QualityMetric{
		"description":         scoreDescription(job),
		"company_info":        scoreCompanyInfo(company),
		"salary_transparency": scoreSalaryTransparency(job),
		"requirements":        scoreRequirements(job),
		"contact_info":        scoreContactInfo(job),
		"application_process": scoreApplicationProcess(job),
	}

	weights := s.service.cnf.Verification.QualityWeights
	weighted := make(map[string]WeightedSignal, len(metrics))
	for name, metric := range metrics {
		weighted[name] = WeightedSignal{Weight: weights[name], Signal: metric.Score}
	}
	overall := int(math.Round(WeightedScore(weighted, 100)))

	recommendations := buildRecommendations(metrics)

	status := model.VerificationVerified
	if overall < gradeC {
		status = model.VerificationRejected
	}

	checksDoc := map[string]interface{}{
		"overall_score":   overall,
		"grade":           gradeFor(overall),
		"recommendations": recommendations,
	}
	for name, metric := range metrics {
		checksDoc[name] = metric
	}

	record, err := model.NewVerificationRecord(s.Type(), status, checksDoc, s.service.TTL(s.Type()))
	if err != nil {
		return nil, apierror.Validation("could not build verification record", err)
	}
	record.JobID = jobID
	record.CompanyID = job.CompanyID
	record.SetOverallScore(float64(overall))

	if err := s.service.persist(ctx, record); err != nil {
		return nil, err
	}

	return &QualityAssessmentResult{
		RecordID:        record.RecordID,
		JobID:           jobID,
		Metrics:         metrics,
		OverallScore:    overall,
		Grade:           gradeFor(overall),
		Recommendations: recommendations,
	}, nil
}

func gradeFor(score int) string {
	switch {
	case score >= gradeAPlus:
		return "A+"
	case score >= gradeA:
		return "A"
	case score >= gradeB:
		return "B"
	case score >= gradeC:
		return "C"
	default:
		return "D"
	}
}

func scoreDescription(job *model.Job) QualityMetric {
	length := len(strings.TrimSpace(job.Description))
	switch {
	case length >= 500:
		return QualityMetric{Score: 100, Details: "thorough description"}
	case length >= 300:
		return QualityMetric{Score: 80, Details: "solid description"}
	case length >= 100:
		return QualityMetric{Score: 60, Details: "description could use more detail"}
	case length > 0:
		return QualityMetric{Score: 30, Details: "description is too short"}
	default:
		return QualityMetric{Score: 0, Details: "description is missing"}
	}
}

func scoreCompanyInfo(company *model.Company) QualityMetric {
	switch {
	case company == nil:
		return QualityMetric{Score: 20, Details: "posting references an unknown company"}
	case company.Verified:
		return QualityMetric{Score: 100, Details: "company is verified"}
	default:
		return QualityMetric{Score: 60, Details: "company exists but is not verified"}
	}
}

func scoreSalaryTransparency(job *model.Job) QualityMetric {
	switch {
	case job.SalaryMin > 0 && job.SalaryMax > 0:
		return QualityMetric{Score: 90, Details: "full salary range disclosed"}
	case job.HasSalaryRange():
		return QualityMetric{Score: 60, Details: "only one salary bound disclosed"}
	default:
		return QualityMetric{Score: 20, Details: "no salary information"}
	}
}

func scoreRequirements(job *model.Job) QualityMetric {
	count := len(job.Requirements)
	switch {
	case count >= 5:
		return QualityMetric{Score: 100, Details: fmt.Sprintf("%d requirements listed", count)}
	case count >= 3:
		return QualityMetric{Score: 80, Details: fmt.Sprintf("%d requirements listed", count)}
	case count >= 1:
		return QualityMetric{Score: 50, Details: fmt.Sprintf("only %d requirement(s) listed", count)}
	default:
		return QualityMetric{Score: 10, Details: "no requirements listed"}
	}
}

func scoreContactInfo(job *model.Job) QualityMetric {
	switch {
	case job.ContactEmail != "" && job.HowToApply != "":
		return QualityMetric{Score: 100, Details: "contact email and application instructions present"}
	case job.HasContactInfo():
		return QualityMetric{Score: 70, Details: "partial contact information"}
	default:
		return QualityMetric{Score: 0, Details: "no contact information"}
	}
}

func scoreApplicationProcess(job *model.Job) QualityMetric {
	instructions := strings.TrimSpace(job.HowToApply)
	switch {
	case len(instructions) >= 50:
		return QualityMetric{Score: 100, Details: "clear application instructions"}
	case len(instructions) > 0:
		return QualityMetric{Score: 70, Details: "minimal application instructions"}
	default:
		return QualityMetric{Score: 0, Details: "no application instructions"}
	}
}

func buildRecommendations(metrics map[string]QualityMetric) []QualityRecommendation {
	var recommendations []QualityRecommendation
	for name, metric := range metrics {
		if metric.Score >= recommendationCutoff {
			continue
		}
		priority := "medium"
		if metric.Score < highPriorityCutoff {
			priority = "high"
		}
		recommendations = append(recommendations, QualityRecommendation{
			Metric:   name,
			Priority: priority,
			Message:  fmt.Sprintf("improve %s: %s", name, metric.Details),
		})
	}
	return recommendations
}
