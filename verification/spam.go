package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/cache"
	"github.com/hirewell/trustline/model"
	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const (
	// duplicateContentThreshold is the levenshtein similarity ratio above
	// which two job descriptions count as the same posting.
	duplicateContentThreshold = 0.85

	// recentJobsWindow caps how many of the company's latest postings are
	// compared for duplicate content.
	recentJobsWindow = 10

	// minDescriptionLength below which a posting reads as low effort.
	minDescriptionLength = 100
)

// suspiciousKeywords are phrases that rarely appear in legitimate postings.
var suspiciousKeywords = []string{
	"work from home guaranteed",
	"no experience necessary",
	"earn money fast",
	"unlimited earning",
	"be your own boss",
	"pyramid",
	"mlm",
	"wire transfer",
	"registration fee",
	"pay to apply",
}

// SpamCheckStrategy scores a job posting against six weighted spam signals
// and flags it when the aggregate crosses the configured threshold.
type SpamCheckStrategy struct {
	service *Service
}

func (s *SpamCheckStrategy) Type() model.VerificationType {
	return model.TypeSpamCheck
}

func (s *SpamCheckStrategy) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p SpamCheckPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	key := cache.Key(string(s.Type()), p.SubjectKey())
	var cached SpamCheckResult
	if s.service.fromCache(ctx, key, &cached) && cached.RecordID != "" {
		return &cached, nil
	}

	result, err := s.check(ctx, p.JobID)
	if err != nil {
		return nil, err
	}

	s.service.toCache(ctx, key, result, s.service.TTL(s.Type()))
	return result, nil
}

func (s *SpamCheckStrategy) check(ctx context.Context, jobID string) (*SpamCheckResult, error) {
	job, err := s.service.subjects.FindJob(ctx, jobID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}
	if job == nil {
		return nil, apierror.NotFound(fmt.Sprintf("job %s not found", jobID), nil)
	}

	signals := map[string]SpamSignal{}

	duplicate, err := s.checkDuplicateContent(ctx, job)
	if err != nil {
		return nil, err
	}
	signals["duplicate_content"] = duplicate
	signals["suspicious_keywords"] = checkSuspiciousKeywords(job)
	signals["unrealistic_salary"] = s.checkUnrealisticSalary(ctx, job)
	signals["description_quality"] = checkDescriptionQuality(job)

	reputation, err := s.checkCompanyReputation(ctx, job)
	if err != nil {
		return nil, err
	}
	signals["company_reputation"] = reputation
	signals["contact_info"] = checkContactInfo(job)

	weights := s.service.cnf.Verification.SpamWeights
	weighted := make(map[string]WeightedSignal, len(signals))
	for name, signal := range signals {
		value := 0.0
		if signal.Spammy {
			value = signal.Confidence
		}
		weighted[name] = WeightedSignal{Weight: weights[name], Signal: value}
	}
	score := WeightedScore(weighted, 1.0)

	checksDoc := map[string]interface{}{"spam_score": score}
	for name, signal := range signals {
		checksDoc[name] = signal
	}

	threshold := s.service.cnf.Verification.SpamThreshold
	isSpam := score > threshold

	status := model.VerificationVerified
	if isSpam {
		status = model.VerificationRejected
	}

	record, err := model.NewVerificationRecord(s.Type(), status, checksDoc, s.service.TTL(s.Type()))
	if err != nil {
		return nil, apierror.Validation("could not build verification record", err)
	}
	record.JobID = jobID
	record.CompanyID = job.CompanyID
	record.SetSpamScore(score, threshold)

	if err := s.service.persist(ctx, record); err != nil {
		return nil, err
	}

	if isSpam {
		if err := s.service.subjects.FlagJobAsSpam(ctx, jobID); err != nil {
			logrus.Warnf("failed to flag job %s as spam: %v", jobID, err)
		}
	}

	return &SpamCheckResult{
		RecordID:  record.RecordID,
		JobID:     jobID,
		Signals:   signals,
		SpamScore: *record.SpamScore,
		IsSpam:    isSpam,
	}, nil
}

// checkDuplicateContent compares the posting's description against the
// company's recent postings using levenshtein similarity.
func (s *SpamCheckStrategy) checkDuplicateContent(ctx context.Context, job *model.Job) (SpamSignal, error) {
	recent, err := s.service.subjects.FindRecentJobsByCompany(ctx, job.CompanyID, recentJobsWindow)
	if err != nil {
		return SpamSignal{}, apierror.Transient("subject store lookup failed", err)
	}

	best := 0.0
	bestJob := ""
	for _, other := range recent {
		if other.JobID == job.JobID || other.Description == "" {
			continue
		}
		similarity := levenshtein.RatioForStrings([]rune(job.Description), []rune(other.Description), levenshtein.DefaultOptions)
		if similarity > best {
			best = similarity
			bestJob = other.JobID
		}
	}

	if best >= duplicateContentThreshold {
		return SpamSignal{
			Spammy:     true,
			Confidence: best,
			Details:    fmt.Sprintf("description %.0f%% similar to job %s", best*100, bestJob),
		}, nil
	}
	return SpamSignal{Confidence: 1 - best, Details: "no near-duplicate posting found"}, nil
}

func checkSuspiciousKeywords(job *model.Job) SpamSignal {
	text := strings.ToLower(job.Title + " " + job.Description)
	var hits []string
	for _, keyword := range suspiciousKeywords {
		if strings.Contains(text, keyword) {
			hits = append(hits, keyword)
		}
	}
	if len(hits) == 0 {
		return SpamSignal{Confidence: 0.9, Details: "no suspicious phrasing"}
	}
	confidence := clamp01(0.5 + 0.2*float64(len(hits)))
	return SpamSignal{
		Spammy:     true,
		Confidence: confidence,
		Details:    fmt.Sprintf("suspicious phrasing: %s", strings.Join(hits, ", ")),
	}
}

// checkUnrealisticSalary flags ranges far outside the market benchmark. The
// market adapter degrades to its fallback rather than erroring, so this
// signal never fails the task.
func (s *SpamCheckStrategy) checkUnrealisticSalary(ctx context.Context, job *model.Job) SpamSignal {
	if !job.HasSalaryRange() {
		return SpamSignal{Confidence: 0.5, Details: "no salary disclosed, nothing to compare"}
	}

	stats := s.service.marketStats(ctx, job)

	if job.SalaryMax > 2*stats.MaxSalary {
		return SpamSignal{
			Spammy:     true,
			Confidence: stats.Confidence,
			Details:    fmt.Sprintf("salary max %d is more than double the market max %d", job.SalaryMax, stats.MaxSalary),
		}
	}
	if job.SalaryMin > 0 && float64(job.SalaryMin) < 0.5*float64(stats.MinSalary) {
		return SpamSignal{
			Spammy:     true,
			Confidence: stats.Confidence,
			Details:    fmt.Sprintf("salary min %d is below half the market min %d", job.SalaryMin, stats.MinSalary),
		}
	}
	return SpamSignal{Confidence: stats.Confidence, Details: "salary range within market bounds"}
}

func checkDescriptionQuality(job *model.Job) SpamSignal {
	length := len(strings.TrimSpace(job.Description))
	if length < minDescriptionLength {
		return SpamSignal{
			Spammy:     true,
			Confidence: 0.7,
			Details:    fmt.Sprintf("description is %d characters, below the %d minimum", length, minDescriptionLength),
		}
	}
	return SpamSignal{Confidence: 0.8, Details: "description length acceptable"}
}

func (s *SpamCheckStrategy) checkCompanyReputation(ctx context.Context, job *model.Job) (SpamSignal, error) {
	company, err := s.service.subjects.FindCompany(ctx, job.CompanyID)
	if err != nil {
		return SpamSignal{}, apierror.Transient("subject store lookup failed", err)
	}
	if company == nil {
		return SpamSignal{Spammy: true, Confidence: 0.9, Details: "posting references an unknown company"}, nil
	}
	if !company.Verified {
		return SpamSignal{Spammy: true, Confidence: 0.6, Details: "company is not verified"}, nil
	}
	return SpamSignal{Confidence: 0.9, Details: "company is verified"}, nil
}

func checkContactInfo(job *model.Job) SpamSignal {
	if job.HasContactInfo() {
		return SpamSignal{Confidence: 0.9, Details: "contact information present"}
	}
	return SpamSignal{Spammy: true, Confidence: 0.8, Details: "no contact information on the posting"}
}
