package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/cache"
	"github.com/hirewell/trustline/model"
)

// similarRecentWindow bounds the look-back for applications to other jobs at
// the same company.
const similarRecentWindow = 24 * time.Hour

// DuplicateCheckStrategy decides whether a user's application should be
// blocked (exact active duplicate), warned (recent application to the same
// company), or allowed.
type DuplicateCheckStrategy struct {
	service *Service
}

func (s *DuplicateCheckStrategy) Type() model.VerificationType {
	return model.TypeDuplicateCheck
}

func (s *DuplicateCheckStrategy) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p DuplicateCheckPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	key := cache.Key(string(s.Type()), p.SubjectKey())
	var cached DuplicateCheckResult
	if s.service.fromCache(ctx, key, &cached) && cached.RecordID != "" {
		return &cached, nil
	}

	result, err := s.check(ctx, p.UserID, p.JobID)
	if err != nil {
		return nil, err
	}

	s.service.toCache(ctx, key, result, s.service.TTL(s.Type()))
	return result, nil
}

func (s *DuplicateCheckStrategy) check(ctx context.Context, userID, jobID string) (*DuplicateCheckResult, error) {
	job, err := s.service.subjects.FindJob(ctx, jobID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}
	if job == nil {
		return nil, apierror.NotFound(fmt.Sprintf("job %s not found", jobID), nil)
	}

	applications, err := s.service.subjects.FindApplicationsByUserAndJob(ctx, userID, jobID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}

	isDuplicate := false
	for _, application := range applications {
		if application.Active() {
			isDuplicate = true
			break
		}
	}

	// both findings are reported independently; the recommendation applies
	// block > warn > allow precedence
	since := time.Now().Add(-similarRecentWindow)
	similar, err := s.service.subjects.FindSimilarRecentApplications(ctx, userID, job.CompanyID, since)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}
	hasSimilarRecent := len(similar) > 0

	recommendation := Recommendation{Action: ActionAllow, Reason: "no duplicate or recent similar application"}
	switch {
	case isDuplicate:
		recommendation = Recommendation{Action: ActionBlock, Reason: "user already has an active application for this job"}
	case hasSimilarRecent:
		recommendation = Recommendation{Action: ActionWarn, Reason: "user applied to this company within the last 24 hours"}
	}

	status := model.VerificationVerified
	if recommendation.Action == ActionBlock {
		status = model.VerificationRejected
	}

	checksDoc := map[string]interface{}{
		"is_duplicate":       isDuplicate,
		"has_similar_recent": hasSimilarRecent,
		"active_count":       len(applications),
		"recommendation":     recommendation,
	}

	record, err := model.NewVerificationRecord(s.Type(), status, checksDoc, s.service.TTL(s.Type()))
	if err != nil {
		return nil, apierror.Validation("could not build verification record", err)
	}
	record.UserID = userID
	record.JobID = jobID
	record.CompanyID = job.CompanyID

	if err := s.service.persist(ctx, record); err != nil {
		return nil, err
	}

	return &DuplicateCheckResult{
		RecordID:         record.RecordID,
		UserID:           userID,
		JobID:            jobID,
		IsDuplicate:      isDuplicate,
		HasSimilarRecent: hasSimilarRecent,
		Recommendation:   recommendation,
	}, nil
}
