package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/cache"
	"github.com/hirewell/trustline/model"
	"github.com/sirupsen/logrus"
)

// minEmployeeCount is the head-count floor for the employee-count check.
const minEmployeeCount = 10

// probeTimeout bounds direct reachability probes (website, social profiles).
const probeTimeout = 5 * time.Second

// CompanyVerificationStrategy runs five independent checks against a company
// and verifies it when at least ceil(passRatio × total) of them pass.
type CompanyVerificationStrategy struct {
	service *Service
}

func (s *CompanyVerificationStrategy) Type() model.VerificationType {
	return model.TypeCompanyVerification
}

func (s *CompanyVerificationStrategy) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p CompanyVerificationPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	key := cache.Key(string(s.Type()), p.SubjectKey())
	var cached CompanyVerificationResult
	if s.service.fromCache(ctx, key, &cached) && cached.RecordID != "" {
		return &cached, nil
	}

	var result *CompanyVerificationResult
	err := s.service.withSubjectLock(ctx, s.Type(), p.SubjectKey(), func() error {
		var innerErr error
		result, innerErr = s.verify(ctx, p.CompanyID)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	s.service.toCache(ctx, key, result, s.service.TTL(s.Type()))
	return result, nil
}

func (s *CompanyVerificationStrategy) verify(ctx context.Context, companyID string) (*CompanyVerificationResult, error) {
	company, err := s.service.subjects.FindCompany(ctx, companyID)
	if err != nil {
		return nil, apierror.Transient("subject store lookup failed", err)
	}
	if company == nil {
		return nil, apierror.NotFound(fmt.Sprintf("company %s not found", companyID), nil)
	}

	checks := map[string]CheckResult{}

	registration, err := s.checkBusinessRegistration(ctx, company)
	if err != nil {
		return nil, err
	}
	checks["business_registration"] = registration
	checks["website"] = s.checkWebsite(ctx, company)
	checks["social_profiles"] = s.checkSocialProfiles(ctx, company)
	checks["employee_count"] = checkEmployeeCount(company)
	checks["address"] = checkAddress(company)

	passed := 0
	for _, check := range checks {
		if check.Passed {
			passed++
		}
	}

	total := len(checks)
	required := int(math.Ceil(s.service.cnf.Verification.CompanyPassRatio * float64(total)))
	overall := OverallResult{
		Passed: passed >= required,
		Score:  float64(passed) / float64(total) * 100,
	}

	status := model.VerificationRejected
	if overall.Passed {
		status = model.VerificationVerified
	}

	checksDoc := map[string]interface{}{"overall": overall}
	for name, check := range checks {
		checksDoc[name] = check
	}

	record, err := model.NewVerificationRecord(s.Type(), status, checksDoc, s.service.TTL(s.Type()))
	if err != nil {
		return nil, apierror.Validation("could not build verification record", err)
	}
	record.CompanyID = companyID
	record.SetOverallScore(overall.Score)

	if err := s.service.persist(ctx, record); err != nil {
		return nil, err
	}

	if overall.Passed {
		if err := s.service.subjects.MarkCompanyVerified(ctx, companyID, true); err != nil {
			// record is already the source of truth; the badge catches up
			logrus.Warnf("failed to update verified badge for company %s: %v", companyID, err)
		}
	}

	return &CompanyVerificationResult{
		RecordID:  record.RecordID,
		CompanyID: companyID,
		Checks:    checks,
		Overall:   overall,
	}, nil
}

func (s *CompanyVerificationStrategy) checkBusinessRegistration(ctx context.Context, company *model.Company) (CheckResult, error) {
	prompt := fmt.Sprintf(`Verify the business registration of the following company.
Company name: %q
Registration number: %q
Country/address: %q

Respond with a JSON object: {"passed": bool, "confidence": number between 0 and 1, "details": string}.
passed is true only if the registration number is plausible for the stated jurisdiction.`,
		company.Name, company.RegistrationNumber, company.Address)

	if company.RegistrationNumber == "" {
		return CheckResult{Passed: false, Confidence: 1, Details: "no registration number on file"}, nil
	}
	return askCheck(ctx, s.service.oracle, prompt)
}

func (s *CompanyVerificationStrategy) checkWebsite(ctx context.Context, company *model.Company) CheckResult {
	if company.Website == "" {
		return CheckResult{Passed: false, Confidence: 1, Details: "no website listed"}
	}
	if probeURL(ctx, company.Website) {
		return CheckResult{Passed: true, Confidence: 0.9, Details: "website reachable"}
	}
	return CheckResult{Passed: false, Confidence: 0.8, Details: "website unreachable"}
}

func (s *CompanyVerificationStrategy) checkSocialProfiles(ctx context.Context, company *model.Company) CheckResult {
	if len(company.SocialProfiles) == 0 {
		return CheckResult{Passed: false, Confidence: 1, Details: "no social profiles listed"}
	}
	for _, profile := range company.SocialProfiles {
		if probeURL(ctx, profile) {
			return CheckResult{Passed: true, Confidence: 0.8, Details: fmt.Sprintf("profile reachable: %s", profile)}
		}
	}
	return CheckResult{Passed: false, Confidence: 0.7, Details: "no listed social profile is reachable"}
}

func checkEmployeeCount(company *model.Company) CheckResult {
	if company.EmployeeCount >= minEmployeeCount {
		return CheckResult{Passed: true, Confidence: 0.9, Details: fmt.Sprintf("%d employees on record", company.EmployeeCount)}
	}
	return CheckResult{Passed: false, Confidence: 0.9, Details: fmt.Sprintf("%d employees on record, minimum is %d", company.EmployeeCount, minEmployeeCount)}
}

func checkAddress(company *model.Company) CheckResult {
	if company.Address != "" {
		return CheckResult{Passed: true, Confidence: 1, Details: "address on file"}
	}
	return CheckResult{Passed: false, Confidence: 1, Details: "no address on file"}
}

// probeURL reports whether a URL answers within the probe timeout. An
// unreachable URL is a failed check, not a transient task failure.
func probeURL(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}
