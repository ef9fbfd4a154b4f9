package adapters

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hirewell/trustline/model"
)

// MockOracle is a deterministic oracle for tests and local development. It
// answers by prompt keyword, counts calls, and can be scripted to fail.
type MockOracle struct {
	Calls     int64
	FailTimes int64 // fail the first N calls with FailErr
	FailErr   error

	// Responses maps a prompt substring to the raw text returned.
	Responses map[string]string
}

func NewMockOracle() *MockOracle {
	return &MockOracle{Responses: map[string]string{}}
}

func (m *MockOracle) Generate(_ context.Context, prompt string) (string, error) {
	calls := atomic.AddInt64(&m.Calls, 1)
	if calls <= m.FailTimes && m.FailErr != nil {
		return "", m.FailErr
	}

	for fragment, response := range m.Responses {
		if strings.Contains(prompt, fragment) {
			return response, nil
		}
	}

	// default: a passing check with solid confidence
	return `{"passed": true, "confidence": 0.9, "details": "mock verification passed"}`, nil
}

// MockMarketData returns a fixed benchmark and counts calls.
type MockMarketData struct {
	Calls int64
	Stats *model.SalaryStats
}

func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		Stats: &model.SalaryStats{
			MinSalary:    80000,
			MaxSalary:    140000,
			MedianSalary: 105000,
			Currency:     "USD",
			Confidence:   0.9,
		},
	}
}

func (m *MockMarketData) GetSalaryStats(_ context.Context, title, location, experience string) (*model.SalaryStats, error) {
	atomic.AddInt64(&m.Calls, 1)
	return m.Stats, nil
}

// MockSubjectStore is an in-memory subject store for tests.
type MockSubjectStore struct {
	Companies    map[string]*model.Company
	Jobs         map[string]*model.Job
	Applications []model.Application

	VerifiedCompanies  map[string]bool
	SpamFlaggedJobs    map[string]bool
	SalaryVerifiedJobs map[string]bool
}

func NewMockSubjectStore() *MockSubjectStore {
	return &MockSubjectStore{
		Companies:          map[string]*model.Company{},
		Jobs:               map[string]*model.Job{},
		VerifiedCompanies:  map[string]bool{},
		SpamFlaggedJobs:    map[string]bool{},
		SalaryVerifiedJobs: map[string]bool{},
	}
}

func (s *MockSubjectStore) FindCompany(_ context.Context, id string) (*model.Company, error) {
	company, ok := s.Companies[id]
	if !ok || company.DeletedAt != nil {
		return nil, nil
	}
	return company, nil
}

func (s *MockSubjectStore) FindJob(_ context.Context, id string) (*model.Job, error) {
	job, ok := s.Jobs[id]
	if !ok || job.DeletedAt != nil {
		return nil, nil
	}
	return job, nil
}

func (s *MockSubjectStore) FindApplicationsByUserAndJob(_ context.Context, userID, jobID string) ([]model.Application, error) {
	var out []model.Application
	for _, app := range s.Applications {
		if app.UserID == userID && app.JobID == jobID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (s *MockSubjectStore) FindSimilarRecentApplications(_ context.Context, userID, companyID string, since time.Time) ([]model.Application, error) {
	var out []model.Application
	for _, app := range s.Applications {
		if app.UserID == userID && app.CompanyID == companyID && app.CreatedAt.After(since) {
			out = append(out, app)
		}
	}
	return out, nil
}

func (s *MockSubjectStore) FindRecentJobsByCompany(_ context.Context, companyID string, limit int) ([]model.Job, error) {
	var out []model.Job
	for _, job := range s.Jobs {
		if job.CompanyID == companyID {
			out = append(out, *job)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MockSubjectStore) MarkCompanyVerified(_ context.Context, companyID string, verified bool) error {
	if _, ok := s.Companies[companyID]; !ok {
		return fmt.Errorf("company %s not found", companyID)
	}
	s.VerifiedCompanies[companyID] = verified
	s.Companies[companyID].Verified = verified
	return nil
}

func (s *MockSubjectStore) FlagJobAsSpam(_ context.Context, jobID string) error {
	if _, ok := s.Jobs[jobID]; !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	s.SpamFlaggedJobs[jobID] = true
	s.Jobs[jobID].FlaggedAsSpam = true
	return nil
}

func (s *MockSubjectStore) MarkJobSalaryVerified(_ context.Context, jobID string, verified bool) error {
	if _, ok := s.Jobs[jobID]; !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	s.SalaryVerifiedJobs[jobID] = verified
	s.Jobs[jobID].SalaryVerified = verified
	return nil
}
