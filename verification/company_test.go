package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reachableServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCompanyVerificationAllChecksPass(t *testing.T) {
	env := newTestEnv(t)
	server := reachableServer(t)

	env.subjects.Companies["cmp_1"] = &model.Company{
		CompanyID:          "cmp_1",
		Name:               "Acme Robotics",
		Website:            server.URL,
		RegistrationNumber: "HRB-12345",
		Address:            "1 Main St, Berlin",
		SocialProfiles:     []string{server.URL + "/linkedin"},
		EmployeeCount:      50,
	}

	strategy := &CompanyVerificationStrategy{service: env.service}
	out, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":"cmp_1"}`))
	require.NoError(t, err)

	result := out.(*CompanyVerificationResult)
	assert.True(t, result.Overall.Passed)
	assert.InDelta(t, 100.0, result.Overall.Score, 0.001)
	assert.Len(t, result.Checks, 5)
	assert.True(t, env.subjects.VerifiedCompanies["cmp_1"])

	records := env.recorder.all()
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, model.TypeCompanyVerification, record.Type)
	assert.Equal(t, model.VerificationVerified, record.Status)
	assert.Equal(t, "cmp_1", record.CompanyID)
	assert.NotNil(t, record.VerifiedAt)
	assert.WithinDuration(t, record.CreatedAt.Add(7*24*time.Hour), record.ExpiresAt, time.Second)
}

func TestCompanyVerificationRejectsBelowPassRatio(t *testing.T) {
	env := newTestEnv(t)

	env.subjects.Companies["cmp_2"] = &model.Company{
		CompanyID:     "cmp_2",
		Name:          "Shell Corp",
		EmployeeCount: 2,
	}

	strategy := &CompanyVerificationStrategy{service: env.service}
	out, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":"cmp_2"}`))
	require.NoError(t, err)

	result := out.(*CompanyVerificationResult)
	assert.False(t, result.Overall.Passed)
	assert.InDelta(t, 0.0, result.Overall.Score, 0.001)
	assert.False(t, env.subjects.VerifiedCompanies["cmp_2"])

	records := env.recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, model.VerificationRejected, records[0].Status)
	// no oracle call for a company with no registration number on file
	assert.EqualValues(t, 0, env.oracle.Calls)
}

func TestCompanyVerificationPassesAtExactThreshold(t *testing.T) {
	env := newTestEnv(t)
	server := reachableServer(t)

	// registration (oracle pass), website, employee count pass; social
	// profiles and address fail: 3 of 5 with ratio 0.6 is exactly enough.
	env.subjects.Companies["cmp_3"] = &model.Company{
		CompanyID:          "cmp_3",
		Name:               "Borderline Ltd",
		Website:            server.URL,
		RegistrationNumber: "UK-99",
		EmployeeCount:      10,
	}

	strategy := &CompanyVerificationStrategy{service: env.service}
	out, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":"cmp_3"}`))
	require.NoError(t, err)

	result := out.(*CompanyVerificationResult)
	assert.True(t, result.Overall.Passed)
	assert.InDelta(t, 60.0, result.Overall.Score, 0.001)
}

func TestCompanyVerificationUnknownCompany(t *testing.T) {
	env := newTestEnv(t)

	strategy := &CompanyVerificationStrategy{service: env.service}
	_, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":"cmp_missing"}`))
	require.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
	assert.False(t, apierror.IsRetryable(err))
	assert.Empty(t, env.recorder.all())
}

func TestCompanyVerificationServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	server := reachableServer(t)

	env.subjects.Companies["cmp_4"] = &model.Company{
		CompanyID:          "cmp_4",
		Name:               "Cached Inc",
		Website:            server.URL,
		RegistrationNumber: "CA-42",
		Address:            "42 Bay St",
		SocialProfiles:     []string{server.URL},
		EmployeeCount:      25,
	}

	strategy := &CompanyVerificationStrategy{service: env.service}
	first, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":"cmp_4"}`))
	require.NoError(t, err)
	second, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":"cmp_4"}`))
	require.NoError(t, err)

	assert.Equal(t, first.(*CompanyVerificationResult).RecordID, second.(*CompanyVerificationResult).RecordID)
	assert.EqualValues(t, 1, env.oracle.Calls)
	assert.Len(t, env.recorder.all(), 1)
}

func TestCompanyVerificationRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	strategy := &CompanyVerificationStrategy{service: env.service}
	_, err := strategy.Execute(context.Background(), json.RawMessage(`{"company_id":""}`))
	require.Error(t, err)
	assert.Equal(t, apierror.ErrValidation, apierror.CodeOf(err))
}
