package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerificationType(t *testing.T) {
	for _, typ := range AllVerificationTypes() {
		parsed, err := ParseVerificationType(string(typ))
		assert.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	parsed, err := ParseVerificationType("quality_tasks")
	assert.NoError(t, err)
	assert.Equal(t, TypeQualityAssessment, parsed)

	_, err = ParseVerificationType("payment_check")
	assert.Error(t, err)
}

func TestNewVerificationRecordComputesExpiry(t *testing.T) {
	ttl := 24 * time.Hour
	record, err := NewVerificationRecord(TypeSpamCheck, VerificationVerified, nil, ttl)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(record.RecordID, "vrf_"))
	assert.Equal(t, CurrentSchemaVersion, record.SchemaVersion)
	assert.WithinDuration(t, record.CreatedAt.Add(ttl), record.ExpiresAt, time.Second)
}

func TestNewVerificationRecordStampsStatusTime(t *testing.T) {
	record, err := NewVerificationRecord(TypeCompanyVerification, VerificationVerified, nil, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, record.VerifiedAt)
	assert.Nil(t, record.CheckedAt)

	record, err = NewVerificationRecord(TypeDuplicateCheck, VerificationVerified, nil, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, record.CheckedAt)

	record, err = NewVerificationRecord(TypeQualityAssessment, VerificationRejected, nil, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, record.AssessedAt)

	record, err = NewVerificationRecord(TypeSalaryVerification, VerificationPending, nil, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, record.VerifiedAt)
}

func TestChecksSizeCap(t *testing.T) {
	checks := map[string]interface{}{"blob": strings.Repeat("x", maxChecksBytes+1)}
	_, err := NewVerificationRecord(TypeSpamCheck, VerificationVerified, checks, time.Hour)
	assert.Error(t, err)
}

func TestTransitionStatus(t *testing.T) {
	record, err := NewVerificationRecord(TypeCompanyVerification, VerificationPending, nil, time.Hour)
	require.NoError(t, err)

	require.NoError(t, record.TransitionStatus(VerificationVerified))
	assert.NotNil(t, record.VerifiedAt)

	// terminal statuses never regress
	assert.Error(t, record.TransitionStatus(VerificationRejected))
	assert.NoError(t, record.TransitionStatus(VerificationVerified))

	record, err = NewVerificationRecord(TypeCompanyVerification, VerificationPending, nil, time.Hour)
	require.NoError(t, err)
	assert.Error(t, record.TransitionStatus(VerificationExpired))
}

func TestSetSpamScore(t *testing.T) {
	record, err := NewVerificationRecord(TypeSpamCheck, VerificationVerified, nil, time.Hour)
	require.NoError(t, err)

	record.SetSpamScore(0.71, 0.7)
	assert.Equal(t, 0.71, *record.SpamScore)
	assert.True(t, *record.IsSpam)

	record.SetSpamScore(0.7, 0.7)
	assert.False(t, *record.IsSpam)

	record.SetSpamScore(1.8, 0.7)
	assert.Equal(t, 1.0, *record.SpamScore)

	record.SetSpamScore(-0.3, 0.7)
	assert.Equal(t, 0.0, *record.SpamScore)
	assert.False(t, *record.IsSpam)
}

func TestSetOverallScoreClamps(t *testing.T) {
	record, err := NewVerificationRecord(TypeQualityAssessment, VerificationVerified, nil, time.Hour)
	require.NoError(t, err)

	record.SetOverallScore(104)
	assert.Equal(t, 100.0, *record.OverallScore)

	record.SetOverallScore(-2)
	assert.Equal(t, 0.0, *record.OverallScore)
}

func TestExpired(t *testing.T) {
	record, err := NewVerificationRecord(TypeSpamCheck, VerificationVerified, nil, time.Hour)
	require.NoError(t, err)

	assert.False(t, record.Expired(time.Now()))
	assert.True(t, record.Expired(time.Now().Add(2*time.Hour)))
}

func TestCrossValidateSalary(t *testing.T) {
	checks := map[string]interface{}{
		"provided_salary": map[string]interface{}{"amount": float64(30000)},
		"market_data":     map[string]interface{}{"min_salary": float64(70000)},
	}
	record, err := NewVerificationRecord(TypeSalaryVerification, VerificationVerified, checks, time.Hour)
	require.NoError(t, err)

	record.CrossValidateSalary()
	verification, ok := record.Checks["verification"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "failed", verification["status"])
	assert.Contains(t, verification["note"], "below half the market minimum")
}

func TestCrossValidateSalarySkipsHealthyAndMalformed(t *testing.T) {
	checks := map[string]interface{}{
		"provided_salary": map[string]interface{}{"amount": float64(80000)},
		"market_data":     map[string]interface{}{"min_salary": float64(70000)},
	}
	record, err := NewVerificationRecord(TypeSalaryVerification, VerificationVerified, checks, time.Hour)
	require.NoError(t, err)
	record.CrossValidateSalary()
	assert.NotContains(t, record.Checks, "verification")

	record, err = NewVerificationRecord(TypeSalaryVerification, VerificationVerified, map[string]interface{}{"provided_salary": "oops"}, time.Hour)
	require.NoError(t, err)
	record.CrossValidateSalary()
	assert.NotContains(t, record.Checks, "verification")

	// only salary records are cross-validated
	record, err = NewVerificationRecord(TypeSpamCheck, VerificationVerified, checks, time.Hour)
	require.NoError(t, err)
	record.CrossValidateSalary()
	assert.NotContains(t, record.Checks, "verification")
}

func TestTaskMessageValidate(t *testing.T) {
	valid := TaskMessage{
		Type:      string(TypeSpamCheck),
		Payload:   json.RawMessage(`{"job_id":"job_1"}`),
		RequestID: "req_1",
	}
	assert.NoError(t, valid.Validate())

	missingRequestID := valid
	missingRequestID.RequestID = ""
	assert.Error(t, missingRequestID.Validate())

	missingPayload := valid
	missingPayload.Payload = nil
	assert.Error(t, missingPayload.Validate())
}
