package verification

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/apierror"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedOracle(t *testing.T) *HTTPOracle {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewHTTPOracle(config.OracleConfig{Url: "http://oracle.local/generate", ApiKey: "test-key", Timeout: 2})
}

func TestOracleGenerateReturnsText(t *testing.T) {
	oracle := newMockedOracle(t)

	httpmock.RegisterResponder(http.MethodPost, "http://oracle.local/generate",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{
			"text": `{"passed": true, "confidence": 0.8, "details": "registration found"}`,
		}))

	text, err := oracle.Generate(context.Background(), "Judge whether the company is registered")
	require.NoError(t, err)
	assert.Contains(t, text, `"passed": true`)
}

func TestOracleNon2xxIsTransient(t *testing.T) {
	oracle := newMockedOracle(t)

	httpmock.RegisterResponder(http.MethodPost, "http://oracle.local/generate",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream unavailable"))

	_, err := oracle.Generate(context.Background(), "any prompt")
	require.Error(t, err)
	assert.Equal(t, apierror.ErrTransient, apierror.CodeOf(err))
	assert.True(t, apierror.IsRetryable(err))
}

func TestAskCheckExtractsWrappedJSON(t *testing.T) {
	oracle := newMockedOracle(t)

	// oracles tend to wrap their JSON in prose and markdown fences
	httpmock.RegisterResponder(http.MethodPost, "http://oracle.local/generate",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{
			"text": "Here is my verdict:\n```json\n{\"passed\": false, \"confidence\": 1.7, \"details\": \"no registration\"}\n```",
		}))

	result, err := askCheck(context.Background(), oracle, "Judge whether the company is registered")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	// confidence is clamped into [0, 1]
	assert.Equal(t, 1.0, result.Confidence)
}

func TestAskCheckRejectsNonJSONAsTransient(t *testing.T) {
	oracle := newMockedOracle(t)

	httpmock.RegisterResponder(http.MethodPost, "http://oracle.local/generate",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"text": "I cannot answer that."}))

	_, err := askCheck(context.Background(), oracle, "any prompt")
	require.Error(t, err)
	assert.Equal(t, apierror.ErrTransient, apierror.CodeOf(err))
}

func newMockedMarketData(t *testing.T) *HTTPMarketData {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewHTTPMarketData(config.MarketDataConfig{Url: "http://market.local", Timeout: 2})
}

func TestMarketDataParsesLiveStats(t *testing.T) {
	market := newMockedMarketData(t)

	httpmock.RegisterResponder(http.MethodGet, "http://market.local/salary-stats",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"min": 90000, "max": 150000, "median": 115000, "currency": "EUR",
		}))

	stats, err := market.GetSalaryStats(context.Background(), gofakeit.JobTitle(), gofakeit.City(), "senior")
	require.NoError(t, err)
	assert.EqualValues(t, 90000, stats.MinSalary)
	assert.EqualValues(t, 150000, stats.MaxSalary)
	assert.Equal(t, "EUR", stats.Currency)
	assert.Equal(t, 0.9, stats.Confidence)
}

func TestMarketDataFallsBackWhenUnreachable(t *testing.T) {
	market := newMockedMarketData(t)

	httpmock.RegisterResponder(http.MethodGet, "http://market.local/salary-stats",
		httpmock.NewErrorResponder(fmt.Errorf("connection refused")))

	stats, err := market.GetSalaryStats(context.Background(), gofakeit.JobTitle(), gofakeit.City(), "mid")
	require.NoError(t, err)
	assert.EqualValues(t, 70000, stats.MinSalary)
	assert.EqualValues(t, 120000, stats.MaxSalary)
	assert.EqualValues(t, 95000, stats.MedianSalary)
	assert.Equal(t, 0.5, stats.Confidence)
}

func TestMarketDataFallsBackOnImplausibleRange(t *testing.T) {
	market := newMockedMarketData(t)

	httpmock.RegisterResponder(http.MethodGet, "http://market.local/salary-stats",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"min": 150000, "max": 90000, "median": 115000, "currency": "USD",
		}))

	stats, err := market.GetSalaryStats(context.Background(), gofakeit.JobTitle(), gofakeit.City(), "junior")
	require.NoError(t, err)
	assert.Equal(t, 0.5, stats.Confidence)
}
