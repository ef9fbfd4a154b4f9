package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightedScore(t *testing.T) {
	signals := map[string]WeightedSignal{
		"duplicate_content":  {Weight: 0.25, Signal: 1.0},
		"unrealistic_salary": {Weight: 0.20, Signal: 0.5},
	}
	assert.InDelta(t, 0.35, WeightedScore(signals, 1.0), 1e-9)
}

func TestWeightedScoreClampsToMax(t *testing.T) {
	signals := map[string]WeightedSignal{
		"a": {Weight: 0.8, Signal: 1.0},
		"b": {Weight: 0.8, Signal: 1.0},
	}
	assert.Equal(t, 1.0, WeightedScore(signals, 1.0))
}

func TestWeightedScoreNeverNegative(t *testing.T) {
	signals := map[string]WeightedSignal{
		"a": {Weight: 0.5, Signal: -3},
	}
	assert.Equal(t, 0.0, WeightedScore(signals, 1.0))
}

func TestWeightedScoreEmptyAndMissingChecks(t *testing.T) {
	assert.Equal(t, 0.0, WeightedScore(nil, 1.0))
	assert.Equal(t, 0.0, WeightedScore(map[string]WeightedSignal{}, 100))
}

func TestWeightedScoreQualityScale(t *testing.T) {
	signals := map[string]WeightedSignal{
		"description":  {Weight: 0.25, Signal: 80},
		"company_info": {Weight: 0.20, Signal: 90},
	}
	assert.InDelta(t, 38.0, WeightedScore(signals, 100), 1e-9)
}
