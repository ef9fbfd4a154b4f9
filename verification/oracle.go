package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/apierror"
	"github.com/hirewell/trustline/internal/request"
)

// HTTPOracle talks to the text-reasoning service over plain JSON. Any
// network failure or non-2xx response is transient; the dispatcher retry
// policy owns recovery.
type HTTPOracle struct {
	url     string
	apiKey  string
	timeout time.Duration
}

func NewHTTPOracle(cfg config.OracleConfig) *HTTPOracle {
	return &HTTPOracle{
		url:     cfg.Url,
		apiKey:  cfg.ApiKey,
		timeout: time.Duration(cfg.Timeout) * time.Second,
	}
}

type oracleRequest struct {
	Prompt string `json:"prompt"`
}

type oracleResponse struct {
	Text string `json:"text"`
}

func (o *HTTPOracle) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := request.ToJsonReq(oracleRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, payload)
	if err != nil {
		return "", err
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	var response oracleResponse
	resp, err := request.CallWithTimeout(req, &response, o.timeout)
	if err != nil {
		return "", apierror.Transient("oracle call failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierror.Transient(fmt.Sprintf("oracle returned status %d", resp.StatusCode), nil)
	}

	return response.Text, nil
}

// extractJSON pulls the first JSON object out of free-form oracle text.
// Oracles tend to wrap their JSON in prose or markdown fences.
func extractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// askCheck runs a prompt expected to yield {passed, confidence, details}.
// Malformed output is a transient failure so the retry policy can take
// another run at it.
func askCheck(ctx context.Context, oracle Oracle, prompt string) (CheckResult, error) {
	raw, err := oracle.Generate(ctx, prompt)
	if err != nil {
		return CheckResult{}, err
	}

	doc, ok := extractJSON(raw)
	if !ok {
		return CheckResult{}, apierror.Transient("oracle response contains no JSON object", raw)
	}

	var result CheckResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return CheckResult{}, apierror.Transient("oracle response is not valid JSON", err)
	}

	result.Confidence = clamp01(result.Confidence)
	return result, nil
}

// askSalaryComparison runs a prompt expected to yield the salary comparison
// document {is_valid, confidence, comparison, reasons}.
func askSalaryComparison(ctx context.Context, oracle Oracle, prompt string) (SalaryComparison, error) {
	raw, err := oracle.Generate(ctx, prompt)
	if err != nil {
		return SalaryComparison{}, err
	}

	doc, ok := extractJSON(raw)
	if !ok {
		return SalaryComparison{}, apierror.Transient("oracle response contains no JSON object", raw)
	}

	var result SalaryComparison
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return SalaryComparison{}, apierror.Transient("oracle response is not valid JSON", err)
	}

	result.Confidence = clamp01(result.Confidence)
	return result, nil
}
