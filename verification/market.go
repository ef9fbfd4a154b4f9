package verification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hirewell/trustline/config"
	"github.com/hirewell/trustline/internal/request"
	"github.com/hirewell/trustline/model"
	"github.com/sirupsen/logrus"
)

// Deterministic fallback benchmark used when the market-data service is
// unreachable. The low confidence marks the numbers as synthetic.
const (
	fallbackMinSalary    = 70000
	fallbackMaxSalary    = 120000
	fallbackMedianSalary = 95000

	fallbackConfidence = 0.5
	liveConfidence     = 0.9
)

// FallbackSalaryStats returns the deterministic benchmark for degraded mode.
func FallbackSalaryStats() *model.SalaryStats {
	return &model.SalaryStats{
		MinSalary:    fallbackMinSalary,
		MaxSalary:    fallbackMaxSalary,
		MedianSalary: fallbackMedianSalary,
		Currency:     "USD",
		Confidence:   fallbackConfidence,
	}
}

// HTTPMarketData fetches salary benchmarks over JSON. It never fails a
// request outright: when the service is unreachable it logs and degrades to
// the deterministic fallback.
type HTTPMarketData struct {
	url     string
	timeout time.Duration
}

func NewHTTPMarketData(cfg config.MarketDataConfig) *HTTPMarketData {
	return &HTTPMarketData{
		url:     cfg.Url,
		timeout: time.Duration(cfg.Timeout) * time.Second,
	}
}

type marketDataResponse struct {
	Min      int64  `json:"min"`
	Max      int64  `json:"max"`
	Median   int64  `json:"median"`
	Currency string `json:"currency"`
}

func (m *HTTPMarketData) GetSalaryStats(ctx context.Context, title, location, experience string) (*model.SalaryStats, error) {
	endpoint := fmt.Sprintf("%s/salary-stats?title=%s&location=%s&experience=%s",
		m.url, url.QueryEscape(title), url.QueryEscape(location), url.QueryEscape(experience))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FallbackSalaryStats(), nil
	}

	var response marketDataResponse
	resp, err := request.CallWithTimeout(req, &response, m.timeout)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"title":    title,
			"location": location,
		}).Warnf("market data unreachable, using fallback: %v", err)
		return FallbackSalaryStats(), nil
	}

	if response.Min <= 0 || response.Max <= 0 || response.Max < response.Min {
		logrus.Warnf("market data returned implausible range [%d, %d], using fallback", response.Min, response.Max)
		return FallbackSalaryStats(), nil
	}

	currency := response.Currency
	if currency == "" {
		currency = "USD"
	}

	return &model.SalaryStats{
		MinSalary:    response.Min,
		MaxSalary:    response.Max,
		MedianSalary: response.Median,
		Currency:     currency,
		Confidence:   liveConfidence,
	}, nil
}
