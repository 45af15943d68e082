package summary

import (
	"math"
	"sort"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
)

type Stats struct {
	TotalChecks      int `json:"total_checks"`
	SuccessfulChecks int `json:"successful_checks"`
	FailedChecks     int `json:"failed_checks"`

	TotalUptimeChecks      int     `json:"total_uptime_checks"`
	SuccessfulUptimeChecks int     `json:"successful_uptime_checks"`
	FailedUptimeChecks     int     `json:"failed_uptime_checks"`
	UptimePercentage       float64 `json:"uptime_percentage"`

	AverageResponseTimeMs float64 `json:"average_response_time_ms"`
	MinResponseTimeMs     int64   `json:"min_response_time_ms"`
	MaxResponseTimeMs     int64   `json:"max_response_time_ms"`
	P95ResponseTimeMs     int64   `json:"p95_response_time_ms"`
	P99ResponseTimeMs     int64   `json:"p99_response_time_ms"`

	TotalSSLChecks       int `json:"total_ssl_checks"`
	SuccessfulSSLChecks  int `json:"successful_ssl_checks"`
	FailedSSLChecks      int `json:"failed_ssl_checks"`
	CertificatesExpiring int `json:"certificates_expiring"`
	CertificatesExpired  int `json:"certificates_expired"`
}

// Compute folds a window of results into summary statistics. Ratios are
// stored unrounded. Response time figures cover reachable uptime checks only.
func Compute(results []*result.Result) Stats {
	var (
		s       Stats
		samples []int64
		sum     int64
	)
	for _, r := range results {
		s.TotalChecks++
		if r.Status == result.StatusSuccess {
			s.SuccessfulChecks++
		}

		if r.HasUptime() {
			s.TotalUptimeChecks++
			if r.Uptime().Reachable() {
				s.SuccessfulUptimeChecks++
				if r.ResponseTimeMs.Valid {
					samples = append(samples, r.ResponseTimeMs.Int64)
					sum += r.ResponseTimeMs.Int64
				}
			}
		}

		if r.HasSSL() {
			s.TotalSSLChecks++
			switch r.SSL() {
			case check.SSLValid:
				s.SuccessfulSSLChecks++
			case check.SSLExpiringSoon:
				s.SuccessfulSSLChecks++
				s.CertificatesExpiring++
			case check.SSLExpired:
				s.CertificatesExpired++
			}
		}
	}
	s.FailedChecks = s.TotalChecks - s.SuccessfulChecks
	s.FailedUptimeChecks = s.TotalUptimeChecks - s.SuccessfulUptimeChecks
	s.FailedSSLChecks = s.TotalSSLChecks - s.SuccessfulSSLChecks

	if s.TotalUptimeChecks > 0 {
		s.UptimePercentage = float64(s.SuccessfulUptimeChecks) * 100 / float64(s.TotalUptimeChecks)
	}

	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		s.AverageResponseTimeMs = float64(sum) / float64(len(samples))
		s.MinResponseTimeMs = samples[0]
		s.MaxResponseTimeMs = samples[len(samples)-1]
		s.P95ResponseTimeMs = Percentile(samples, 0.95)
		s.P99ResponseTimeMs = Percentile(samples, 0.99)
	}
	return s
}

// Percentile picks the nearest-rank value from an ascending slice.
func Percentile(sorted []int64, p float64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	// epsilon keeps exact ranks such as 0.95*20 from rounding up
	idx := int(math.Ceil(p*float64(n)-1e-9)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
