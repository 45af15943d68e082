package summary

import (
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
)

func uptimeResult(status check.UptimeStatus, ms int64) *result.Result {
	r := &result.Result{
		CheckType:    check.TypeUptime,
		Status:       result.StatusSuccess,
		UptimeStatus: null.StringFrom(string(status)),
		StartedAt:    time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC),
	}
	if status == check.UptimeDown {
		r.Status = result.StatusFailed
		r.ErrorMessage = null.StringFrom("connection refused")
		return r
	}
	r.ResponseTimeMs = null.IntFrom(ms)
	return r
}

func sslResult(status check.SSLStatus, days int64) *result.Result {
	r := &result.Result{
		CheckType:           check.TypeSSL,
		Status:              result.StatusSuccess,
		SSLStatus:           null.StringFrom(string(status)),
		DaysUntilExpiration: null.IntFrom(days),
	}
	if !status.Trusted() {
		r.Status = result.StatusFailed
	}
	return r
}

func TestCompute_SevenUpThreeDown(t *testing.T) {
	var rs []*result.Result
	for i := 0; i < 7; i++ {
		rs = append(rs, uptimeResult(check.UptimeUp, int64(100+i*10)))
	}
	for i := 0; i < 3; i++ {
		rs = append(rs, uptimeResult(check.UptimeDown, 0))
	}

	s := Compute(rs)

	assert.Equal(t, 10, s.TotalChecks)
	assert.Equal(t, 10, s.TotalUptimeChecks)
	assert.Equal(t, 7, s.SuccessfulUptimeChecks)
	assert.Equal(t, 3, s.FailedUptimeChecks)
	assert.Equal(t, 70.0, s.UptimePercentage)
	assert.Equal(t, int64(100), s.MinResponseTimeMs)
	assert.Equal(t, int64(160), s.MaxResponseTimeMs)
	assert.Equal(t, 130.0, s.AverageResponseTimeMs)
}

func TestCompute_NoUptimeChecks(t *testing.T) {
	s := Compute([]*result.Result{sslResult(check.SSLValid, 60)})

	assert.Equal(t, 1, s.TotalChecks)
	assert.Zero(t, s.TotalUptimeChecks)
	assert.Zero(t, s.UptimePercentage)
	assert.Zero(t, s.P95ResponseTimeMs)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, Compute(nil))
}

func TestCompute_SlowCountsAsSuccessfulUptime(t *testing.T) {
	s := Compute([]*result.Result{
		uptimeResult(check.UptimeSlow, 6000),
		uptimeResult(check.UptimeUp, 200),
	})
	assert.Equal(t, 2, s.SuccessfulUptimeChecks)
	assert.Equal(t, 100.0, s.UptimePercentage)
}

func TestCompute_RatiosAreNotRounded(t *testing.T) {
	s := Compute([]*result.Result{
		uptimeResult(check.UptimeUp, 100),
		uptimeResult(check.UptimeUp, 101),
		uptimeResult(check.UptimeUp, 101),
		uptimeResult(check.UptimeDown, 0),
		uptimeResult(check.UptimeDown, 0),
		uptimeResult(check.UptimeDown, 0),
		uptimeResult(check.UptimeDown, 0),
		uptimeResult(check.UptimeDown, 0),
		uptimeResult(check.UptimeDown, 0),
	})
	assert.Equal(t, float64(3)*100/float64(9), s.UptimePercentage)
	assert.Equal(t, float64(302)/float64(3), s.AverageResponseTimeMs)

	one := Compute([]*result.Result{
		uptimeResult(check.UptimeUp, 100),
		uptimeResult(check.UptimeDown, 0),
		uptimeResult(check.UptimeDown, 0),
	})
	assert.Equal(t, float64(1)*100/float64(3), one.UptimePercentage)
	assert.Equal(t, 1, one.SuccessfulUptimeChecks)
	assert.Equal(t, 2, one.FailedUptimeChecks)
}

func TestCompute_SSLCounts(t *testing.T) {
	s := Compute([]*result.Result{
		sslResult(check.SSLValid, 80),
		sslResult(check.SSLExpiringSoon, 10),
		sslResult(check.SSLExpired, -2),
		sslResult(check.SSLInvalid, 40),
	})
	assert.Equal(t, 4, s.TotalSSLChecks)
	assert.Equal(t, 2, s.SuccessfulSSLChecks)
	assert.Equal(t, 2, s.FailedSSLChecks)
	assert.Equal(t, 1, s.CertificatesExpiring)
	assert.Equal(t, 1, s.CertificatesExpired)
	assert.Equal(t, 2, s.FailedChecks)
}

func TestCompute_PercentilesOrdered(t *testing.T) {
	var rs []*result.Result
	for i := 1; i <= 200; i++ {
		rs = append(rs, uptimeResult(check.UptimeUp, int64((i*37)%500+1)))
	}
	s := Compute(rs)
	require.GreaterOrEqual(t, s.P99ResponseTimeMs, s.P95ResponseTimeMs)
	require.GreaterOrEqual(t, s.MaxResponseTimeMs, s.P99ResponseTimeMs)
	require.LessOrEqual(t, s.MinResponseTimeMs, s.P95ResponseTimeMs)
}

func TestCompute_Idempotent(t *testing.T) {
	rs := []*result.Result{
		uptimeResult(check.UptimeUp, 120),
		uptimeResult(check.UptimeDown, 0),
		sslResult(check.SSLExpiringSoon, 5),
	}
	assert.Equal(t, Compute(rs), Compute(rs))
}

func TestPercentile(t *testing.T) {
	sorted := make([]int64, 20)
	for i := range sorted {
		sorted[i] = int64(i + 1)
	}
	assert.Equal(t, int64(19), Percentile(sorted, 0.95))
	assert.Equal(t, int64(20), Percentile(sorted, 0.99))
	assert.Equal(t, int64(7), Percentile([]int64{7}, 0.95))
	assert.Zero(t, Percentile(nil, 0.5))
}
