package correlator

import (
	"testing"

	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Sitewatch/internal/domain/alert"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/result"
)

func TestSSLDecisions_Tiers(t *testing.T) {
	pol := alert.DefaultPolicy()
	cases := []struct {
		status   check.SSLStatus
		days     int64
		severity alert.Severity
		title    string
	}{
		{check.SSLExpired, -3, alert.SeverityCritical, "SSL certificate for a.test has expired"},
		{check.SSLExpiringSoon, 0, alert.SeverityCritical, "SSL certificate for a.test expires today"},
		{check.SSLExpiringSoon, 1, alert.SeverityCritical, "SSL certificate for a.test expires tomorrow"},
		{check.SSLExpiringSoon, 6, alert.SeverityUrgent, "SSL certificate for a.test expires in 6 days"},
		{check.SSLExpiringSoon, 14, alert.SeverityWarning, "SSL certificate for a.test expires in 14 days"},
		{check.SSLExpiringSoon, 20, alert.SeverityInfo, "SSL certificate for a.test expires in 20 days"},
	}
	for _, tc := range cases {
		r := &result.Result{
			CheckType:           check.TypeSSL,
			SSLStatus:           null.StringFrom(string(tc.status)),
			DaysUntilExpiration: null.IntFrom(tc.days),
		}
		ds := SSLDecisions(pol, "a.test", r)
		require.NotEmpty(t, ds)
		assert.Equal(t, Raise, ds[0].Action)
		assert.Equal(t, tc.severity, ds[0].Severity, tc.title)
		assert.Equal(t, tc.title, ds[0].Title)
	}
}

func TestSSLDecisions_ErrorChangesNothing(t *testing.T) {
	r := &result.Result{CheckType: check.TypeSSL, SSLStatus: null.StringFrom(string(check.SSLError))}
	assert.Empty(t, SSLDecisions(alert.DefaultPolicy(), "a.test", r))

	r = &result.Result{CheckType: check.TypeSSL, SSLStatus: null.StringFrom(string(check.SSLValid))}
	ds := SSLDecisions(alert.DefaultPolicy(), "a.test", r)
	require.Len(t, ds, 2)
	assert.Equal(t, Resolve, ds[0].Action)
	assert.Equal(t, Resolve, ds[1].Action)
}

func TestUptimeDecisions(t *testing.T) {
	pol := alert.DefaultPolicy()
	mk := func(sts ...check.UptimeStatus) []*result.Result {
		var out []*result.Result
		for _, s := range sts {
			out = append(out, &result.Result{CheckType: check.TypeUptime, UptimeStatus: null.StringFrom(string(s))})
		}
		return out
	}

	assert.Empty(t, UptimeDecisions(pol, "a.test", nil))

	// newest first: two downs after an up is not yet an outage
	assert.Empty(t, UptimeDecisions(pol, "a.test", mk(check.UptimeDown, check.UptimeDown, check.UptimeUp)))

	ds := UptimeDecisions(pol, "a.test", mk(check.UptimeDown, check.UptimeDown, check.UptimeDown))
	require.Len(t, ds, 1)
	assert.Equal(t, alert.TypeUptimeDown, ds[0].Type)
	assert.Equal(t, "a.test is down", ds[0].Title)

	ds = UptimeDecisions(pol, "a.test", mk(check.UptimeSlow, check.UptimeDown))
	require.Len(t, ds, 1)
	assert.Equal(t, Resolve, ds[0].Action)
	assert.Equal(t, alert.TypeUptimeDown, ds[0].Type)

	ds = UptimeDecisions(pol, "a.test", mk(check.UptimeUp))
	require.Len(t, ds, 2)
	assert.Equal(t, alert.TypePerformanceDegradation, ds[1].Type)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://example.com:8443/x"))
	assert.Equal(t, "example.com", hostOf("example.com/x"))
}
