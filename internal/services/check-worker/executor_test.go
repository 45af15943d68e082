package check_worker

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/NordCoder/Sitewatch/internal/config/check-worker"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
)

func newTestExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	client := NewHTTPClient(config.HTTPCheck{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		VerifyTLS:    false,
	})
	return NewExecutor(cfg, client)
}

func TestUptime_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sitewatch-test", r.UserAgent())
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	e := newTestExecutor(ExecutorConfig{UserAgent: "sitewatch-test"})
	out := e.Check(context.Background(), Target{URL: srv.URL, CheckUptime: true, ExpectedContent: []string{"hello"}})

	require.NotNil(t, out.Uptime)
	assert.Nil(t, out.SSL)
	assert.Equal(t, check.UptimeUp, out.Uptime.Status)
	assert.Equal(t, http.StatusOK, out.Uptime.StatusCode)
	assert.Empty(t, out.Uptime.Error)
	assert.Equal(t, srv.URL, out.Uptime.FinalURL)
}

func TestUptime_StatusRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	e := newTestExecutor(ExecutorConfig{})

	out := e.Check(context.Background(), Target{URL: srv.URL, CheckUptime: true})
	assert.Equal(t, check.UptimeDown, out.Uptime.Status)
	assert.Equal(t, "unexpected status 503", out.Uptime.Error)

	out = e.Check(context.Background(), Target{URL: srv.URL, CheckUptime: true, ExpectedStatus: 503})
	assert.Equal(t, check.UptimeUp, out.Uptime.Status)
}

func TestUptime_Slow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	}))
	defer srv.Close()

	e := newTestExecutor(ExecutorConfig{SlowThreshold: time.Millisecond})
	out := e.Check(context.Background(), Target{URL: srv.URL, CheckUptime: true})
	assert.Equal(t, check.UptimeSlow, out.Uptime.Status)
	assert.GreaterOrEqual(t, out.Uptime.ResponseTime, 20*time.Millisecond)
}

func TestUptime_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		_, _ = fmt.Sscanf(r.URL.Path, "/loop/%d", &n)
		http.Redirect(w, r, fmt.Sprintf("/loop/%d", n+1), http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/done", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := newTestExecutor(ExecutorConfig{MaxRedirects: 3})

	out := e.Check(context.Background(), Target{URL: srv.URL + "/hop", CheckUptime: true})
	assert.Equal(t, check.UptimeUp, out.Uptime.Status)
	assert.Equal(t, 1, out.Uptime.RedirectCount)
	assert.Equal(t, srv.URL+"/done", out.Uptime.FinalURL)

	out = e.Check(context.Background(), Target{URL: srv.URL + "/loop/0", CheckUptime: true})
	assert.Equal(t, check.UptimeDown, out.Uptime.Status)
	assert.Equal(t, "too many redirects (max 3)", out.Uptime.Error)
}

func TestUptime_ContentRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("status: maintenance"))
	}))
	defer srv.Close()
	e := newTestExecutor(ExecutorConfig{})

	out := e.Check(context.Background(), Target{
		URL:               srv.URL,
		CheckUptime:       true,
		ForbiddenContent:  []string{"maintenance"},
		ContentPatterns:   []string{"([", `status: \w+`},
		JavaScriptEnabled: true,
	})
	assert.Equal(t, check.UptimeDown, out.Uptime.Status)
	assert.Contains(t, out.Uptime.Error, `forbidden content "maintenance" found`)
	assert.Len(t, out.Warnings, 2)
}

func TestUptime_NetworkFailures(t *testing.T) {
	e := newTestExecutor(ExecutorConfig{Timeout: 500 * time.Millisecond})

	out := e.Check(context.Background(), Target{URL: "http://sitewatch-test.invalid", CheckUptime: true})
	require.NotNil(t, out.Uptime)
	assert.Equal(t, check.UptimeDown, out.Uptime.Status)
	assert.NotEmpty(t, out.Uptime.Error)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	out = e.Check(context.Background(), Target{URL: "http://" + addr, CheckUptime: true})
	assert.Equal(t, check.UptimeDown, out.Uptime.Status)
	assert.Equal(t, "connection refused", out.Uptime.Error)

	out = e.Check(context.Background(), Target{URL: "http://" + addr, CheckSSL: true})
	require.NotNil(t, out.SSL)
	assert.Equal(t, check.SSLError, out.SSL.Status)
	assert.Equal(t, "connection refused", out.SSL.Error)
}

func TestUptime_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	e := newTestExecutor(ExecutorConfig{Timeout: 100 * time.Millisecond})
	out := e.Check(context.Background(), Target{URL: srv.URL, CheckUptime: true})
	assert.Equal(t, check.UptimeDown, out.Uptime.Status)
	assert.Equal(t, "timeout after 100ms", out.Uptime.Error)
}

func TestSSL_ServerCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	e := newTestExecutor(ExecutorConfig{})
	out := e.Check(context.Background(), Target{URL: srv.URL, CheckSSL: true})
	require.NotNil(t, out.SSL)
	assert.Equal(t, check.SSLInvalid, out.SSL.Status, "test CA is not in the system pool")

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	e.roots = roots
	out = e.Check(context.Background(), Target{URL: srv.URL, CheckSSL: true})
	assert.Equal(t, check.SSLValid, out.SSL.Status)
	assert.Greater(t, out.SSL.DaysUntilExpiration, 30)
	assert.NotEmpty(t, out.SSL.Serial)
}

func selfSigned(t *testing.T, host string, notAfter time.Time) (*x509.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber:          big.NewInt(42),
		Subject:               pkix.Name{CommonName: host},
		Issuer:                pkix.Name{CommonName: host},
		DNSNames:              []string{host},
		NotBefore:             notAfter.Add(-365 * 24 * time.Hour),
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return cert, pool
}

func TestSSL_Classify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		host     string
		notAfter time.Time
		status   check.SSLStatus
		days     int
	}{
		{"valid", "example.test", now.Add(90 * 24 * time.Hour), check.SSLValid, 90},
		{"expiring", "example.test", now.Add(2*24*time.Hour + time.Hour), check.SSLExpiringSoon, 2},
		{"boundary", "example.test", now.Add(30 * 24 * time.Hour), check.SSLExpiringSoon, 30},
		{"expired", "example.test", now.Add(-time.Hour), check.SSLExpired, -1},
		{"hostname", "other.test", now.Add(90 * 24 * time.Hour), check.SSLInvalid, 90},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cert, pool := selfSigned(t, "example.test", tc.notAfter)
			e := NewExecutor(ExecutorConfig{ExpiringSoonDays: 30}, http.DefaultClient)
			e.roots = pool

			out := e.classify(tc.host, []*x509.Certificate{cert}, nil, now)
			assert.Equal(t, tc.status, out.Status)
			assert.Equal(t, tc.days, out.DaysUntilExpiration)
			assert.Equal(t, "example.test", out.Subject)
		})
	}
}

func TestTLSAddress(t *testing.T) {
	host, addr, err := tlsAddress("http://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "example.com", host)
	assert.Equal(t, "example.com:443", addr)

	_, addr, err = tlsAddress("example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, "example.com:8443", addr)

	_, _, err = tlsAddress("https://")
	assert.Error(t, err)
}
