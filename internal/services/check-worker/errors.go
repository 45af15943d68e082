package check_worker

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"time"
)

// describeNetError turns a transport error into a short message fit for
// the result row.
func describeNetError(err error, timeout time.Duration) string {
	var (
		dnsErr   *net.DNSError
		netErr   net.Error
		redirErr tooManyRedirectsError
		hostErr  x509.HostnameError
		authErr  x509.UnknownAuthorityError
		certErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &redirErr):
		return redirErr.Error()
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("dns lookup failed: %s: %s", dnsErr.Name, dnsErr.Err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "connection reset"
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("timeout after %s", timeout)
	case errors.Is(err, context.Canceled):
		return "check cancelled"
	case errors.As(err, &hostErr), errors.As(err, &authErr), errors.As(err, &certErr):
		return "tls: " + err.Error()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
