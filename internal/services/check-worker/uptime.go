package check_worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/NordCoder/Sitewatch/internal/domain/check"
)

func (e *Executor) checkUptime(ctx context.Context, t Target) (*UptimeOutcome, []string) {
	raw := normalizeURL(t.URL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &UptimeOutcome{Status: check.UptimeDown, Error: fmt.Sprintf("invalid url %q", t.URL)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &UptimeOutcome{Status: check.UptimeDown, Error: fmt.Sprintf("build request: %v", err)}, nil
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}

	start := e.now()
	resp, err := e.client.Do(req)
	if err != nil {
		return &UptimeOutcome{
			Status:       check.UptimeDown,
			ResponseTime: e.now().Sub(start),
			Error:        describeNetError(err, e.cfg.Timeout),
		}, nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes))
	out := &UptimeOutcome{
		StatusCode:    resp.StatusCode,
		ResponseTime:  e.now().Sub(start),
		FinalURL:      resp.Request.URL.String(),
		RedirectCount: redirectCount(resp),
	}
	if readErr != nil {
		out.Status = check.UptimeDown
		out.Error = "read body: " + describeNetError(readErr, e.cfg.Timeout)
		return out, nil
	}

	if !statusAccepted(resp.StatusCode, t.ExpectedStatus) {
		out.Status = check.UptimeDown
		if t.ExpectedStatus > 0 {
			out.Error = fmt.Sprintf("unexpected status %d (expected %d)", resp.StatusCode, t.ExpectedStatus)
		} else {
			out.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return out, nil
	}

	violations, warnings := evaluateContent(string(body), t)
	if len(violations) > 0 {
		out.Status = check.UptimeDown
		out.Error = "content check failed: " + strings.Join(violations, "; ")
		return out, warnings
	}

	if out.ResponseTime > e.cfg.SlowThreshold {
		out.Status = check.UptimeSlow
	} else {
		out.Status = check.UptimeUp
	}
	return out, warnings
}

// statusAccepted treats 0 as "any 2xx or 3xx".
func statusAccepted(code, expected int) bool {
	if expected > 0 {
		return code == expected
	}
	return code >= 200 && code <= 399
}
