package check_worker

import (
	"fmt"
	"regexp"
	"strings"
)

// evaluateContent applies the monitor's content rules to a response body.
// Broken patterns come back as warnings and never fail the check.
func evaluateContent(body string, t Target) (violations, warnings []string) {
	for _, s := range t.ExpectedContent {
		if s == "" {
			continue
		}
		if !strings.Contains(body, s) {
			violations = append(violations, fmt.Sprintf("expected content %q not found", s))
		}
	}
	for _, s := range t.ForbiddenContent {
		if s == "" {
			continue
		}
		if strings.Contains(body, s) {
			violations = append(violations, fmt.Sprintf("forbidden content %q found", s))
		}
	}
	for _, p := range t.ContentPatterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped invalid pattern %q: %v", p, err))
			continue
		}
		if !re.MatchString(body) {
			violations = append(violations, fmt.Sprintf("pattern %q did not match", p))
		}
	}
	return violations, warnings
}
