package summary

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	Hourly  Period = "hourly"
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

var Periods = []Period{Hourly, Daily, Weekly, Monthly}

func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Bounds returns the UTC window [start, end) of the period containing t.
// Weeks start on Monday.
func (p Period) Bounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case Hourly:
		start = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
		return start, start.Add(time.Hour)
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case Monthly:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}

// Previous returns the start of the period just before the one containing t.
func (p Period) Previous(t time.Time) time.Time {
	start, _ := p.Bounds(t)
	prev, _ := p.Bounds(start.Add(-time.Nanosecond))
	return prev
}

type Summary struct {
	MonitorID   int64     `json:"monitor_id"`
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Stats
	UpdatedAt time.Time `json:"updated_at"`
}
