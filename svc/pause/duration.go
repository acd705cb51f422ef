package pause

import (
	"fmt"
	"strings"
	"time"
)

// Duration is how long collection stays paused after the current period.
type Duration string

const (
	TwoWeeks  Duration = "2_weeks"
	OneMonth  Duration = "1_month"
	TwoMonths Duration = "2_months"
)

// Durations lists every supported duration, shortest first.
var Durations = []Duration{TwoWeeks, OneMonth, TwoMonths}

// ParseDuration validates a client supplied duration.
func ParseDuration(s string) (Duration, error) {
	d := Duration(s)
	if d.Days() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}

// Days is the extension in days, or 0 for an unknown duration.
func (d Duration) Days() int {
	switch d {
	case TwoWeeks:
		return 14
	case OneMonth:
		return 30
	case TwoMonths:
		return 60
	}
	return 0
}

// ResumeAt is the date collection resumes when pausing a period that ends
// at periodEnd.
func (d Duration) ResumeAt(periodEnd time.Time) time.Time {
	return periodEnd.Add(time.Duration(d.Days()) * 24 * time.Hour)
}

func (d Duration) Label() string {
	switch d {
	case TwoWeeks:
		return "2 Weeks"
	case OneMonth:
		return "1 Month"
	case TwoMonths:
		return "2 Months"
	}
	return string(d)
}

// Choice is one pause duration offered to the user.
type Choice struct {
	Duration         Duration  `json:"duration"`
	Label            string    `json:"label"`
	Description      string    `json:"description"`
	ResumeDate       time.Time `json:"resume_date"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

// Options lists every duration with its resume date.
func Options(periodEnd time.Time) []Choice {
	out := make([]Choice, 0, len(Durations))
	for _, d := range Durations {
		out = append(out, Choice{
			Duration:         d,
			Label:            d.Label(),
			Description:      "Extend your billing by " + strings.ToLower(d.Label()),
			ResumeDate:       d.ResumeAt(periodEnd).UTC(),
			CurrentPeriodEnd: periodEnd.UTC(),
		})
	}
	return out
}
