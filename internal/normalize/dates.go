package normalize

import (
	"strings"
	"time"

	"github.com/lorveOne/MinisterioRips/internal/period"
)

// canonical is the date format SISPRO accepts on clinical-event fields.
const canonical = "2006-01-02 15:04"

// Date formats found in RIPS exports, most specific first.
var dateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate attempts to parse a clinical-event date string in the formats
// above. Returns nil if the input is empty or unparseable.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

// ClampToPeriod returns value reformatted to the canonical form, bounded by
// the billing period: dates before the period start become the start, dates
// after the period end become the end. The second return is false when the
// value could not be parsed; the caller keeps the original string.
func ClampToPeriod(value string, p *period.BillingPeriod) (string, bool) {
	t := ParseDate(value)
	if t == nil {
		return value, false
	}
	switch {
	case t.Before(p.Start):
		return p.Start.Format(canonical), true
	case t.After(p.End):
		return p.End.Format(canonical), true
	default:
		return t.Format(canonical), true
	}
}
