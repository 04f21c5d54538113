// Package period extracts the billing period from an electronic invoice
// attached document (UBL AttachedDocument with the Invoice embedded in a
// CDATA section).
package period

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNoPeriod is returned when the billing document lacks the invoice
// period fields. Callers must treat it as fatal for the source unit.
var ErrNoPeriod = errors.New("billing document has no invoice period")

// BillingPeriod bounds the clinical-event dates of one billing unit.
// Invariant: Start <= End.
type BillingPeriod struct {
	Start     time.Time
	End       time.Time
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
}

// Days returns the period length in whole days, rounded up.
func (p *BillingPeriod) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24 + 0.999)
}

func (p *BillingPeriod) String() string {
	return fmt.Sprintf("%s .. %s", p.StartDate, p.EndDate)
}

// attachedDocument mirrors the outer UBL wrapper. Namespace prefixes are
// ignored; encoding/xml matches on local names.
type attachedDocument struct {
	Attachment struct {
		ExternalReference struct {
			Description string `xml:"Description"`
		} `xml:"ExternalReference"`
	} `xml:"Attachment"`
}

type invoice struct {
	InvoicePeriod struct {
		StartDate string `xml:"StartDate"`
		StartTime string `xml:"StartTime"`
		EndDate   string `xml:"EndDate"`
		EndTime   string `xml:"EndTime"`
	} `xml:"InvoicePeriod"`
}

var (
	reStartDate = regexp.MustCompile(`<cbc:StartDate>(\d{4}-\d{2}-\d{2})</cbc:StartDate>`)
	reStartTime = regexp.MustCompile(`<cbc:StartTime>([^<]+)</cbc:StartTime>`)
	reEndDate   = regexp.MustCompile(`<cbc:EndDate>(\d{4}-\d{2}-\d{2})</cbc:EndDate>`)
	reEndTime   = regexp.MustCompile(`<cbc:EndTime>([^<]+)</cbc:EndTime>`)
)

// Extract parses the billing document and returns its invoice period.
// It first walks the AttachedDocument → CDATA Invoice structure; if the
// wrapper does not parse it falls back to a regex scan over the raw bytes.
func Extract(data []byte) (*BillingPeriod, error) {
	startDate, startTime, endDate, endTime := extractStructured(data)
	if startDate == "" || endDate == "" {
		startDate, startTime, endDate, endTime = extractRegex(data)
	}
	if startDate == "" || endDate == "" {
		return nil, ErrNoPeriod
	}
	return build(startDate, startTime, endDate, endTime)
}

func extractStructured(data []byte) (startDate, startTime, endDate, endTime string) {
	var doc attachedDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", "", "", ""
	}

	inner := strings.TrimSpace(doc.Attachment.ExternalReference.Description)
	// Older generators leave the CDATA markers inside the text content.
	inner = strings.TrimPrefix(inner, "<![CDATA[")
	inner = strings.TrimSuffix(inner, "]]>")
	if inner == "" {
		return "", "", "", ""
	}

	var inv invoice
	if err := xml.Unmarshal([]byte(inner), &inv); err != nil {
		return "", "", "", ""
	}
	p := inv.InvoicePeriod
	return p.StartDate, p.StartTime, p.EndDate, p.EndTime
}

func extractRegex(data []byte) (startDate, startTime, endDate, endTime string) {
	return firstGroup(reStartDate, data), firstGroup(reStartTime, data),
		firstGroup(reEndDate, data), firstGroup(reEndTime, data)
}

func firstGroup(re *regexp.Regexp, data []byte) string {
	if m := re.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}

func build(startDate, startTime, endDate, endTime string) (*BillingPeriod, error) {
	if startTime == "" {
		startTime = "00:00:00"
	}
	if endTime == "" {
		endTime = "23:59:59"
	}

	start, err := parseInstant(startDate, startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start %s %s", ErrNoPeriod, startDate, startTime)
	}
	end, err := parseInstant(endDate, endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end %s %s", ErrNoPeriod, endDate, endTime)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrNoPeriod, endDate, startDate)
	}

	return &BillingPeriod{
		Start:     start,
		End:       end,
		StartDate: startDate,
		EndDate:   endDate,
	}, nil
}

func parseInstant(date, clock string) (time.Time, error) {
	// Some generators emit a timezone offset in the time element.
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05-07:00"} {
		if t, err := time.ParseInLocation(layout, date+"T"+clock, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable instant %sT%s", date, clock)
}
