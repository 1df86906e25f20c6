package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Severity is the seriousness of a violation or of a facility's record.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity accepts any casing of high, medium or low.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	default:
		return "", eris.Errorf("invalid severity %q", s)
	}
}

// UnmarshalJSON rejects values outside the enum. A JSON null leaves the
// severity empty.
func (s *Severity) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return eris.Wrap(err, "severity")
	}
	v, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseViolationStatus accepts any casing of open, corrected, pending or
// unknown.
func ParseViolationStatus(s string) (ViolationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return ViolationOpen, nil
	case "corrected":
		return ViolationCorrected, nil
	case "pending":
		return ViolationPending, nil
	case "unknown":
		return ViolationUnknown, nil
	default:
		return "", eris.Errorf("invalid violation status %q", s)
	}
}

// UnmarshalJSON rejects values outside the enum. A JSON null leaves the
// status untouched.
func (v *ViolationStatus) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return eris.Wrap(err, "violation status")
	}
	st, err := ParseViolationStatus(raw)
	if err != nil {
		return err
	}
	*v = st
	return nil
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// UnmarshalJSON parses YYYY-MM-DD.
func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return eris.Wrap(err, "date")
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return eris.Wrapf(err, "date %q", raw)
	}
	d.Time = t
	return nil
}

// Ptr returns the date as a *time.Time, nil for a nil receiver.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// Grade is the letter safety grade derived from a violation count.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeF Grade = "F"
)

// GradeFor maps a violation count to its grade: 0 is A, 1-2 is B, 3-5 is C
// and 6 or more is F.
func GradeFor(violations int) Grade {
	switch {
	case violations <= 0:
		return GradeA
	case violations <= 2:
		return GradeB
	case violations <= 5:
		return GradeC
	default:
		return GradeF
	}
}

// CandidateViolation is one violation entry as returned by the extraction
// service.
type CandidateViolation struct {
	Code               *string         `json:"violation_code"`
	Description        string          `json:"description"`
	Severity           Severity        `json:"severity"`
	DateCited          *Date           `json:"date_cited"`
	CorrectionDeadline *Date           `json:"correction_deadline"`
	Status             ViolationStatus `json:"status"`
}

// Candidate is the unvalidated structured output of the extraction service.
// Fields the service could not determine are nil.
type Candidate struct {
	TotalViolations *int                 `json:"total_violations"`
	Severity        *Severity            `json:"severity_level"`
	Summary         *string              `json:"summary"`
	Violations      []CandidateViolation `json:"full_violations"`
	ModelGrade      *string              `json:"safety_grade"`
	InspectionDate  *Date                `json:"inspection_date"`
}

// Grade returns the grade derived from TotalViolations, or nil when the
// count is unknown. The grade the model reported is ignored.
func (c *Candidate) Grade() *Grade {
	if c.TotalViolations == nil {
		return nil
	}
	g := GradeFor(*c.TotalViolations)
	return &g
}

// SummaryText returns the summary or the empty string.
func (c *Candidate) SummaryText() string {
	if c.Summary == nil {
		return ""
	}
	return *c.Summary
}

// ViolationRows converts the candidate entries into rows for facilityID.
func (c *Candidate) ViolationRows(facilityID string) []Violation {
	rows := make([]Violation, 0, len(c.Violations))
	for _, v := range c.Violations {
		status := v.Status
		if status == "" {
			status = ViolationUnknown
		}
		rows = append(rows, Violation{
			FacilityID:         facilityID,
			Code:               v.Code,
			Description:        v.Description,
			Severity:           v.Severity,
			DateCited:          v.DateCited.Ptr(),
			CorrectionDeadline: v.CorrectionDeadline.Ptr(),
			Status:             status,
		})
	}
	return rows
}
