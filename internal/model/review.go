package model

import "time"

// ReviewStage names the pipeline step at which a facility failed.
type ReviewStage string

const (
	StageFetch   ReviewStage = "fetch"
	StageExtract ReviewStage = "extract"
	StagePersist ReviewStage = "persist"
)

// ReviewEntry is an append-only record of an unrecoverable pipeline failure
// awaiting human follow-up. Resolution is a separate explicit action.
type ReviewEntry struct {
	ID           string      `json:"id"`
	FacilityID   string      `json:"facility_id"`
	FacilityName string      `json:"facility_name"`
	Jurisdiction string      `json:"jurisdiction"`
	Locator      string      `json:"locator,omitempty"`
	Stage        ReviewStage `json:"stage"`
	Reason       string      `json:"reason"`
	Attempts     int         `json:"attempts"`
	Resolved     bool        `json:"resolved"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy   string      `json:"resolved_by,omitempty"`
	Note         string      `json:"note,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Subscription mirrors a payment-processor subscription for one facility.
type Subscription struct {
	ID             string     `json:"id"`
	FacilityID     string     `json:"facility_id"`
	Tier           Tier       `json:"tier"`
	PriceID        string     `json:"price_id"`
	CustomerEmail  string     `json:"customer_email,omitempty"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	Migrated       bool       `json:"migrated"`
	MigratedAt     *time.Time `json:"migrated_at,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
}

// MonthsActive returns whole calendar months between StartedAt and now,
// counted the way the billing calendar counts them (year and month
// difference, day of month ignored).
func (s *Subscription) MonthsActive(now time.Time) int {
	start := s.StartedAt.UTC()
	now = now.UTC()
	return (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
}
