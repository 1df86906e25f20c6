package model

import (
	"strings"
	"time"
)

// Tier is a paid sponsorship level.
type Tier string

const (
	TierNone         Tier = "none"
	TierFeatured     Tier = "featured"
	TierVerified     Tier = "verified"
	TierResponseOnly Tier = "response_only"
)

// ParseTier maps tier identifiers, including the legacy payment-processor
// metadata names, to a Tier. The second return is false for unknown input.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TierNone, true
	case "featured", "featured_verified":
		return TierFeatured, true
	case "verified", "verified_profile":
		return TierVerified, true
	case "response_only", "response-only", "facility_response":
		return TierResponseOnly, true
	default:
		return "", false
	}
}

// HasViolationCeiling reports whether the tier is gated on the violation
// ceiling.
func (t Tier) HasViolationCeiling() bool {
	return t == TierFeatured || t == TierVerified
}

// DisplayName returns the customer-facing tier name.
func (t Tier) DisplayName() string {
	switch t {
	case TierFeatured:
		return "Featured Verified"
	case TierVerified:
		return "Verified Profile"
	case TierResponseOnly:
		return "Facility Response"
	default:
		return "None"
	}
}

// FacilityStatus is the licensing status reported by the jurisdiction.
// It is informational only.
type FacilityStatus string

const (
	StatusActive           FacilityStatus = "active"
	StatusClosed           FacilityStatus = "closed"
	StatusLicenseExpired   FacilityStatus = "license_expired"
	StatusLicenseSuspended FacilityStatus = "license_suspended"
)

// ParseFacilityStatus normalises a status string from an import source.
// Unknown values map to StatusActive.
func ParseFacilityStatus(s string) FacilityStatus {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, " ", "_"))) {
	case "closed", "inactive":
		return StatusClosed
	case "license_expired", "expired":
		return StatusLicenseExpired
	case "license_suspended", "suspended":
		return StatusLicenseSuspended
	default:
		return StatusActive
	}
}

// Facility is the system-of-record row for a licensed care facility.
type Facility struct {
	ID            string         `json:"id"`
	LicenseNumber string         `json:"license_number"`
	Jurisdiction  string         `json:"jurisdiction"`
	Name          string         `json:"name"`
	City          string         `json:"city,omitempty"`
	County        string         `json:"county,omitempty"`
	Address       string         `json:"address,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Capacity      *int           `json:"capacity,omitempty"`
	Slug          string         `json:"slug,omitempty"`
	ReportURL     string         `json:"report_url,omitempty"`
	Status        FacilityStatus `json:"status"`

	// ViolationCount is nil when no inspection source exists yet. Nil is
	// distinct from zero.
	ViolationCount     *int       `json:"violation_count"`
	Grade              *Grade     `json:"grade,omitempty"`
	Severity           *Severity  `json:"severity,omitempty"`
	Summary            *string    `json:"summary,omitempty"`
	SummaryValidated   bool       `json:"summary_validated"`
	LastInspectionDate *time.Time `json:"last_inspection_date,omitempty"`
	ExtractedAt        *time.Time `json:"extracted_at,omitempty"`

	SponsorTier         Tier   `json:"sponsor_tier"`
	OnboardingToken     string `json:"onboarding_token,omitempty"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	BillingEmail        string `json:"billing_email,omitempty"`
	UpgradeNotified     bool   `json:"upgrade_notified"`

	// Owner-submitted enhancement fields.
	WebsiteURL   string `json:"website_url,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Description  string `json:"description,omitempty"`
	ResponseText string `json:"response_text,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSponsored reports whether the facility has an active paid tier.
func (f *Facility) IsSponsored() bool {
	return f.SponsorTier != "" && f.SponsorTier != TierNone
}

// NotifyEmail returns the address owner notifications go to: the
// owner-submitted contact first, then the billing address captured at
// checkout.
func (f *Facility) NotifyEmail() string {
	if f.ContactEmail != "" {
		return f.ContactEmail
	}
	return f.BillingEmail
}

// ViolationStatus is the correction status of a single citation.
type ViolationStatus string

const (
	ViolationOpen      ViolationStatus = "open"
	ViolationCorrected ViolationStatus = "corrected"
	ViolationPending   ViolationStatus = "pending"
	ViolationUnknown   ViolationStatus = "unknown"
)

// Violation is one citation row. The full set for a facility is always
// replaced together.
type Violation struct {
	ID                 string          `json:"id"`
	FacilityID         string          `json:"facility_id"`
	Code               *string         `json:"code,omitempty"`
	Description        string          `json:"description"`
	Severity           Severity        `json:"severity"`
	DateCited          *time.Time      `json:"date_cited,omitempty"`
	CorrectionDeadline *time.Time      `json:"correction_deadline,omitempty"`
	Status             ViolationStatus `json:"status"`
}
