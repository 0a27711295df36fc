package records

import (
	"strings"
	"time"
)

type ListingStatus string

const (
	ListingActive ListingStatus = "active"
	ListingClosed ListingStatus = "closed"
)

// Tier is the visibility product a listing was posted with.
type Tier string

const (
	TierStandard     Tier = "standard"
	TierPremium      Tier = "premium"
	TierShortlist    Tier = "shortlist"
	TierProfessional Tier = "professional"
)

// Tiers lists the purchasable tiers in display order.
var Tiers = []Tier{TierStandard, TierPremium, TierShortlist, TierProfessional}

func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTier maps free text to a tier, defaulting to standard.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return TierStandard
	}
	return t
}

type Listing struct {
	ID              string
	OwnerID         string
	Title           string
	Company         string
	Location        string
	Compensation    string
	Description     string
	Status          ListingStatus
	Tier            Tier
	Premium         bool
	PostedAt        time.Time
	AptitudeTestRef string
}

// Key identifies the listing inside local collections.
func (l Listing) Key() string { return l.ID }

// HasAssessment reports whether applicants must pass an aptitude test first.
func (l Listing) HasAssessment() bool { return strings.TrimSpace(l.AptitudeTestRef) != "" }

// ListingRow is the remote "jobs" table shape.
type ListingRow struct {
	ID             string    `mapstructure:"id" json:"id"`
	EmployerID     string    `mapstructure:"employer_id" json:"employer_id"`
	Title          string    `mapstructure:"title" json:"title"`
	CompanyName    string    `mapstructure:"company_name" json:"company_name"`
	Location       string    `mapstructure:"location" json:"location"`
	Salary         string    `mapstructure:"salary" json:"salary"`
	Description    string    `mapstructure:"description" json:"description"`
	Status         string    `mapstructure:"status" json:"status"`
	VisibilityTier string    `mapstructure:"visibility_tier" json:"visibility_tier"`
	IsPremium      bool      `mapstructure:"is_premium" json:"is_premium"`
	CreatedAt      time.Time `mapstructure:"created_at" json:"created_at"`
	AptitudeTestID *string   `mapstructure:"aptitude_test_id" json:"aptitude_test_id"`
}

// Listing converts the row into the domain record.
func (r ListingRow) Listing() Listing {
	status := ListingStatus(strings.ToLower(strings.TrimSpace(r.Status)))
	if status == "" {
		status = ListingActive
	}

	return Listing{
		ID:              r.ID,
		OwnerID:         r.EmployerID,
		Title:           r.Title,
		Company:         r.CompanyName,
		Location:        r.Location,
		Compensation:    r.Salary,
		Description:     r.Description,
		Status:          status,
		Tier:            ParseTier(r.VisibilityTier),
		Premium:         r.IsPremium,
		PostedAt:        r.CreatedAt.UTC(),
		AptitudeTestRef: deref(r.AptitudeTestID),
	}
}

// ListingRowFrom converts a domain listing into the outbound row.
func ListingRowFrom(l Listing) ListingRow {
	tier := l.Tier
	if tier == "" {
		tier = TierStandard
	}

	return ListingRow{
		ID:             l.ID,
		EmployerID:     l.OwnerID,
		Title:          l.Title,
		CompanyName:    l.Company,
		Location:       l.Location,
		Salary:         l.Compensation,
		Description:    l.Description,
		Status:         string(l.Status),
		VisibilityTier: string(tier),
		IsPremium:      l.Premium,
		CreatedAt:      l.PostedAt.UTC(),
		AptitudeTestID: ref(l.AptitudeTestRef),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func ref(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
