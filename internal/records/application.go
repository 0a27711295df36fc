package records

import (
	"strings"
	"time"
)

// ApplicationStatus is owned by the remote schema. Unknown values are kept verbatim.
type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "applied"
	StatusReviewing ApplicationStatus = "reviewing"
	StatusInterview ApplicationStatus = "interview"
	StatusRejected  ApplicationStatus = "rejected"
	StatusHired     ApplicationStatus = "hired"
)

// ApplicationStatuses is the pipeline order.
var ApplicationStatuses = []ApplicationStatus{
	StatusApplied, StatusReviewing, StatusInterview, StatusRejected, StatusHired,
}

func (s ApplicationStatus) Known() bool {
	for _, known := range ApplicationStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Application struct {
	ID          string
	ListingID   string
	CandidateID string
	Status      ApplicationStatus
	VideoRef    string
	TestScore   *int
	AppliedAt   time.Time
	Candidate   *Profile
}

func (a Application) Key() string { return a.ID }

// SamePair reports whether both applications target the same listing for the same candidate.
func (a Application) SamePair(listingID, candidateID string) bool {
	return a.ListingID == listingID && a.CandidateID == candidateID
}

// ApplicationRow is the remote "applications" table shape. Candidate is only
// populated by joined reads.
type ApplicationRow struct {
	ID          string      `mapstructure:"id" json:"id"`
	JobID       string      `mapstructure:"job_id" json:"job_id"`
	CandidateID string      `mapstructure:"candidate_id" json:"candidate_id"`
	Status      string      `mapstructure:"status" json:"status"`
	VideoURL    *string     `mapstructure:"video_url" json:"video_url"`
	TestScore   *int        `mapstructure:"test_score" json:"test_score"`
	CreatedAt   time.Time   `mapstructure:"created_at" json:"created_at"`
	Candidate   *ProfileRow `mapstructure:"candidate" json:"-"`
}

func (r ApplicationRow) Application() Application {
	a := Application{
		ID:          r.ID,
		ListingID:   r.JobID,
		CandidateID: r.CandidateID,
		Status:      ApplicationStatus(strings.ToLower(strings.TrimSpace(r.Status))),
		VideoRef:    deref(r.VideoURL),
		TestScore:   r.TestScore,
		AppliedAt:   r.CreatedAt.UTC(),
	}
	if a.Status == "" {
		a.Status = StatusApplied
	}
	if r.Candidate != nil {
		p := r.Candidate.Profile()
		a.Candidate = &p
	}
	return a
}

func ApplicationRowFrom(a Application) ApplicationRow {
	return ApplicationRow{
		ID:          a.ID,
		JobID:       a.ListingID,
		CandidateID: a.CandidateID,
		Status:      string(a.Status),
		VideoURL:    ref(a.VideoRef),
		TestScore:   a.TestScore,
		CreatedAt:   a.AppliedAt.UTC(),
	}
}
