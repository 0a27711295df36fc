package records

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestDecodeListing(t *testing.T) {
	row := Row{
		"id":               "job-1",
		"employer_id":      "emp-1",
		"title":            "Go Engineer",
		"company_name":     "Acme",
		"salary":           "$120k",
		"status":           "ACTIVE",
		"visibility_tier":  "premium",
		"is_premium":       true,
		"created_at":       "2024-03-01T10:00:00.123456+00:00",
		"aptitude_test_id": nil,
		"unknown_column":   "ignored",
	}

	l, err := DecodeListing(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.ID != "job-1" || l.OwnerID != "emp-1" || l.Company != "Acme" || l.Compensation != "$120k" {
		t.Fatalf("unexpected listing: %+v", l)
	}
	if l.Status != ListingActive {
		t.Fatalf("expected active status, got %q", l.Status)
	}
	if l.Tier != TierPremium || !l.Premium {
		t.Fatalf("expected premium tier, got %q premium=%v", l.Tier, l.Premium)
	}
	if l.HasAssessment() {
		t.Fatalf("expected no assessment for null aptitude_test_id")
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	if !l.PostedAt.Equal(want) {
		t.Fatalf("expected %s, got %s", want, l.PostedAt)
	}
}

func TestDecodeListingRejectsBadTimestamp(t *testing.T) {
	if _, err := DecodeListing(Row{"id": "x", "created_at": "yesterday"}); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestDecodeApplicationWithCandidate(t *testing.T) {
	// JSON numbers arrive as float64.
	var row Row
	payload := `{
		"id": "app-1",
		"job_id": "job-1",
		"candidate_id": "user-1",
		"status": "Interview",
		"video_url": "videos/pitch.webm",
		"test_score": 87,
		"created_at": "2024-03-02T08:00:00Z",
		"candidate": {"id": "user-1", "full_name": " Ada ", "skills": ["Go", " ", "SQL"]}
	}`
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	a, err := DecodeApplication(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Status != StatusInterview || !a.Status.Known() {
		t.Fatalf("unexpected status %q", a.Status)
	}
	if a.TestScore == nil || *a.TestScore != 87 {
		t.Fatalf("unexpected test score %v", a.TestScore)
	}
	if a.VideoRef != "videos/pitch.webm" {
		t.Fatalf("unexpected video ref %q", a.VideoRef)
	}
	if a.Candidate == nil || a.Candidate.Name != "Ada" || len(a.Candidate.Skills) != 2 {
		t.Fatalf("unexpected candidate %+v", a.Candidate)
	}
}

func TestUnknownApplicationStatusIsKept(t *testing.T) {
	a, err := DecodeApplication(Row{"id": "a", "status": "withdrawn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != "withdrawn" || a.Status.Known() {
		t.Fatalf("expected opaque status to survive, got %q", a.Status)
	}
}

func TestListingRowRoundTrip(t *testing.T) {
	posted := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Listing{
		ID:              "job-9",
		OwnerID:         "emp-9",
		Title:           "SRE",
		Status:          ListingActive,
		PostedAt:        posted,
		AptitudeTestRef: "test-1",
	}

	row := ListingRowFrom(in)
	if row.VisibilityTier != string(TierStandard) {
		t.Fatalf("expected default tier, got %q", row.VisibilityTier)
	}
	if row.AptitudeTestID == nil || *row.AptitudeTestID != "test-1" {
		t.Fatalf("unexpected aptitude test id %v", row.AptitudeTestID)
	}

	out := row.Listing()
	if out.ID != in.ID || out.OwnerID != in.OwnerID || out.AptitudeTestRef != in.AptitudeTestRef || !out.PostedAt.Equal(posted) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestParseTier(t *testing.T) {
	if ParseTier(" Shortlist ") != TierShortlist {
		t.Fatal("expected shortlist")
	}
	if ParseTier("gold") != TierStandard {
		t.Fatal("expected unknown tier to fall back to standard")
	}
}

func TestFilters(t *testing.T) {
	cases := []struct {
		name  string
		query any
		want  []Filter
	}{
		{
			name:  "zero values skipped",
			query: ListingQuery{Status: "active"},
			want:  []Filter{{Column: "status", Values: []string{"active"}}},
		},
		{
			name:  "membership",
			query: &ApplicationQuery{ListingIDs: []string{"l1", "l2"}},
			want:  []Filter{{Column: "job_id", Values: []string{"l1", "l2"}, Many: true}},
		},
		{
			name:  "empty membership is kept",
			query: ApplicationQuery{ListingIDs: []string{}},
			want:  []Filter{{Column: "job_id", Values: []string{}, Many: true}},
		},
		{
			name:  "not a struct",
			query: "status",
			want:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Filters(tc.query)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Filters() = %#v, want %#v", got, tc.want)
			}
		})
	}
}
