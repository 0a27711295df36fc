package ai

import (
	"context"
	"errors"

	"github.com/spigell/hirewire/internal/records"
)

var ErrUnavailable = errors.New("ai assistant is not configured")

// MatchDetails breaks a match score down by dimension.
type MatchDetails struct {
	Technical  string `json:"technical"`
	Culture    string `json:"culture"`
	Experience string `json:"experience"`
}

// MatchAnalysis is the fit of a candidate for a listing. Score is 0..100.
type MatchAnalysis struct {
	Score   int          `json:"score"`
	Reason  string       `json:"reason"`
	Details MatchDetails `json:"details"`
}

// CVReview is feedback on a candidate's CV text.
type CVReview struct {
	Score        int      `json:"score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type Matcher interface {
	AnalyzeMatch(ctx context.Context, candidate records.Profile, listing records.Listing) (*MatchAnalysis, error)
}

type CVReviewer interface {
	ReviewCV(ctx context.Context, candidate records.Profile, cv string) (*CVReview, error)
}

// Assistant is everything the app asks of the AI provider.
type Assistant interface {
	Matcher
	CVReviewer
}

// ClampScore keeps a score inside 0..100.
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// Unavailable is the assistant used when no provider is configured.
type Unavailable struct{}

func (Unavailable) AnalyzeMatch(context.Context, records.Profile, records.Listing) (*MatchAnalysis, error) {
	return nil, ErrUnavailable
}

func (Unavailable) ReviewCV(context.Context, records.Profile, string) (*CVReview, error) {
	return nil, ErrUnavailable
}
