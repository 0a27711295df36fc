package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/filtering"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/router"
)

var ErrNotAllowed = errors.New("operation not allowed for the current identity")

// AnalyzeMatch asks the assistant how well the signed-in candidate fits a
// listing. The listing is marked as analyzing until the call returns,
// whatever the outcome.
func (a *App) AnalyzeMatch(ctx context.Context, listingID string) (*ai.MatchAnalysis, error) {
	id, ok := a.gate(router.ViewSeeker, router.IntentAnalyze)
	if !ok {
		return nil, ErrNotAllowed
	}

	listing, ok := a.Listing(listingID)
	if !ok {
		a.notices.Error(TitleNotFound, "This position is no longer available.")
		return nil, ErrListingNotFound
	}

	a.setAnalyzing(listingID, true)
	defer a.setAnalyzing(listingID, false)

	analysis, err := a.assistant.AnalyzeMatch(ctx, id.Profile(), listing)
	if err != nil {
		a.logger.Warn("match analysis failed", zap.String(logger.FieldListingID, listingID), zap.Error(err))
		a.notices.Error("Analysis Failed", "We could not analyze this match. Please try again.")
		return nil, err
	}

	a.mu.Lock()
	a.matches[listingID] = analysis
	a.mu.Unlock()

	return analysis, nil
}

// Analyzing reports whether a match analysis for the listing is running.
func (a *App) Analyzing(listingID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analyzing[listingID]
}

// Match returns the last analysis of the listing, if any.
func (a *App) Match(listingID string) (*ai.MatchAnalysis, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.matches[listingID]
	return m, ok
}

func (a *App) setAnalyzing(listingID string, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		a.analyzing[listingID] = true
		return
	}
	delete(a.analyzing, listingID)
}

// ReviewCV asks the assistant for feedback on the candidate's CV text.
func (a *App) ReviewCV(ctx context.Context, cv string) (*ai.CVReview, error) {
	id, ok := a.gate(router.ViewCVReview, router.IntentReviewCV)
	if !ok {
		return nil, ErrNotAllowed
	}

	review, err := a.assistant.ReviewCV(ctx, id.Profile(), cv)
	if err != nil {
		a.logger.Warn("cv review failed", zap.Error(err))
		a.notices.Error("Review Failed", "We could not review your CV. Please try again.")
		return nil, err
	}
	return review, nil
}

// BrowseListings runs the filter pipeline over the local listings. AI
// scoring only runs for a signed-in candidate.
func (a *App) BrowseListings(ctx context.Context, cfg filtering.Config) (*filtering.Result, error) {
	id := a.holder.Current()

	var applied []string
	for _, app := range a.applications.Values() {
		if app.CandidateID == id.ID {
			applied = append(applied, app.ListingID)
		}
	}

	steps := filtering.Default()
	deps := filtering.Deps{
		Logger:    a.logger,
		Candidate: id.Profile(),
		Applied:   applied,
		Matcher:   a.assistant,
	}
	if id.IsGuest() {
		filtering.DisableByName(steps, "ai_fit", "sign in to use AI matching")
		deps.Candidate = records.Profile{}
	}

	result, err := filtering.Run(ctx, &cfg, deps, steps, a.listings.Values())
	if err != nil {
		a.notices.Error("Search Failed", "Listings could not be filtered.")
		return nil, err
	}

	if len(result.Assessments) > 0 {
		a.mu.Lock()
		for listingID, analysis := range result.Assessments {
			a.matches[listingID] = analysis
		}
		a.mu.Unlock()
	}
	return result, nil
}
