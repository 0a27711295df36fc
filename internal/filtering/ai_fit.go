package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/records"
)

type aiFitFilter struct {
	disabled    bool
	reason      string
	config      *AIConfig
	assessments map[string]*ai.MatchAnalysis
}

// NewAIFit creates the AI-based filtering step. It is a no-op unless AI
// browsing is enabled in the config.
func NewAIFit() Filter {
	return &aiFitFilter{}
}

func (f *aiFitFilter) Name() string { return "ai_fit" }

func (f *aiFitFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *aiFitFilter) IsEnabled() bool { return !f.disabled }

func (f *aiFitFilter) Validate(cfg *Config) error {
	f.config = cfg.AI
	if f.config == nil || !f.config.Enabled {
		return nil
	}
	if f.config.MinimumFitScore < 0 || f.config.MinimumFitScore > 100 {
		return fmt.Errorf("minimum fit score must be within 0..100, got %d", f.config.MinimumFitScore)
	}
	return nil
}

func (f *aiFitFilter) Apply(ctx context.Context, deps Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	f.assessments = map[string]*ai.MatchAnalysis{}
	if f.config == nil || !f.config.Enabled {
		return listings, stepOf(len(listings), listings), nil
	}
	if deps.Matcher == nil {
		if deps.Logger != nil {
			deps.Logger.Info("ai matcher is not configured; skipping ai_fit filter")
		}
		return listings, stepOf(len(listings), listings), nil
	}
	if deps.Candidate.ID == "" {
		return listings, Step{}, errors.New("candidate profile is required for AI evaluation")
	}

	approved := make([]records.Listing, 0, len(listings))
	for i, listing := range listings {
		if f.config.Limit > 0 && i >= f.config.Limit {
			approved = append(approved, listing)
			continue
		}

		analysis, err := deps.Matcher.AnalyzeMatch(ctx, deps.Candidate, listing)
		if err != nil {
			if ctx.Err() != nil {
				return listings, Step{}, ctx.Err()
			}
			if deps.Logger != nil {
				deps.Logger.Warn("AI evaluation failed",
					zap.String("listing_id", listing.ID),
					zap.Error(err),
				)
			}
			approved = append(approved, listing)
			continue
		}

		if analysis.Score < f.config.MinimumFitScore {
			if deps.Logger != nil {
				deps.Logger.Debug("listing rejected by AI score",
					zap.String("listing_id", listing.ID),
					zap.Int("ai_score", analysis.Score),
					zap.Int("threshold", f.config.MinimumFitScore),
				)
			}
			continue
		}

		approved = append(approved, listing)
		f.assessments[listing.ID] = analysis
	}

	return approved, stepOf(len(listings), approved), nil
}

func (f *aiFitFilter) Assessments() map[string]*ai.MatchAnalysis {
	return f.assessments
}

func (f *aiFitFilter) Status() Status {
	details := map[string]string{}
	enabled := f.IsEnabled() && f.config != nil && f.config.Enabled
	if f.config != nil {
		details["minimum_fit_score"] = strconv.Itoa(f.config.MinimumFitScore)
		details["limit"] = strconv.Itoa(f.config.Limit)
	}
	return Status{Name: f.Name(), Enabled: enabled, Reason: f.reason, Details: details}
}
