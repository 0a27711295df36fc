package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/records"
)

// Filter represents a single filtering step applied to listings.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, listings []records.Listing) ([]records.Listing, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger    *zap.Logger
	Candidate records.Profile
	// Applied holds the IDs of listings the candidate already applied to.
	Applied []string
	Matcher ai.Matcher
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains the browsing options consumed by the filters.
type Config struct {
	Query            string
	Location         string
	ExcludeCompanies []string
	IncludeApplied   bool
	SkipAssessments  bool
	AI               *AIConfig
}

type AIConfig struct {
	Enabled         bool
	MinimumFitScore int
	// Limit caps how many listings are sent for analysis. Zero means no cap.
	Limit int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Result is the outcome of a pipeline run.
type Result struct {
	Listings    []records.Listing
	Assessments map[string]*ai.MatchAnalysis
	Steps       map[string]Step
}

// Default returns the standard pipeline in execution order.
func Default() []Filter {
	return []Filter{
		NewActive(),
		NewSearch(),
		NewCompanies(),
		NewAppliedHistory(),
		NewWithTest(),
		NewPremiumFirst(),
		NewAIFit(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially. The input slice is not
// modified.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, listings []records.Listing) (*Result, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	current := append([]records.Listing(nil), listings...)
	result := &Result{
		Assessments: make(map[string]*ai.MatchAnalysis),
		Steps:       make(map[string]Step, len(steps)),
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		current = next
		result.Steps[step.Name()] = info

		if collector, ok := step.(interface {
			Assessments() map[string]*ai.MatchAnalysis
		}); ok {
			for id, assessment := range collector.Assessments() {
				result.Assessments[id] = assessment
			}
		}
	}

	result.Listings = current
	return result, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the listings for which pred is true and the IDs of the rest.
func keep(listings []records.Listing, pred func(records.Listing) bool) ([]records.Listing, []string) {
	kept := listings[:0:0]
	var dropped []string
	for _, l := range listings {
		if pred(l) {
			kept = append(kept, l)
			continue
		}
		dropped = append(dropped, l.ID)
	}
	return kept, dropped
}

func stepOf(initial int, left []records.Listing) Step {
	return Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}
}
