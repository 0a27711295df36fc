package filtering

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/records"
)

const includeFlagSetMsg = "include-applied is set"

type activeFilter struct{}

// NewActive creates a filter that removes closed listings.
func NewActive() Filter {
	return &activeFilter{}
}

func (f *activeFilter) Name() string { return "active" }

func (f *activeFilter) Disable(string) {}

func (f *activeFilter) IsEnabled() bool { return true }

func (f *activeFilter) Validate(*Config) error { return nil }

func (f *activeFilter) Apply(_ context.Context, _ Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	kept, _ := keep(listings, func(l records.Listing) bool {
		return l.Status != records.ListingClosed
	})
	return kept, stepOf(len(listings), kept), nil
}

type searchFilter struct {
	terms    []string
	location string
}

// NewSearch creates a filter that keeps listings matching every query term
// and the requested location.
func NewSearch() Filter {
	return &searchFilter{}
}

func (f *searchFilter) Name() string { return "search" }

func (f *searchFilter) Disable(string) {}

func (f *searchFilter) IsEnabled() bool { return true }

func (f *searchFilter) Validate(cfg *Config) error {
	f.terms = strings.Fields(strings.ToLower(cfg.Query))
	f.location = strings.ToLower(strings.TrimSpace(cfg.Location))
	return nil
}

func (f *searchFilter) Apply(_ context.Context, _ Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	if len(f.terms) == 0 && f.location == "" {
		return listings, stepOf(len(listings), listings), nil
	}

	kept, _ := keep(listings, func(l records.Listing) bool {
		if f.location != "" && !strings.Contains(strings.ToLower(l.Location), f.location) {
			return false
		}
		haystack := strings.ToLower(strings.Join([]string{l.Title, l.Company, l.Description}, " "))
		for _, term := range f.terms {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
		return true
	})
	return kept, stepOf(len(listings), kept), nil
}

func (f *searchFilter) Status() Status {
	details := map[string]string{}
	if len(f.terms) > 0 {
		details["query"] = strings.Join(f.terms, " ")
	}
	if f.location != "" {
		details["location"] = f.location
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type companiesFilter struct {
	companies map[string]struct{}
}

// NewCompanies creates a filter that removes listings of excluded companies.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = make(map[string]struct{}, len(cfg.ExcludeCompanies))
	for _, c := range cfg.ExcludeCompanies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			f.companies[c] = struct{}{}
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	if len(f.companies) == 0 {
		return listings, stepOf(len(listings), listings), nil
	}

	kept, excluded := keep(listings, func(l records.Listing) bool {
		_, blocked := f.companies[strings.ToLower(strings.TrimSpace(l.Company))]
		return !blocked
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding listings by company",
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}
	return kept, stepOf(len(listings), kept), nil
}

func (f *companiesFilter) Status() Status {
	names := make([]string, 0, len(f.companies))
	for c := range f.companies {
		names = append(names, c)
	}
	sort.Strings(names)

	details := map[string]string{}
	if len(names) > 0 {
		details["companies"] = strings.Join(names, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type appliedHistoryFilter struct {
	ignore bool
}

// NewAppliedHistory creates a filter that removes listings the candidate
// already applied to.
func NewAppliedHistory() Filter {
	return &appliedHistoryFilter{}
}

func (f *appliedHistoryFilter) Name() string { return "applied_history" }

func (f *appliedHistoryFilter) Disable(string) {}

func (f *appliedHistoryFilter) IsEnabled() bool { return true }

func (f *appliedHistoryFilter) Validate(cfg *Config) error {
	f.ignore = cfg.IncludeApplied
	return nil
}

func (f *appliedHistoryFilter) Apply(_ context.Context, deps Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	if f.ignore {
		if deps.Logger != nil {
			deps.Logger.Debug("keeping already applied listings", zap.String("reason", includeFlagSetMsg))
		}
		return listings, stepOf(len(listings), listings), nil
	}

	applied := make(map[string]struct{}, len(deps.Applied))
	for _, id := range deps.Applied {
		applied[id] = struct{}{}
	}

	kept, excluded := keep(listings, func(l records.Listing) bool {
		_, ok := applied[l.ID]
		return !ok
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding already applied listings",
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}
	return kept, stepOf(len(listings), kept), nil
}

func (f *appliedHistoryFilter) Status() Status {
	reason := ""
	if f.ignore {
		reason = includeFlagSetMsg
	}
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Reason:  reason,
		Details: map[string]string{"exclude_applied": strconv.FormatBool(!f.ignore)},
	}
}

type withTestFilter struct {
	skip bool
}

// NewWithTest creates a filter that removes listings requiring an aptitude
// test when the caller asked to skip them.
func NewWithTest() Filter {
	return &withTestFilter{}
}

func (f *withTestFilter) Name() string { return "with_test" }

func (f *withTestFilter) Disable(string) {}

func (f *withTestFilter) IsEnabled() bool { return true }

func (f *withTestFilter) Validate(cfg *Config) error {
	f.skip = cfg.SkipAssessments
	return nil
}

func (f *withTestFilter) Apply(_ context.Context, _ Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	if !f.skip {
		return listings, stepOf(len(listings), listings), nil
	}
	kept, _ := keep(listings, func(l records.Listing) bool {
		return l.AptitudeTestRef == ""
	})
	return kept, stepOf(len(listings), kept), nil
}

type premiumFirstFilter struct{}

// NewPremiumFirst moves premium listings ahead of the rest, keeping the
// relative order within each group.
func NewPremiumFirst() Filter {
	return &premiumFirstFilter{}
}

func (f *premiumFirstFilter) Name() string { return "premium_first" }

func (f *premiumFirstFilter) Disable(string) {}

func (f *premiumFirstFilter) IsEnabled() bool { return true }

func (f *premiumFirstFilter) Validate(*Config) error { return nil }

func (f *premiumFirstFilter) Apply(_ context.Context, _ Deps, listings []records.Listing) ([]records.Listing, Step, error) {
	sorted := append([]records.Listing(nil), listings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Premium && !sorted[j].Premium
	})
	return sorted, stepOf(len(listings), sorted), nil
}
