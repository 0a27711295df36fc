package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/mutation"
	"github.com/spigell/hirewire/internal/notify"
	"github.com/spigell/hirewire/internal/records"
)

func printListings(w io.Writer, listings []records.Listing, assessments map[string]*ai.MatchAnalysis) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOMPANY\tLOCATION\tTIER\tTEST\tFIT")
	for _, l := range listings {
		fit := "-"
		if a := assessments[l.ID]; a != nil {
			fit = fmt.Sprintf("%d", a.Score)
		}
		test := ""
		if l.HasAssessment() {
			test = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Title, l.Company, l.Location, l.Tier, test, fit)
	}
	_ = tw.Flush()
}

func printApplications(w io.Writer, entries []mutation.Entry[records.Application], titles map[string]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLISTING\tCANDIDATE\tSTATUS\tAPPLIED\tSYNC")
	for _, e := range entries {
		a := e.Value
		candidate := a.CandidateID
		if a.Candidate != nil && a.Candidate.Name != "" {
			candidate = a.Candidate.Name
		}
		listing := titles[a.ListingID]
		if listing == "" {
			listing = a.ListingID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, listing, candidate, a.Status, a.AppliedAt.Format("2006-01-02"), e.State)
	}
	_ = tw.Flush()
}

func printBalances(w io.Writer, balances map[records.Tier]int) {
	tiers := make([]string, 0, len(balances))
	for t := range balances {
		tiers = append(tiers, string(t))
	}
	sort.Strings(tiers)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tUNITS")
	for _, t := range tiers {
		fmt.Fprintf(tw, "%s\t%d\n", t, balances[records.Tier(t)])
	}
	_ = tw.Flush()
}

func printMatch(w io.Writer, m *ai.MatchAnalysis) {
	fmt.Fprintf(w, "Fit score: %d/100\n%s\n", m.Score, m.Reason)
	for _, line := range []struct{ name, text string }{
		{"Technical", m.Details.Technical},
		{"Culture", m.Details.Culture},
		{"Experience", m.Details.Experience},
	} {
		if line.text != "" {
			fmt.Fprintf(w, "  %s: %s\n", line.name, line.text)
		}
	}
}

func printReview(w io.Writer, r *ai.CVReview) {
	fmt.Fprintf(w, "CV score: %d/100\n%s\n", r.Score, r.Summary)
	if len(r.Strengths) > 0 {
		fmt.Fprintf(w, "Strengths:\n  - %s\n", strings.Join(r.Strengths, "\n  - "))
	}
	if len(r.Improvements) > 0 {
		fmt.Fprintf(w, "Improvements:\n  - %s\n", strings.Join(r.Improvements, "\n  - "))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func noticePrinter(w io.Writer) func(notify.Notice) {
	return func(n notify.Notice) {
		fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(n.Severity)), n)
	}
}
