package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/filtering"
	"github.com/spigell/hirewire/internal/mutation"
	"github.com/spigell/hirewire/internal/notify"
	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/router"
)

var listingL = records.Listing{
	ID:      "listing-l",
	OwnerID: "employer-e",
	Title:   "Go Engineer",
	Company: "Acme",
	Status:  records.ListingActive,
	Tier:    records.TierStandard,
}

type stubAssistant struct {
	app        *App
	sawLoading bool
	err        error
}

func (s *stubAssistant) AnalyzeMatch(_ context.Context, _ records.Profile, l records.Listing) (*ai.MatchAnalysis, error) {
	s.sawLoading = s.app.Analyzing(l.ID)
	if s.err != nil {
		return nil, s.err
	}
	return &ai.MatchAnalysis{Score: 77, Reason: "good fit"}, nil
}

func (s *stubAssistant) ReviewCV(context.Context, records.Profile, string) (*ai.CVReview, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.CVReview{Score: 70, Summary: "fine"}, nil
}

func newTestApp(t *testing.T, store *fakeStore, provider *fakeAuth, assistant ai.Assistant) *App {
	t.Helper()

	a := New(Deps{
		Logger:    zaptest.NewLogger(t),
		Auth:      provider,
		Store:     store,
		Assistant: assistant,
		Notices:   notify.NewCenter(nil, 0),
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(a.Stop)

	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return a
}

func signIn(t *testing.T, a *App, email string) {
	t.Helper()
	if err := a.SignIn(context.Background(), email, "secret"); err != nil {
		t.Fatalf("sign in %s: %v", email, err)
	}
	a.Wait()
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func lastNotice(t *testing.T, a *App) string {
	t.Helper()
	n, ok := a.Notices().Last()
	if !ok {
		t.Fatal("expected a notice")
	}
	return n.String()
}

func settle(t *testing.T, p *mutation.Pending) error {
	t.Helper()
	if p == nil {
		t.Fatal("expected a submitted mutation")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func defaultAuth() *fakeAuth {
	provider := newFakeAuth()
	provider.register("c@example.com", "secret", "candidate-c", auth.UserMetadata{Role: "seeker", FullName: "Cand"})
	provider.register("e@example.com", "secret", "employer-e", auth.UserMetadata{Role: "employer"})
	provider.register("root@example.com", "secret", "admin-a", auth.UserMetadata{Role: "seeker", IsAdmin: true})
	return provider
}

func TestApplyScenario(t *testing.T) {
	store := newFakeStore(listingL)
	a := newTestApp(t, store, defaultAuth(), nil)

	if p := a.Apply(ApplyInput{ListingID: listingL.ID}); p != nil {
		t.Fatal("guest apply must not submit")
	}
	if got := lastNotice(t, a); got != "Identity Required: Please sign up to apply for this position." {
		t.Fatalf("unexpected notice %q", got)
	}
	if len(a.Applications()) != 0 {
		t.Fatal("guest apply created an application")
	}
	if a.View() != router.ViewAuth || a.PendingIntent() != router.IntentApply {
		t.Fatalf("expected auth redirect with apply intent, got %s/%s", a.View(), a.PendingIntent())
	}

	signIn(t, a, "c@example.com")

	if err := settle(t, a.Apply(ApplyInput{ListingID: listingL.ID})); err != nil {
		t.Fatalf("apply: %v", err)
	}

	apps := a.Applications()
	if len(apps) != 1 {
		t.Fatalf("expected one application, got %d", len(apps))
	}
	got := apps[0]
	if got.Status != records.StatusApplied || got.CandidateID != "candidate-c" || got.ListingID != listingL.ID {
		t.Fatalf("unexpected application %+v", got)
	}
	if store.created != 1 {
		t.Fatalf("expected one remote insert, got %d", store.created)
	}
	if n, _ := a.Notices().Last(); n.Title != TitleApplicationSent {
		t.Fatalf("expected success notice, got %q", n.String())
	}
}

func TestApplyDuplicateGuard(t *testing.T) {
	store := newFakeStore(listingL)
	store.gate = make(chan struct{})
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "c@example.com")

	first := a.Apply(ApplyInput{ListingID: listingL.ID})
	if first == nil {
		t.Fatal("first apply was refused")
	}

	if second := a.Apply(ApplyInput{ListingID: listingL.ID}); second != nil {
		t.Fatal("second apply must not submit")
	}
	if got := lastNotice(t, a); got != TitleAlreadyApplied+": "+alreadyAppliedMessage {
		t.Fatalf("unexpected notice %q", got)
	}

	close(store.gate)
	if err := settle(t, first); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if p := a.Apply(ApplyInput{ListingID: listingL.ID}); p != nil {
		t.Fatal("apply after confirmation must not submit")
	}
	if len(a.Applications()) != 1 || store.created != 1 {
		t.Fatalf("expected exactly one application, got %d local / %d remote", len(a.Applications()), store.created)
	}
}

func TestApplyIsVisibleBeforePersist(t *testing.T) {
	store := newFakeStore(listingL)
	store.gate = make(chan struct{})
	store.writeErr = errors.New("connection reset")
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "c@example.com")

	p := a.Apply(ApplyInput{ListingID: listingL.ID})

	entries := a.ApplicationEntries()
	if len(entries) != 1 || entries[0].State != mutation.StatePending {
		t.Fatalf("expected one pending application, got %+v", entries)
	}

	close(store.gate)
	if err := settle(t, p); err == nil {
		t.Fatal("expected persistence error")
	}

	entries = a.ApplicationEntries()
	if len(entries) != 1 || entries[0].State != mutation.StateUnsynced {
		t.Fatalf("expected the application to stay as unsynced, got %+v", entries)
	}
	if n, _ := a.Notices().Last(); n.Severity != notify.SeverityError {
		t.Fatalf("expected error notice, got %q", n.String())
	}
}

func TestApplyRequiresAssessment(t *testing.T) {
	tested := listingL
	tested.ID = "listing-t"
	tested.AptitudeTestRef = "test-1"

	store := newFakeStore(tested)
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "c@example.com")

	if p := a.Apply(ApplyInput{ListingID: tested.ID}); p != nil {
		t.Fatal("apply without a score must not submit")
	}
	if a.View() != router.ViewAssessment {
		t.Fatalf("expected assessment view, got %s", a.View())
	}

	score := 81
	if err := settle(t, a.Apply(ApplyInput{ListingID: tested.ID, TestScore: &score})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if apps := a.Applications(); len(apps) != 1 || *apps[0].TestScore != 81 {
		t.Fatalf("unexpected applications %+v", apps)
	}
}

func TestSignInLanding(t *testing.T) {
	tests := []struct {
		email string
		want  router.View
	}{
		{email: "c@example.com", want: router.ViewSeeker},
		{email: "e@example.com", want: router.ViewEmployer},
		{email: "root@example.com", want: router.ViewAdmin},
	}

	for _, tc := range tests {
		t.Run(tc.email, func(t *testing.T) {
			a := newTestApp(t, newFakeStore(), defaultAuth(), nil)
			signIn(t, a, tc.email)
			if a.View() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, a.View())
			}
		})
	}
}

func TestSignInRejected(t *testing.T) {
	a := newTestApp(t, newFakeStore(), defaultAuth(), nil)

	if err := a.SignIn(context.Background(), "c@example.com", "wrong"); err == nil {
		t.Fatal("expected error")
	}
	if got := lastNotice(t, a); got != "Sign In Failed: Invalid login credentials" {
		t.Fatalf("unexpected notice %q", got)
	}
	if !a.Identity().IsGuest() || a.View() != router.DefaultView {
		t.Fatal("rejected sign-in changed state")
	}
}

func TestProfileRoleFollowsLanding(t *testing.T) {
	store := newFakeStore()
	store.profiles["candidate-c"] = records.Profile{ID: "candidate-c", Name: "Cand Idate", Role: "employer"}
	a := newTestApp(t, store, defaultAuth(), nil)

	signIn(t, a, "c@example.com")

	if a.Identity().Name != "Cand Idate" {
		t.Fatalf("profile not merged: %+v", a.Identity())
	}
	if a.View() != router.ViewEmployer {
		t.Fatalf("expected employer landing after profile merge, got %s", a.View())
	}
}

func TestGoHomeSignsOut(t *testing.T) {
	store := newFakeStore(listingL)
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "c@example.com")
	if err := settle(t, a.Apply(ApplyInput{ListingID: listingL.ID})); err != nil {
		t.Fatalf("apply: %v", err)
	}

	d := a.GoHome(context.Background())

	if d.View != router.ViewHome || a.View() != router.ViewHome {
		t.Fatalf("expected home, got %s", a.View())
	}
	if !a.Identity().IsGuest() {
		t.Fatal("expected guest after going home")
	}
	if len(a.Applications()) != 0 {
		t.Fatal("applications of the previous session kept")
	}
}

func TestNavigateHomeKeepsSession(t *testing.T) {
	a := newTestApp(t, newFakeStore(), defaultAuth(), nil)
	signIn(t, a, "e@example.com")

	a.NavigateHome()

	if a.Identity().IsGuest() {
		t.Fatal("navigate home signed out")
	}
	if a.View() != router.ViewHome {
		t.Fatalf("expected home, got %s", a.View())
	}
}

func TestUpdateApplicationStatus(t *testing.T) {
	store := newFakeStore(listingL)
	store.applications = []records.Application{{ID: "app-1", ListingID: listingL.ID, CandidateID: "candidate-x", Status: records.StatusApplied}}
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "e@example.com")

	if p := a.UpdateApplicationStatus("app-1", "ghosted"); p != nil {
		t.Fatal("unknown status must be refused")
	}

	if err := settle(t, a.UpdateApplicationStatus("app-1", records.StatusInterview)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := a.Applications()[0].Status; got != records.StatusInterview {
		t.Fatalf("local status %s", got)
	}
	if got := store.applications[0].Status; got != records.StatusInterview {
		t.Fatalf("remote status %s", got)
	}
}

func TestSeekerCannotManageApplications(t *testing.T) {
	a := newTestApp(t, newFakeStore(listingL), defaultAuth(), nil)
	signIn(t, a, "c@example.com")

	if p := a.UpdateApplicationStatus("app-1", records.StatusHired); p != nil {
		t.Fatal("seeker must not update statuses")
	}
	if n, _ := a.Notices().Last(); n.Title != router.TitleAccessRestricted {
		t.Fatalf("unexpected notice %q", n.String())
	}
	if a.View() != router.ViewSeeker {
		t.Fatalf("expected redirect to seeker landing, got %s", a.View())
	}
}

func TestPostListing(t *testing.T) {
	store := newFakeStore(listingL)
	store.gate = make(chan struct{})
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "e@example.com")

	p := a.PostListing(ListingInput{Title: " Staff Engineer ", Company: "Acme", Tier: "premium"})

	first := a.ListingEntries()[0]
	if first.Value.Title != "Staff Engineer" || first.State != mutation.StatePending {
		t.Fatalf("expected the new listing first and pending, got %+v", first)
	}
	if !first.Value.Premium || first.Value.OwnerID != "employer-e" {
		t.Fatalf("unexpected listing %+v", first.Value)
	}

	close(store.gate)
	if err := settle(t, p); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(store.listings) != 2 {
		t.Fatalf("expected listing stored, got %d", len(store.listings))
	}
}

func TestPurchaseCredits(t *testing.T) {
	a := newTestApp(t, newFakeStore(), defaultAuth(), nil)

	if _, err := a.PurchaseCredits("premium", 3, 900); err == nil {
		t.Fatal("guest purchase must fail")
	}

	signIn(t, a, "e@example.com")
	for i := 0; i < 2; i++ {
		if _, err := a.PurchaseCredits("premium", 3, 900); err != nil {
			t.Fatalf("purchase: %v", err)
		}
	}

	if got := a.Ledger().Balance(records.TierPremium); got != 6 {
		t.Fatalf("expected 6 credits, got %d", got)
	}
	if got := lastNotice(t, a); got != "Credits Added: 3 premium credits added." {
		t.Fatalf("unexpected notice %q", got)
	}
	if _, err := a.PurchaseCredits("gold", 1, 100); err == nil {
		t.Fatal("unknown tier accepted")
	}
}

func TestAnalyzeMatchClearsLoadingFlag(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "failure", err: errors.New("quota exceeded")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assistant := &stubAssistant{err: tc.err}
			a := newTestApp(t, newFakeStore(listingL), defaultAuth(), assistant)
			assistant.app = a
			signIn(t, a, "c@example.com")

			analysis, err := a.AnalyzeMatch(context.Background(), listingL.ID)

			if !assistant.sawLoading {
				t.Fatal("loading flag was not set during the call")
			}
			if a.Analyzing(listingL.ID) {
				t.Fatal("loading flag left set")
			}
			if tc.err != nil {
				if err == nil {
					t.Fatal("expected error")
				}
				if n, _ := a.Notices().Last(); n.Title != "Analysis Failed" {
					t.Fatalf("unexpected notice %q", n.String())
				}
				return
			}
			if err != nil || analysis.Score != 77 {
				t.Fatalf("unexpected result %+v, %v", analysis, err)
			}
			if m, ok := a.Match(listingL.ID); !ok || m.Score != 77 {
				t.Fatal("analysis not kept")
			}
		})
	}
}

func TestRefreshFailureNotifies(t *testing.T) {
	store := newFakeStore()
	a := newTestApp(t, store, defaultAuth(), nil)
	store.listErr = errors.New("timeout")

	if err := a.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := a.Notices().Last(); n.Title != TitleLoadFailed {
		t.Fatalf("unexpected notice %q", n.String())
	}
}

func TestBrowseListingsExcludesApplied(t *testing.T) {
	other := records.Listing{ID: "listing-2", Title: "Rust Engineer", Status: records.ListingActive}
	store := newFakeStore(listingL, other)
	a := newTestApp(t, store, defaultAuth(), nil)
	signIn(t, a, "c@example.com")
	if err := settle(t, a.Apply(ApplyInput{ListingID: listingL.ID})); err != nil {
		t.Fatalf("apply: %v", err)
	}

	result, err := a.BrowseListings(context.Background(), filtering.Config{})
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(result.Listings) != 1 || result.Listings[0].ID != other.ID {
		t.Fatalf("unexpected listings %+v", result.Listings)
	}
}

func TestLedgerResetOnSignOut(t *testing.T) {
	provider := defaultAuth()
	provider.register("e2@example.com", "secret", "employer-e2", auth.UserMetadata{Role: "employer"})
	a := newTestApp(t, newFakeStore(), provider, nil)

	signIn(t, a, "e@example.com")
	if _, err := a.PurchaseCredits("premium", 5, 1500); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := a.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	signIn(t, a, "e2@example.com")
	if got := a.Ledger().Balance(records.TierPremium); got != 0 {
		t.Fatalf("previous employer's credits visible: %d", got)
	}
	if got := len(a.Ledger().History()); got != 0 {
		t.Fatalf("previous employer's history visible: %d entries", got)
	}
}
