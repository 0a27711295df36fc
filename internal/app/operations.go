package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/identity"
	"github.com/spigell/hirewire/internal/ledger"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/mutation"
	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/router"
	"github.com/spigell/hirewire/internal/utils"
)

const (
	TitleAlreadyApplied      = "Already Applied"
	TitleAssessmentRequired  = "Assessment Required"
	TitleApplicationSent     = "Application Sent"
	TitleListingPublished    = "Listing Published"
	TitleStatusUpdated       = "Status Updated"
	TitleCreditsAdded        = "Credits Added"
	TitleNotFound            = "Not Found"
	TitleInvalidInput        = "Check Your Input"
	TitleLoadFailed          = "Could Not Load"
	loadFailedMessage        = "Some data could not be loaded. Please try again."
	alreadyAppliedMessage    = "You have already applied for this position."
	assessmentRequiredNotice = "Complete the aptitude test for this position before applying."
)

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrApplicationNotFound = errors.New("application not found")
)

// Refresh reloads the active listings and the applications visible to the
// current identity. Both collections are replaced, so remote values win.
func (a *App) Refresh(ctx context.Context) error {
	id := a.holder.Current()

	listings, err := a.store.Listings(ctx, records.ListingQuery{Status: string(records.ListingActive)})
	if err != nil {
		return a.loadFailed("listings", err)
	}

	if id.IsGuest() {
		a.listings.Replace(listings)
		a.applications.Replace(nil)
		return nil
	}

	var applications []records.Application
	if canEmploy(id) {
		owned, err := a.store.Listings(ctx, records.ListingQuery{OwnerID: id.ID})
		if err != nil {
			return a.loadFailed("owned listings", err)
		}
		listings = mergeListings(owned, listings)

		ids := make([]string, 0, len(owned))
		for _, l := range owned {
			ids = append(ids, l.ID)
		}
		applications, err = a.store.Applications(ctx, records.ApplicationQuery{ListingIDs: ids})
		if err != nil {
			return a.loadFailed("applications", err)
		}
	} else {
		applications, err = a.store.Applications(ctx, records.ApplicationQuery{CandidateID: id.ID})
		if err != nil {
			return a.loadFailed("applications", err)
		}
	}

	a.listings.Replace(listings)
	a.applications.Replace(applications)

	a.logger.Debug("state refreshed",
		zap.String(logger.FieldUserID, id.ID),
		zap.Int("listings", len(listings)),
		zap.Int("applications", len(applications)),
	)
	return nil
}

func (a *App) loadFailed(what string, err error) error {
	a.logger.Warn("refresh failed", zap.String("what", what), zap.Error(err))
	a.notices.Error(TitleLoadFailed, loadFailedMessage)
	return fmt.Errorf("load %s: %w", what, err)
}

// mergeListings puts owned listings first and drops duplicates from rest.
func mergeListings(owned, rest []records.Listing) []records.Listing {
	seen := make(map[string]struct{}, len(owned))
	out := make([]records.Listing, 0, len(owned)+len(rest))
	for _, l := range owned {
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	for _, l := range rest {
		if _, ok := seen[l.ID]; !ok {
			out = append(out, l)
		}
	}
	return out
}

type ApplyInput struct {
	ListingID string
	VideoRef  string
	// TestScore is the aptitude test result, required when the listing has a test.
	TestScore *int
}

// Apply submits an application for the signed-in candidate. It returns nil
// when nothing was submitted: the gate refused, the listing needs an
// assessment first, or the candidate already applied. The reason is posted
// as a notice.
func (a *App) Apply(in ApplyInput) *mutation.Pending {
	id, ok := a.gate(router.ViewSeeker, router.IntentApply)
	if !ok {
		return nil
	}

	listing, ok := a.Listing(in.ListingID)
	if !ok {
		a.notices.Error(TitleNotFound, "This position is no longer available.")
		return nil
	}

	if listing.HasAssessment() && in.TestScore == nil {
		a.mu.Lock()
		a.view = router.ViewAssessment
		a.intent = router.IntentApply
		a.mu.Unlock()
		a.notices.Info(TitleAssessmentRequired, assessmentRequiredNotice)
		return nil
	}

	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	if _, exists := a.applications.Find(func(app records.Application) bool {
		return app.SamePair(listing.ID, id.ID)
	}); exists {
		a.notices.Info(TitleAlreadyApplied, alreadyAppliedMessage)
		return nil
	}

	candidate := id.Profile()
	application := records.Application{
		ID:          uuid.NewString(),
		ListingID:   listing.ID,
		CandidateID: id.ID,
		Status:      records.StatusApplied,
		VideoRef:    strings.TrimSpace(in.VideoRef),
		TestScore:   in.TestScore,
		AppliedAt:   a.now().UTC(),
		Candidate:   &candidate,
	}

	a.logger.Info("applying",
		zap.String(logger.FieldListingID, listing.ID),
		zap.String(logger.FieldApplicationID, application.ID),
	)

	return mutation.Submit(a.coordinator, mutation.Op[records.Application]{
		Collection: a.applications,
		Value:      application,
		Persist: func(ctx context.Context, v records.Application) (records.Application, error) {
			stored, err := a.store.CreateApplication(ctx, v)
			if err != nil {
				return v, err
			}
			if stored.Candidate == nil {
				stored.Candidate = v.Candidate
			}
			return stored, nil
		},
		Success: mutation.Message{Title: TitleApplicationSent, Message: "Your application for " + listing.Title + " was submitted."},
	})
}

type ListingInput struct {
	// ID is set when editing an existing listing.
	ID              string
	Title           string
	Company         string
	Location        string
	Compensation    string
	Description     string
	Tier            string
	AptitudeTestRef string
	Closed          bool
}

// PostListing creates or edits a listing owned by the signed-in employer.
func (a *App) PostListing(in ListingInput) *mutation.Pending {
	id, ok := a.gate(router.ViewPostListing, router.IntentPost)
	if !ok {
		return nil
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		a.notices.Error(TitleInvalidInput, "A listing needs a title.")
		return nil
	}

	listing := records.Listing{
		ID:              strings.TrimSpace(in.ID),
		OwnerID:         id.ID,
		Title:           title,
		Company:         utils.FirstNonEmpty(in.Company, id.Company),
		Location:        strings.TrimSpace(in.Location),
		Compensation:    strings.TrimSpace(in.Compensation),
		Description:     strings.TrimSpace(in.Description),
		Status:          records.ListingActive,
		Tier:            records.ParseTier(in.Tier),
		AptitudeTestRef: strings.TrimSpace(in.AptitudeTestRef),
		PostedAt:        a.now().UTC(),
	}
	listing.Premium = listing.Tier != records.TierStandard
	if in.Closed {
		listing.Status = records.ListingClosed
	}

	if listing.ID == "" {
		listing.ID = uuid.NewString()
	} else if existing, ok := a.Listing(listing.ID); ok {
		if existing.OwnerID != id.ID && !id.Admin() {
			a.notices.Error(TitleInvalidInput, "You can only edit your own listings.")
			return nil
		}
		listing.OwnerID = existing.OwnerID
		listing.PostedAt = existing.PostedAt
	}

	return mutation.Submit(a.coordinator, mutation.Op[records.Listing]{
		Collection: a.listings,
		Value:      listing,
		Persist:    a.store.UpsertListing,
		Success:    mutation.Message{Title: TitleListingPublished, Message: listing.Title + " is live."},
	})
}

// UpdateApplicationStatus moves an application through the hiring pipeline.
// Only the known statuses are accepted.
func (a *App) UpdateApplicationStatus(applicationID string, status records.ApplicationStatus) *mutation.Pending {
	if _, ok := a.gate(router.ViewEmployer, router.IntentDashboard); !ok {
		return nil
	}

	if !status.Known() {
		a.notices.Error(TitleInvalidInput, fmt.Sprintf("%q is not a valid application status.", status))
		return nil
	}

	entry, ok := a.applications.Get(applicationID)
	if !ok {
		a.notices.Error(TitleNotFound, "This application is no longer available.")
		return nil
	}

	updated := entry.Value
	updated.Status = status

	return mutation.Submit(a.coordinator, mutation.Op[records.Application]{
		Collection: a.applications,
		Value:      updated,
		Persist: func(ctx context.Context, v records.Application) (records.Application, error) {
			return v, a.store.UpdateApplicationStatus(ctx, v.ID, v.Status)
		},
		Success: mutation.Message{Title: TitleStatusUpdated, Message: "Application moved to " + string(status) + "."},
	})
}

// PurchaseCredits records a confirmed checkout in the local ledger.
func (a *App) PurchaseCredits(tier string, quantity int, amountCents int64) (ledger.Transaction, error) {
	if _, ok := a.gate(router.ViewEmployer, router.IntentPurchase); !ok {
		return ledger.Transaction{}, ErrNotAllowed
	}

	t := records.Tier(strings.ToLower(strings.TrimSpace(tier)))
	tx, err := a.ledger.Confirm(ledger.Purchase{Tier: t, Quantity: quantity, AmountCents: amountCents})
	if err != nil {
		a.notices.Error(TitleInvalidInput, "That purchase could not be recorded.")
		return ledger.Transaction{}, err
	}

	a.notices.Success(TitleCreditsAdded, fmt.Sprintf("%d %s credits added.", quantity, t))
	return tx, nil
}

func canEmploy(id identity.Identity) bool {
	return id.Role == identity.RoleEmployer || id.Admin()
}
