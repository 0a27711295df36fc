package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/ai"
	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/identity"
	"github.com/spigell/hirewire/internal/ledger"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/mutation"
	"github.com/spigell/hirewire/internal/notify"
	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/router"
	"github.com/spigell/hirewire/internal/session"
)

// Store is the record store. Both the REST client and the PostgreSQL store
// satisfy it.
type Store interface {
	session.ProfileFetcher
	Listings(ctx context.Context, query records.ListingQuery) ([]records.Listing, error)
	UpsertListing(ctx context.Context, l records.Listing) (records.Listing, error)
	Applications(ctx context.Context, query records.ApplicationQuery) ([]records.Application, error)
	CreateApplication(ctx context.Context, a records.Application) (records.Application, error)
	UpdateApplicationStatus(ctx context.Context, id string, status records.ApplicationStatus) error
}

// Auth is the identity provider.
type Auth interface {
	session.Source
	SignUp(ctx context.Context, email, password string, meta auth.UserMetadata) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

type Deps struct {
	Logger    *zap.Logger
	Auth      Auth
	Store     Store
	Assistant ai.Assistant
	// Notices defaults to a center with notify.DefaultTTL.
	Notices *notify.Center
}

// App owns the client state and exposes the user operations. All methods
// are safe for concurrent use.
type App struct {
	logger    *zap.Logger
	auth      Auth
	store     Store
	assistant ai.Assistant

	holder      *identity.Holder
	syncer      *session.Synchronizer
	notices     *notify.Center
	coordinator *mutation.Coordinator
	ledger      *ledger.Ledger

	listings     *mutation.Collection[records.Listing]
	applications *mutation.Collection[records.Application]

	now func() time.Time

	// applyMu serialises the duplicate check with the optimistic insert.
	applyMu sync.Mutex

	mu        sync.RWMutex
	view      router.View
	intent    router.Intent
	landing   router.View
	analyzing map[string]bool
	matches   map[string]*ai.MatchAnalysis
}

func New(deps Deps) *App {
	log := logger.ForComponent(logger.OrNop(deps.Logger), "app")

	notices := deps.Notices
	if notices == nil {
		notices = notify.NewCenter(deps.Logger, notify.DefaultTTL)
	}

	assistant := deps.Assistant
	if assistant == nil {
		assistant = ai.Unavailable{}
	}

	a := &App{
		logger:       log,
		auth:         deps.Auth,
		store:        deps.Store,
		assistant:    assistant,
		holder:       identity.NewHolder(),
		notices:      notices,
		coordinator:  mutation.NewCoordinator(deps.Logger, notices),
		ledger:       ledger.New(deps.Logger),
		listings:     mutation.NewCollection("listings", records.Listing.Key, mutation.Prepend),
		applications: mutation.NewCollection("applications", records.Application.Key, mutation.Prepend),
		now:          time.Now,
		view:         router.DefaultView,
		analyzing:    make(map[string]bool),
		matches:      make(map[string]*ai.MatchAnalysis),
	}

	a.syncer = session.New(deps.Logger, a.holder, deps.Auth, deps.Store)
	a.syncer.OnIdentity = a.identityChanged
	a.syncer.OnSignedOut = a.signedOut

	return a
}

// Start restores any existing session and follows the provider's events.
func (a *App) Start(ctx context.Context) error {
	return a.syncer.Start(ctx)
}

// Stop waits for in-flight work. Nothing writes to the state afterwards.
func (a *App) Stop() {
	a.syncer.Stop()
	a.coordinator.Close()
}

// Wait blocks until pending profile fetches and mutations have settled.
func (a *App) Wait() {
	a.syncer.Wait()
	a.coordinator.Wait()
}

func (a *App) Identity() identity.Identity {
	return a.holder.Current()
}

func (a *App) View() router.View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// PendingIntent is the action interrupted by the last redirect.
func (a *App) PendingIntent() router.Intent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.intent
}

func (a *App) Notices() *notify.Center {
	return a.notices
}

func (a *App) Ledger() *ledger.Ledger {
	return a.ledger
}

func (a *App) Listings() []records.Listing {
	return a.listings.Values()
}

func (a *App) Listing(id string) (records.Listing, bool) {
	entry, ok := a.listings.Get(id)
	return entry.Value, ok
}

func (a *App) Applications() []records.Application {
	return a.applications.Values()
}

// ApplicationEntries exposes the sync state of every application.
func (a *App) ApplicationEntries() []mutation.Entry[records.Application] {
	return a.applications.Entries()
}

func (a *App) ListingEntries() []mutation.Entry[records.Listing] {
	return a.listings.Entries()
}

func (a *App) identityChanged(id identity.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// A merged profile can change the role; follow it while the user is
	// still on the landing view chosen at sign-in.
	if a.landing != "" && a.view == a.landing {
		a.view = router.Landing(id)
		a.landing = a.view
	}
	a.logger.Debug("identity updated", zap.String(logger.FieldUserID, id.ID), zap.String("role", string(id.Role)))
}

func (a *App) signedOut() {
	a.applications.Replace(nil)
	a.ledger.Reset()

	a.mu.Lock()
	a.view = router.DefaultView
	a.intent = router.IntentNone
	a.landing = ""
	a.matches = make(map[string]*ai.MatchAnalysis)
	a.mu.Unlock()

	a.logger.Debug("signed out, state reset")
}
