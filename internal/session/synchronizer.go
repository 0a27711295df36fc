package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/identity"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/records"
)

// Source is the identity provider as seen by the synchronizer.
type Source interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
	Subscribe(fn func(*auth.Session)) func()
}

// ProfileFetcher reads the deep profile of a user. A nil profile with a nil
// error means the user has no profile row yet.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (*records.Profile, error)
}

// Synchronizer keeps the Holder in line with the provider's session events.
type Synchronizer struct {
	logger   *zap.Logger
	holder   *identity.Holder
	source   Source
	profiles ProfileFetcher

	// OnIdentity fires after every provisional identity and every merged profile.
	OnIdentity func(identity.Identity)
	// OnSignedOut fires after the holder has been reset to the guest.
	OnSignedOut func()

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	startErr  error

	mu          sync.Mutex
	unsubscribe func()
	stopped     bool
	inflight    sync.WaitGroup
}

func New(log *zap.Logger, holder *identity.Holder, source Source, profiles ProfileFetcher) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Synchronizer{
		logger:   logger.ForComponent(logger.OrNop(log), "session"),
		holder:   holder,
		source:   source,
		profiles: profiles,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start handles the current session and subscribes to further changes.
// Only the first call does anything; later calls return its result.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		current, err := s.source.CurrentSession(ctx)
		if err != nil {
			s.startErr = fmt.Errorf("read current session: %w", err)
			return
		}

		s.Handle(current)

		unsubscribe := s.source.Subscribe(s.Handle)

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			unsubscribe()
			return
		}
		s.unsubscribe = unsubscribe
		s.mu.Unlock()

		s.logger.Debug("subscribed to session events")
	})

	return s.startErr
}

// Handle applies one session event. A nil session is a sign-out.
func (s *Synchronizer) Handle(current *auth.Session) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	if current == nil {
		s.mu.Unlock()
		s.holder.Reset()
		s.logger.Info("signed out, identity reset to guest")
		if s.OnSignedOut != nil {
			s.OnSignedOut()
		}
		return
	}

	provisional, gen := s.holder.Renew(identity.FromClaims(current.Claims))
	s.inflight.Add(1)
	s.mu.Unlock()

	s.logger.Info("identity set from session",
		zap.String(logger.FieldUserID, provisional.ID),
		zap.String("role", string(provisional.Role)),
	)
	if s.OnIdentity != nil {
		s.OnIdentity(provisional)
	}

	go s.fetchProfile(gen, provisional.ID)
}

func (s *Synchronizer) fetchProfile(gen uint64, userID string) {
	defer s.inflight.Done()

	log := s.logger.With(zap.String(logger.FieldUserID, userID))

	profile, err := s.profiles.FetchProfile(s.ctx, userID)
	switch {
	case errors.Is(err, context.Canceled):
		log.Debug("profile fetch cancelled")
		return
	case err != nil:
		log.Warn("profile fetch failed, keeping provisional identity", zap.Error(err))
		return
	case profile == nil:
		log.Debug("no profile record, keeping provisional identity")
		return
	}

	merged, ok := s.holder.MergeProfile(gen, *profile)
	if !ok {
		log.Debug("dropped profile of a previous session")
		return
	}

	log.Debug("profile merged", zap.String("name", merged.Name))
	if s.OnIdentity != nil {
		s.OnIdentity(merged)
	}
}

// Wait blocks until in-flight profile fetches finish.
func (s *Synchronizer) Wait() {
	s.inflight.Wait()
}

// Stop releases the subscription, cancels profile fetches and waits for them.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.cancel()
	s.inflight.Wait()
}
