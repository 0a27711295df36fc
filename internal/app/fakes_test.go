package app

import (
	"context"
	"errors"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/records"
)

type account struct {
	password string
	meta     auth.UserMetadata
	id       string
}

// fakeAuth publishes sessions to subscribers like the real provider client.
type fakeAuth struct {
	mu          sync.Mutex
	accounts    map[string]account
	session     *auth.Session
	subscribers map[int]func(*auth.Session)
	next        int
	signOutErr  error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{accounts: map[string]account{}, subscribers: map[int]func(*auth.Session){}}
}

func (f *fakeAuth) register(email, password, id string, meta auth.UserMetadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = account{password: password, meta: meta, id: id}
}

func (f *fakeAuth) CurrentSession(context.Context) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeAuth) Subscribe(fn func(*auth.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeAuth) publish(s *auth.Session) {
	f.mu.Lock()
	f.session = s
	subs := make([]func(*auth.Session), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (f *fakeAuth) SignUp(_ context.Context, email, password string, meta auth.UserMetadata) (*auth.Session, error) {
	f.register(email, password, "new-"+email, meta)
	return nil, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*auth.Session, error) {
	f.mu.Lock()
	acc, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok || acc.password != password {
		return nil, &auth.ProviderError{Status: 400, Message: "Invalid login credentials"}
	}

	s := &auth.Session{
		AccessToken: "token-" + acc.id,
		Claims: auth.Claims{
			Email:            email,
			Metadata:         acc.meta,
			RegisteredClaims: jwt.RegisteredClaims{Subject: acc.id},
		},
	}
	f.publish(s)
	return s, nil
}

func (f *fakeAuth) ExchangeCode(context.Context, string, string) (*auth.Session, error) {
	return nil, &auth.ProviderError{Status: 400, Message: "invalid flow state"}
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.publish(nil)
	return f.signOutErr
}

// fakeStore is an in-memory record store. When gate is set, writes block
// until it is closed.
type fakeStore struct {
	mu           sync.Mutex
	profiles     map[string]records.Profile
	listings     []records.Listing
	applications []records.Application
	created      int
	gate         chan struct{}
	writeErr     error
	listErr      error
}

func newFakeStore(listings ...records.Listing) *fakeStore {
	return &fakeStore{profiles: map[string]records.Profile{}, listings: listings}
}

func (s *fakeStore) wait() {
	if s.gate != nil {
		<-s.gate
	}
}

func (s *fakeStore) FetchProfile(_ context.Context, userID string) (*records.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) Listings(_ context.Context, q records.ListingQuery) ([]records.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []records.Listing
	for _, l := range s.listings {
		if q.Status != "" && string(l.Status) != q.Status {
			continue
		}
		if q.OwnerID != "" && l.OwnerID != q.OwnerID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *fakeStore) UpsertListing(_ context.Context, l records.Listing) (records.Listing, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return l, s.writeErr
	}
	for i := range s.listings {
		if s.listings[i].ID == l.ID {
			s.listings[i] = l
			return l, nil
		}
	}
	s.listings = append(s.listings, l)
	return l, nil
}

func (s *fakeStore) Applications(_ context.Context, q records.ApplicationQuery) ([]records.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.Application
	for _, a := range s.applications {
		if q.CandidateID != "" && a.CandidateID != q.CandidateID {
			continue
		}
		if q.ListingIDs != nil && !contains(q.ListingIDs, a.ListingID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) CreateApplication(_ context.Context, a records.Application) (records.Application, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return a, s.writeErr
	}
	s.created++
	s.applications = append(s.applications, a)
	return a, nil
}

func (s *fakeStore) UpdateApplicationStatus(_ context.Context, id string, status records.ApplicationStatus) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	for i := range s.applications {
		if s.applications[i].ID == id {
			s.applications[i].Status = status
			return nil
		}
	}
	return errors.New("not found")
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
