package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	contentType = "application/json"
	userAgent   = "spigell/hirewire"
)

var ErrNotSignedIn = errors.New("not signed in")

// Session is an authenticated session held by the client.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Claims       Claims
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	URL        string

	anonKey   string
	jwtSecret []byte

	mu          sync.Mutex
	session     *Session
	subscribers map[int]func(*Session)
	nextID      int
}

// New returns a client for the provider at baseURL. An empty jwtSecret
// disables signature verification of access tokens.
func New(logger *zap.Logger, baseURL, anonKey, jwtSecret string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent:   userAgent,
		URL:         strings.TrimRight(baseURL, "/"),
		anonKey:     anonKey,
		jwtSecret:   []byte(jwtSecret),
		subscribers: make(map[int]func(*Session)),
	}
}

// SignUp registers a new user. A nil session with a nil error means the
// provider is waiting for email confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string, meta UserMetadata) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     meta,
	}

	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/signup", nil, body, "", &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		c.logger.Info("sign-up pending confirmation", zap.String("email", email))
		return nil, nil
	}

	return c.establish(resp)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}

	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token", q, body, "", &resp); err != nil {
		return nil, err
	}

	return c.establish(resp)
}

// ExchangeCode completes a social sign-in callback.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	q := url.Values{"grant_type": {"pkce"}}
	body := map[string]string{"auth_code": code, "code_verifier": verifier}

	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token", q, body, "", &resp); err != nil {
		return nil, err
	}

	return c.establish(resp)
}

// SignOut drops the local session and notifies subscribers even when the
// remote call fails. The remote error is returned for logging.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.session = nil
	c.mu.Unlock()

	if current == nil {
		return nil
	}

	err := c.post(ctx, "/auth/v1/logout", nil, nil, current.AccessToken, nil)
	c.publish(nil)

	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// CurrentSession returns the active session or nil.
func (c *Client) CurrentSession(context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, nil
	}
	if !c.session.ExpiresAt.IsZero() && time.Now().After(c.session.ExpiresAt) {
		c.logger.Debug("stored session expired")
		c.session = nil
		return nil, nil
	}

	s := *c.session
	return &s, nil
}

// AccessToken returns the bearer token of the active session.
func (c *Client) AccessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return "", ErrNotSignedIn
	}
	return c.session.AccessToken, nil
}

// Subscribe registers fn for every session change. A nil session means the
// user signed out. The returned function removes the subscription.
func (c *Client) Subscribe(fn func(*Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
		})
	}
}

// Subscribers reports how many subscriptions are active.
func (c *Client) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) establish(resp tokenResponse) (*Session, error) {
	claims, err := ParseToken(resp.AccessToken, c.jwtSecret)
	if err != nil {
		return nil, err
	}

	s := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Claims:       claims,
	}
	switch {
	case claims.ExpiresAt != nil:
		s.ExpiresAt = claims.ExpiresAt.Time
	case resp.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	c.logger.Debug("session established", zap.String("user_id", claims.Subject))
	published := *s
	c.publish(&published)

	out := *s
	return &out, nil
}

func (c *Client) publish(s *Session) {
	c.mu.Lock()
	subs := make([]func(*Session), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (c *Client) post(ctx context.Context, path string, q url.Values, payload any, bearer string, target any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+path, body)
	if err != nil {
		return err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	c.setHeaders(req, bearer)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerError(resp.StatusCode, data)
	}

	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request, bearer string) {
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
}
