package backend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
)

const (
	restPath  = "/rest/v1"
	userAgent = "spigell/hirewire"

	tableProfiles     = "profiles"
	tableListings     = "jobs"
	tableApplications = "applications"
)

var ErrNotFound = errors.New("record not found")

// TokenSource yields the bearer token of the signed-in user.
type TokenSource interface {
	AccessToken() (string, error)
}

// Client talks to the record store through its PostgREST interface.
type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	URL        string

	anonKey string
	tokens  TokenSource
}

// New returns a client for the project at baseURL. Requests carry the user's
// token when tokens has one and the anon key otherwise.
func New(log *zap.Logger, baseURL, anonKey string, tokens TokenSource) *Client {
	return &Client{
		logger: logger.ForComponent(logger.OrNop(log), "backend"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
		URL:       strings.TrimRight(baseURL, "/"),
		anonKey:   anonKey,
		tokens:    tokens,
	}
}

func (c *Client) tableURL(table string) string {
	return c.URL + restPath + "/" + table
}
