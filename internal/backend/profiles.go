package backend

import (
	"context"

	"github.com/spigell/hirewire/internal/records"
)

// FetchProfile returns the profile of userID, or nil when there is none.
func (c *Client) FetchProfile(ctx context.Context, userID string) (*records.Profile, error) {
	q, _ := buildParams(records.ProfileQuery{ID: userID})
	q.Set("limit", "1")

	rows, err := c.getRows(ctx, tableProfiles, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	p, err := records.DecodeProfile(rows[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}
