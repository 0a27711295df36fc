package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spigell/hirewire/internal/records"
)

// Listings returns listings matching query, newest first.
func (c *Client) Listings(ctx context.Context, query records.ListingQuery) ([]records.Listing, error) {
	q, ok := buildParams(query)
	if !ok {
		return nil, nil
	}
	q.Set("order", "created_at.desc")

	rows, err := c.getRows(ctx, tableListings, q)
	if err != nil {
		return nil, err
	}

	return records.DecodeListings(rows)
}

// UpsertListing inserts or updates a listing keyed by its ID and returns the
// stored version.
func (c *Client) UpsertListing(ctx context.Context, l records.Listing) (records.Listing, error) {
	body, err := payload(records.ListingRowFrom(l), "created_at")
	if err != nil {
		return records.Listing{}, err
	}

	var rows []records.Row
	if err := c.send(ctx, http.MethodPost, tableListings, nil, preferMerge, body, &rows); err != nil {
		return records.Listing{}, err
	}
	if len(rows) == 0 {
		return l, nil
	}

	stored, err := records.DecodeListing(rows[0])
	if err != nil {
		return records.Listing{}, fmt.Errorf("upsert listing: %w", err)
	}
	return stored, nil
}
