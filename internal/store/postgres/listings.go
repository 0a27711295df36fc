package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/records"
)

const listingColumns = `id, employer_id, title, company_name, location, salary, description,
	status, visibility_tier, is_premium, created_at, aptitude_test_id`

func (s *Store) Listings(ctx context.Context, query records.ListingQuery) ([]records.Listing, error) {
	clause, args, ok := where("", query)
	if !ok {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+listingColumns+" FROM jobs"+clause+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}

	s.logger.Debug("got rows", zap.String("table", "jobs"), zap.Int("count", len(found)))
	return records.DecodeListings(found)
}

func (s *Store) UpsertListing(ctx context.Context, l records.Listing) (records.Listing, error) {
	r := records.ListingRowFrom(l)

	rows, err := s.db.QueryContext(ctx, `
		INSERT INTO jobs (id, employer_id, title, company_name, location, salary, description,
			status, visibility_tier, is_premium, aptitude_test_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			company_name = EXCLUDED.company_name,
			location = EXCLUDED.location,
			salary = EXCLUDED.salary,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			visibility_tier = EXCLUDED.visibility_tier,
			is_premium = EXCLUDED.is_premium,
			aptitude_test_id = EXCLUDED.aptitude_test_id
		RETURNING `+listingColumns,
		r.ID, r.EmployerID, r.Title, r.CompanyName, r.Location, r.Salary, r.Description,
		r.Status, r.VisibilityTier, r.IsPremium, r.AptitudeTestID,
	)
	if err != nil {
		return records.Listing{}, fmt.Errorf("upsert job: %w", err)
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return records.Listing{}, fmt.Errorf("upsert job: %w", err)
	}
	if len(found) == 0 {
		return l, nil
	}

	return records.DecodeListing(found[0])
}
