package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/hirewire/internal/records"
)

const profileColumns = `id, email, full_name, role, is_admin, company_name, headline, location,
	avatar_url, bio, array_to_string(skills, ',') AS skills, experience`

func (s *Store) FetchProfile(ctx context.Context, userID string) (*records.Profile, error) {
	clause, args, _ := where("", records.ProfileQuery{ID: userID})

	rows, err := s.db.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles"+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	row := found[0]
	if skills, ok := row["skills"].(string); ok {
		row["skills"] = strings.Split(skills, ",")
	}

	p, err := records.DecodeProfile(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
