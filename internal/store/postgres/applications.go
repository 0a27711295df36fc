package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/records"
)

const applicationSelect = `SELECT a.id, a.job_id, a.candidate_id, a.status, a.video_url, a.test_score, a.created_at,
	p.id AS candidate__id, p.email AS candidate__email, p.full_name AS candidate__full_name,
	p.role AS candidate__role, p.headline AS candidate__headline, p.location AS candidate__location
	FROM applications a LEFT JOIN profiles p ON p.id = a.candidate_id`

func (s *Store) Applications(ctx context.Context, query records.ApplicationQuery) ([]records.Application, error) {
	clause, args, ok := where("a", query)
	if !ok {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, applicationSelect+clause+" ORDER BY a.created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("read applications: %w", err)
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read applications: %w", err)
	}

	s.logger.Debug("got rows", zap.String("table", "applications"), zap.Int("count", len(found)))
	return records.DecodeApplications(found)
}

// CreateApplication inserts a unless the candidate already applied to the
// listing.
func (s *Store) CreateApplication(ctx context.Context, a records.Application) (records.Application, error) {
	r := records.ApplicationRowFrom(a)

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM applications
			WHERE job_id = $1 AND candidate_id = $2
		)`, r.JobID, r.CandidateID).Scan(&exists)
	if err != nil {
		return records.Application{}, fmt.Errorf("duplicate check failed: %w", err)
	}
	if exists {
		return records.Application{}, fmt.Errorf("job %s, candidate %s: %w", r.JobID, r.CandidateID, ErrDuplicateApplication)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO applications (id, job_id, candidate_id, status, video_url, test_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		r.ID, r.JobID, r.CandidateID, r.Status, r.VideoURL, r.TestScore,
	).Scan(&r.CreatedAt)
	if err != nil {
		return records.Application{}, fmt.Errorf("insert application: %w", err)
	}

	created := r.Application()
	created.Candidate = a.Candidate
	return created, nil
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, id string, status records.ApplicationStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE applications SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	return nil
}
