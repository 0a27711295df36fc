package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spigell/hirewire/internal/records"
)

const applicationSelect = "*,candidate:profiles(*)"

// Applications returns applications matching query joined with the candidate
// profile. An empty listing set matches nothing and is not sent.
func (c *Client) Applications(ctx context.Context, query records.ApplicationQuery) ([]records.Application, error) {
	q, ok := buildParams(query)
	if !ok {
		return nil, nil
	}
	q.Set("select", applicationSelect)
	q.Set("order", "created_at.desc")

	rows, err := c.getRows(ctx, tableApplications, q)
	if err != nil {
		return nil, err
	}

	return records.DecodeApplications(rows)
}

// CreateApplication inserts a and returns the created record.
func (c *Client) CreateApplication(ctx context.Context, a records.Application) (records.Application, error) {
	body, err := payload(records.ApplicationRowFrom(a), "id", "created_at")
	if err != nil {
		return records.Application{}, err
	}

	var rows []records.Row
	if err := c.send(ctx, http.MethodPost, tableApplications, nil, preferRepresentation, body, &rows); err != nil {
		return records.Application{}, err
	}
	if len(rows) == 0 {
		return records.Application{}, fmt.Errorf("create application: %w", ErrNotFound)
	}

	created, err := records.DecodeApplication(rows[0])
	if err != nil {
		return records.Application{}, fmt.Errorf("create application: %w", err)
	}
	if created.Candidate == nil {
		created.Candidate = a.Candidate
	}
	return created, nil
}

// UpdateApplicationStatus sets the status of application id.
func (c *Client) UpdateApplicationStatus(ctx context.Context, id string, status records.ApplicationStatus) error {
	q, _ := buildParams(records.ApplicationQuery{IDs: []string{id}})

	body := map[string]string{"status": string(status)}
	return c.send(ctx, http.MethodPatch, tableApplications, q, preferMinimal, body, nil)
}
