// Package postgres provides PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/incidents"
	pg "github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const incidentColumns = `
	i.id, i.organization_id, i.title, i.description, i.status, i.impact,
	i.created_by, i.created_at, i.updated_at, i.resolved_at,
	COALESCE((
		SELECT array_agg(s.service_id::text ORDER BY s.created_at, s.service_id)
		FROM incident_services s WHERE s.incident_id = i.id
	), '{}')
`

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.OrganizationID,
		&inc.Title,
		&inc.Description,
		&inc.Status,
		&inc.Impact,
		&inc.CreatedBy,
		&inc.CreatedAt,
		&inc.UpdatedAt,
		&inc.ResolvedAt,
		&inc.ServiceIDs,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func getIncident(ctx context.Context, q pg.Querier, id string, lock bool) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents i WHERE i.id = $1`
	if lock {
		query += ` FOR UPDATE OF i`
	}
	inc, err := scanIncident(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// GetIncident retrieves an incident with its affected service ids.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return getIncident(ctx, r.db, id, false)
}

func incidentWhere(filter incidents.IncidentFilter) (string, []interface{}) {
	where := " WHERE i.organization_id = $1"
	args := []interface{}{filter.OrganizationID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND i.status = $%d", len(args))
	}
	if filter.ActiveOnly {
		where += " AND i.status <> 'resolved'"
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where += fmt.Sprintf(" AND i.created_at >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where += fmt.Sprintf(" AND i.created_at <= $%d", len(args))
	}
	return where, args
}

// ListIncidents retrieves incidents, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]domain.Incident, error) {
	where, args := incidentWhere(filter)
	query := `SELECT ` + incidentColumns + ` FROM incidents i` + where + ` ORDER BY i.created_at DESC, i.id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, *inc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	return result, nil
}

// CountIncidents counts incidents matching the filter, ignoring limit and offset.
func (r *Repository) CountIncidents(ctx context.Context, filter incidents.IncidentFilter) (int, error) {
	where, args := incidentWhere(filter)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM incidents i`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}

// ListUpdates returns the update log of an incident, oldest first.
func (r *Repository) ListUpdates(ctx context.Context, incidentID string) ([]domain.IncidentUpdate, error) {
	query := `
		SELECT id, incident_id, status, message, created_by, created_at
		FROM incident_updates
		WHERE incident_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()

	updates := make([]domain.IncidentUpdate, 0)
	for rows.Next() {
		var u domain.IncidentUpdate
		if err := rows.Scan(&u.ID, &u.IncidentID, &u.Status, &u.Message, &u.CreatedBy, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident update: %w", err)
		}
		updates = append(updates, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident updates: %w", err)
	}

	return updates, nil
}

// DeleteIncident deletes an incident. Updates and service links cascade.
func (r *Repository) DeleteIncident(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if result.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateIncidentTx inserts an incident within a transaction.
func (r *Repository) CreateIncidentTx(ctx context.Context, tx pgx.Tx, inc *domain.Incident) error {
	query := `
		INSERT INTO incidents (organization_id, title, description, status, impact, created_by, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		inc.OrganizationID,
		inc.Title,
		inc.Description,
		inc.Status,
		inc.Impact,
		inc.CreatedBy,
		inc.ResolvedAt,
	).Scan(&inc.ID, &inc.CreatedAt, &inc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetIncidentForUpdateTx loads an incident and locks its row.
func (r *Repository) GetIncidentForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Incident, error) {
	return getIncident(ctx, tx, id, true)
}

// UpdateIncidentTx writes the mutable incident fields within a transaction.
func (r *Repository) UpdateIncidentTx(ctx context.Context, tx pgx.Tx, inc *domain.Incident) error {
	query := `
		UPDATE incidents
		SET title = $2, description = $3, status = $4, impact = $5, resolved_at = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		inc.ID,
		inc.Title,
		inc.Description,
		inc.Status,
		inc.Impact,
		inc.ResolvedAt,
	).Scan(&inc.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return incidents.ErrIncidentNotFound
		}
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// CreateUpdateTx appends an incident update within a transaction.
func (r *Repository) CreateUpdateTx(ctx context.Context, tx pgx.Tx, u *domain.IncidentUpdate) error {
	query := `
		INSERT INTO incident_updates (incident_id, status, message, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, query, u.IncidentID, u.Status, u.Message, u.CreatedBy).Scan(&u.ID, &u.CreatedAt); err != nil {
		return fmt.Errorf("create incident update: %w", err)
	}
	return nil
}

// AddServicesTx links services to an incident, skipping existing pairs.
func (r *Repository) AddServicesTx(ctx context.Context, tx pgx.Tx, incidentID string, serviceIDs []string) ([]string, error) {
	added := make([]string, 0, len(serviceIDs))
	query := `
		INSERT INTO incident_services (incident_id, service_id)
		VALUES ($1, $2)
		ON CONFLICT (incident_id, service_id) DO NOTHING
	`
	for _, serviceID := range serviceIDs {
		result, err := tx.Exec(ctx, query, incidentID, serviceID)
		if err != nil {
			return nil, fmt.Errorf("add service %s: %w", serviceID, err)
		}
		if result.RowsAffected() > 0 {
			added = append(added, serviceID)
		}
	}
	return added, nil
}

// RemoveServiceTx unlinks a service from an incident.
func (r *Repository) RemoveServiceTx(ctx context.Context, tx pgx.Tx, incidentID, serviceID string) error {
	result, err := tx.Exec(ctx, `DELETE FROM incident_services WHERE incident_id = $1 AND service_id = $2`, incidentID, serviceID)
	if err != nil {
		return fmt.Errorf("remove service: %w", err)
	}
	if result.RowsAffected() == 0 {
		return incidents.ErrServiceNotAttached
	}
	return nil
}
