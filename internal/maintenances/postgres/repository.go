// Package postgres provides PostgreSQL implementation of the maintenances repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/maintenances"
	pg "github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maintenanceColumns = `
	m.id, m.organization_id, m.title, m.description, m.status, m.created_by,
	m.scheduled_start_time, m.scheduled_end_time, m.actual_start_time, m.actual_end_time,
	m.created_at, m.updated_at,
	COALESCE((
		SELECT array_agg(s.service_id::text ORDER BY s.created_at, s.service_id)
		FROM maintenance_services s WHERE s.maintenance_id = m.id
	), '{}')
`

// Repository implements maintenances.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanMaintenance(row pgx.Row) (*domain.Maintenance, error) {
	var m domain.Maintenance
	err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.Title,
		&m.Description,
		&m.Status,
		&m.CreatedBy,
		&m.ScheduledStartTime,
		&m.ScheduledEndTime,
		&m.ActualStartTime,
		&m.ActualEndTime,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.ServiceIDs,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func getMaintenance(ctx context.Context, q pg.Querier, id string, lock bool) (*domain.Maintenance, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenances m WHERE m.id = $1`
	if lock {
		query += ` FOR UPDATE OF m`
	}
	m, err := scanMaintenance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, maintenances.ErrMaintenanceNotFound
		}
		return nil, fmt.Errorf("get maintenance: %w", err)
	}
	return m, nil
}

// GetMaintenance retrieves a maintenance with its service ids.
func (r *Repository) GetMaintenance(ctx context.Context, id string) (*domain.Maintenance, error) {
	return getMaintenance(ctx, r.db, id, false)
}

func maintenanceWhere(filter maintenances.MaintenanceFilter) (string, []interface{}) {
	where := " WHERE m.organization_id = $1"
	args := []interface{}{filter.OrganizationID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND m.status = $%d", len(args))
	}
	if filter.ActiveOnly {
		where += " AND m.status IN ('scheduled', 'in_progress')"
	}
	if filter.UpcomingAfter != nil {
		args = append(args, *filter.UpcomingAfter)
		where += fmt.Sprintf(" AND m.status = 'scheduled' AND m.scheduled_start_time > $%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where += fmt.Sprintf(" AND m.scheduled_end_time >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where += fmt.Sprintf(" AND m.scheduled_start_time <= $%d", len(args))
	}
	return where, args
}

// ListMaintenances retrieves maintenances ordered by scheduled start.
func (r *Repository) ListMaintenances(ctx context.Context, filter maintenances.MaintenanceFilter) ([]domain.Maintenance, error) {
	where, args := maintenanceWhere(filter)
	query := `SELECT ` + maintenanceColumns + ` FROM maintenances m` + where + ` ORDER BY m.scheduled_start_time, m.id`

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
		return nil, fmt.Errorf("list maintenances: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Maintenance, 0)
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan maintenance: %w", err)
		}
		result = append(result, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate maintenances: %w", err)
	}

	return result, nil
}

// CountMaintenances counts maintenances matching the filter.
func (r *Repository) CountMaintenances(ctx context.Context, filter maintenances.MaintenanceFilter) (int, error) {
	where, args := maintenanceWhere(filter)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM maintenances m`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count maintenances: %w", err)
	}
	return count, nil
}

// DeleteMaintenance deletes a maintenance. Comments and service links cascade.
func (r *Repository) DeleteMaintenance(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM maintenances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete maintenance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return maintenances.ErrMaintenanceNotFound
	}
	return nil
}

// ListComments returns maintenance comments, oldest first.
func (r *Repository) ListComments(ctx context.Context, maintenanceID string) ([]domain.Comment, error) {
	query := `
		SELECT id, content, user_id, maintenance_id, created_at, updated_at
		FROM comments
		WHERE maintenance_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, maintenanceID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Comment])
	if err != nil {
		return nil, fmt.Errorf("collect comments: %w", err)
	}
	return comments, nil
}

// GetComment retrieves a comment by id.
func (r *Repository) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	query := `
		SELECT id, content, user_id, maintenance_id, created_at, updated_at
		FROM comments
		WHERE id = $1
	`
	var c domain.Comment
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Content, &c.UserID, &c.MaintenanceID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, maintenances.ErrCommentNotFound
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

// CreateComment inserts a comment.
func (r *Repository) CreateComment(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO comments (content, user_id, maintenance_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query, c.Content, c.UserID, c.MaintenanceID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if pg.IsForeignKeyViolation(err) {
			return maintenances.ErrMaintenanceNotFound
		}
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// DeleteComment deletes a comment.
func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return maintenances.ErrCommentNotFound
	}
	return nil
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateMaintenanceTx inserts a maintenance within a transaction.
func (r *Repository) CreateMaintenanceTx(ctx context.Context, tx pgx.Tx, m *domain.Maintenance) error {
	query := `
		INSERT INTO maintenances (organization_id, title, description, status, created_by,
			scheduled_start_time, scheduled_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		m.OrganizationID,
		m.Title,
		m.Description,
		m.Status,
		m.CreatedBy,
		m.ScheduledStartTime,
		m.ScheduledEndTime,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create maintenance: %w", err)
	}
	return nil
}

// GetMaintenanceForUpdateTx loads a maintenance and locks its row.
func (r *Repository) GetMaintenanceForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Maintenance, error) {
	return getMaintenance(ctx, tx, id, true)
}

// UpdateMaintenanceTx writes the mutable maintenance fields within a transaction.
func (r *Repository) UpdateMaintenanceTx(ctx context.Context, tx pgx.Tx, m *domain.Maintenance) error {
	query := `
		UPDATE maintenances
		SET title = $2, description = $3, status = $4,
			scheduled_start_time = $5, scheduled_end_time = $6,
			actual_start_time = $7, actual_end_time = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		m.ID,
		m.Title,
		m.Description,
		m.Status,
		m.ScheduledStartTime,
		m.ScheduledEndTime,
		m.ActualStartTime,
		m.ActualEndTime,
	).Scan(&m.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return maintenances.ErrMaintenanceNotFound
		}
		return fmt.Errorf("update maintenance: %w", err)
	}
	return nil
}

// AddServicesTx links services to a maintenance, skipping existing pairs.
func (r *Repository) AddServicesTx(ctx context.Context, tx pgx.Tx, maintenanceID string, serviceIDs []string) ([]string, error) {
	added := make([]string, 0, len(serviceIDs))
	query := `
		INSERT INTO maintenance_services (maintenance_id, service_id)
		VALUES ($1, $2)
		ON CONFLICT (maintenance_id, service_id) DO NOTHING
	`
	for _, serviceID := range serviceIDs {
		result, err := tx.Exec(ctx, query, maintenanceID, serviceID)
		if err != nil {
			return nil, fmt.Errorf("add service %s: %w", serviceID, err)
		}
		if result.RowsAffected() > 0 {
			added = append(added, serviceID)
		}
	}
	return added, nil
}

// RemoveServiceTx unlinks a service from a maintenance.
func (r *Repository) RemoveServiceTx(ctx context.Context, tx pgx.Tx, maintenanceID, serviceID string) error {
	result, err := tx.Exec(ctx, `DELETE FROM maintenance_services WHERE maintenance_id = $1 AND service_id = $2`, maintenanceID, serviceID)
	if err != nil {
		return fmt.Errorf("remove service: %w", err)
	}
	if result.RowsAffected() == 0 {
		return maintenances.ErrServiceNotAttached
	}
	return nil
}
