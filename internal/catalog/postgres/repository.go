// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/status-garden/internal/catalog"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceColumns = `id, organization_id, name, description, status, is_public, created_at, updated_at`

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var svc domain.Service
	err := row.Scan(
		&svc.ID,
		&svc.OrganizationID,
		&svc.Name,
		&svc.Description,
		&svc.Status,
		&svc.IsPublic,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// GetService retrieves a service by its ID.
func (r *Repository) GetService(ctx context.Context, id string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	svc, err := scanService(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func serviceWhere(filter catalog.ServiceFilter) (string, []interface{}) {
	where := " WHERE organization_id = $1"
	args := []interface{}{filter.OrganizationID}

	if filter.PublicOnly {
		where += " AND is_public"
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	return where, args
}

// ListServices retrieves services of an organization ordered by name.
func (r *Repository) ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, error) {
	where, args := serviceWhere(filter)
	query := `SELECT ` + serviceColumns + ` FROM services` + where + ` ORDER BY name, id`

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
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *svc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	return services, nil
}

// CountServices counts services matching the filter, ignoring limit and offset.
func (r *Repository) CountServices(ctx context.Context, filter catalog.ServiceFilter) (int, error) {
	where, args := serviceWhere(filter)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM services`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return count, nil
}

// UpdateService updates the descriptive fields of a service. Status is untouched.
func (r *Repository) UpdateService(ctx context.Context, svc *domain.Service) error {
	query := `
		UPDATE services
		SET name = $2, description = $3, is_public = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		svc.ID,
		svc.Name,
		svc.Description,
		svc.IsPublic,
	).Scan(&svc.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrServiceNotFound
		}
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

// DeleteService deletes a service by its ID.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

// ListServiceStatuses returns the current status of every service of an organization.
func (r *Repository) ListServiceStatuses(ctx context.Context, organizationID string, publicOnly bool) ([]domain.ServiceStatus, error) {
	query := `SELECT status FROM services WHERE organization_id = $1`
	if publicOnly {
		query += " AND is_public"
	}

	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list service statuses: %w", err)
	}

	statuses, err := pgx.CollectRows(rows, pgx.RowTo[domain.ServiceStatus])
	if err != nil {
		return nil, fmt.Errorf("collect service statuses: %w", err)
	}
	return statuses, nil
}

// ListStatusHistory returns the status change history for a service.
func (r *Repository) ListStatusHistory(ctx context.Context, serviceID string, limit, offset int) ([]domain.StatusChange, error) {
	query := `
		SELECT id, service_id, status, created_at
		FROM service_status_history
		WHERE service_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, serviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StatusChange, 0)
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(
			&change.ID,
			&change.ServiceID,
			&change.Status,
			&change.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		result = append(result, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return result, nil
}

// CountStatusHistory returns the number of status changes of a service.
func (r *Repository) CountStatusHistory(ctx context.Context, serviceID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM service_status_history WHERE service_id = $1`, serviceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count status history: %w", err)
	}
	return count, nil
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateServiceTx creates a new service within a transaction.
func (r *Repository) CreateServiceTx(ctx context.Context, tx pgx.Tx, svc *domain.Service) error {
	query := `
		INSERT INTO services (organization_id, name, description, status, is_public)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		svc.OrganizationID,
		svc.Name,
		svc.Description,
		svc.Status,
		svc.IsPublic,
	).Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// GetServiceForUpdateTx loads a service and locks its row until the transaction ends.
func (r *Repository) GetServiceForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1 FOR UPDATE`
	svc, err := scanService(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get service for update: %w", err)
	}
	return svc, nil
}

// UpdateServiceStatusTx writes the service status within a transaction.
func (r *Repository) UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, svc *domain.Service) error {
	query := `UPDATE services SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	err := tx.QueryRow(ctx, query, svc.ID, svc.Status).Scan(&svc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrServiceNotFound
		}
		return fmt.Errorf("update service status: %w", err)
	}
	return nil
}

// CreateStatusChangeTx appends a status history record within a transaction.
func (r *Repository) CreateStatusChangeTx(ctx context.Context, tx pgx.Tx, change *domain.StatusChange) error {
	query := `
		INSERT INTO service_status_history (service_id, status)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, query, change.ServiceID, change.Status).Scan(&change.ID, &change.CreatedAt); err != nil {
		return fmt.Errorf("create status change: %w", err)
	}
	return nil
}
