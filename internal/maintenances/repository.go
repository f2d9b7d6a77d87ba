package maintenances

import (
	"context"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for maintenance storage.
type Repository interface {
	GetMaintenance(ctx context.Context, id string) (*domain.Maintenance, error)
	ListMaintenances(ctx context.Context, filter MaintenanceFilter) ([]domain.Maintenance, error)
	CountMaintenances(ctx context.Context, filter MaintenanceFilter) (int, error)
	DeleteMaintenance(ctx context.Context, id string) error

	ListComments(ctx context.Context, maintenanceID string) ([]domain.Comment, error)
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	CreateComment(ctx context.Context, comment *domain.Comment) error
	DeleteComment(ctx context.Context, id string) error

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateMaintenanceTx(ctx context.Context, tx pgx.Tx, m *domain.Maintenance) error
	GetMaintenanceForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Maintenance, error)
	UpdateMaintenanceTx(ctx context.Context, tx pgx.Tx, m *domain.Maintenance) error
	AddServicesTx(ctx context.Context, tx pgx.Tx, maintenanceID string, serviceIDs []string) ([]string, error)
	RemoveServiceTx(ctx context.Context, tx pgx.Tx, maintenanceID, serviceID string) error
}

// MaintenanceFilter holds filter options for listing maintenances.
type MaintenanceFilter struct {
	OrganizationID string
	Status         *domain.MaintenanceStatus
	// ActiveOnly keeps scheduled and in_progress windows.
	ActiveOnly bool
	// UpcomingAfter keeps scheduled windows starting after the given time.
	UpcomingAfter *time.Time
	StartDate     *time.Time
	EndDate       *time.Time
	Limit         int
	Offset        int
}
