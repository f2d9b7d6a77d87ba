package catalog

import (
	"context"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for catalog data operations.
type Repository interface {
	GetService(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error)
	CountServices(ctx context.Context, filter ServiceFilter) (int, error)
	UpdateService(ctx context.Context, service *domain.Service) error
	DeleteService(ctx context.Context, id string) error
	ListServiceStatuses(ctx context.Context, organizationID string, publicOnly bool) ([]domain.ServiceStatus, error)

	ListStatusHistory(ctx context.Context, serviceID string, limit, offset int) ([]domain.StatusChange, error)
	CountStatusHistory(ctx context.Context, serviceID string) (int, error)

	// Transaction methods
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateServiceTx(ctx context.Context, tx pgx.Tx, service *domain.Service) error
	GetServiceForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Service, error)
	UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, service *domain.Service) error
	CreateStatusChangeTx(ctx context.Context, tx pgx.Tx, change *domain.StatusChange) error
}

// ServiceFilter represents filter criteria for listing services.
type ServiceFilter struct {
	OrganizationID string
	PublicOnly     bool
	Status         *domain.ServiceStatus
	Limit          int
	Offset         int
}
