package incidents

import (
	"context"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for incident storage.
type Repository interface {
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	CountIncidents(ctx context.Context, filter IncidentFilter) (int, error)
	ListUpdates(ctx context.Context, incidentID string) ([]domain.IncidentUpdate, error)
	DeleteIncident(ctx context.Context, id string) error

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	GetIncidentForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Incident, error)
	UpdateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	CreateUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.IncidentUpdate) error
	// AddServicesTx attaches services, skipping pairs that already exist,
	// and returns the ids that were newly attached.
	AddServicesTx(ctx context.Context, tx pgx.Tx, incidentID string, serviceIDs []string) ([]string, error)
	RemoveServiceTx(ctx context.Context, tx pgx.Tx, incidentID, serviceID string) error
}

// IncidentFilter holds filter options for listing incidents.
type IncidentFilter struct {
	OrganizationID string
	Status         *domain.IncidentStatus
	// ActiveOnly keeps incidents that are not resolved.
	ActiveOnly bool
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}
