// Package catalog manages the services of an organization and their status.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/bissquit/status-garden/internal/pkg/metrics"
	"github.com/bissquit/status-garden/internal/pkg/postgres"
	"github.com/bissquit/status-garden/internal/realtime"
)

// Service implements catalog business logic.
type Service struct {
	repo      Repository
	publisher realtime.Publisher
	now       func() time.Time
}

// NewService creates a new catalog service.
func NewService(repo Repository, publisher realtime.Publisher) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	Name        string
	Description string
	Status      domain.ServiceStatus
	IsPublic    bool
}

// CreateService creates a service and records its initial status in the history.
func (s *Service) CreateService(ctx context.Context, orgID string, input CreateServiceInput) (*domain.Service, error) {
	status := input.Status
	if status == "" {
		status = domain.ServiceStatusOperational
	}
	if !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	svc := &domain.Service{
		OrganizationID: orgID,
		Name:           name,
		Description:    input.Description,
		Status:         status,
		IsPublic:       input.IsPublic,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	if err := s.repo.CreateServiceTx(ctx, tx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	if err := s.repo.CreateStatusChangeTx(ctx, tx, &domain.StatusChange{ServiceID: svc.ID, Status: svc.Status}); err != nil {
		return nil, fmt.Errorf("create status change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return svc, nil
}

// GetService returns a service of the organization.
// A service of another organization is reported as not found.
func (s *Service) GetService(ctx context.Context, orgID, id string) (*domain.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc.OrganizationID != orgID {
		return nil, ErrServiceNotFound
	}
	return svc, nil
}

// ValidateServices checks that every id is a service of the organization.
func (s *Service) ValidateServices(ctx context.Context, orgID string, serviceIDs []string) error {
	for _, id := range serviceIDs {
		if _, err := s.GetService(ctx, orgID, id); err != nil {
			return fmt.Errorf("service %s: %w", id, err)
		}
	}
	return nil
}

// ListServices returns a page of services and the total count.
func (s *Service) ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, int, error) {
	services, err := s.repo.ListServices(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	total, err := s.repo.CountServices(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}
	return services, total, nil
}

// UpdateService applies a patch to the descriptive fields of a service.
func (s *Service) UpdateService(ctx context.Context, orgID, id string, patch domain.ServicePatch) (*domain.Service, error) {
	svc, err := s.GetService(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := svc.Apply(patch, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return svc, nil
}

// DeleteService deletes a service.
func (s *Service) DeleteService(ctx context.Context, orgID, id string) error {
	if _, err := s.GetService(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

// UpdateServiceStatus is the only way a service status changes.
// Setting the current status is a no-op. Otherwise the new status and a
// history record are written in one transaction and, after commit, a
// service:status:change event is published.
func (s *Service) UpdateServiceStatus(ctx context.Context, orgID, serviceID string, status domain.ServiceStatus) (*domain.Service, error) {
	if !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	svc, err := s.repo.GetServiceForUpdateTx(ctx, tx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("lock service: %w", err)
	}
	if svc.OrganizationID != orgID {
		return nil, ErrServiceNotFound
	}
	if svc.Status == status {
		return svc, nil
	}

	previous := svc.Status
	svc.Status = status
	svc.UpdatedAt = s.now()

	if err := s.repo.UpdateServiceStatusTx(ctx, tx, svc); err != nil {
		return nil, fmt.Errorf("update service status: %w", err)
	}
	if err := s.repo.CreateStatusChangeTx(ctx, tx, &domain.StatusChange{ServiceID: svc.ID, Status: status}); err != nil {
		return nil, fmt.Errorf("create status change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	metrics.ServiceStatusChanges.WithLabelValues(string(status)).Inc()
	ctxlog.FromContext(ctx).Info("service status changed",
		"service_id", svc.ID,
		"from", previous,
		"to", status,
	)
	s.publisher.Publish(ctx, orgID, realtime.EventServiceStatusChange, realtime.NewServiceStatusPayload(svc, previous))

	return svc, nil
}

// ListStatusHistory returns a page of status changes of a service, newest first.
func (s *Service) ListStatusHistory(ctx context.Context, orgID, serviceID string, limit, offset int) ([]domain.StatusChange, int, error) {
	if _, err := s.GetService(ctx, orgID, serviceID); err != nil {
		return nil, 0, err
	}

	history, err := s.repo.ListStatusHistory(ctx, serviceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list status history: %w", err)
	}
	total, err := s.repo.CountStatusHistory(ctx, serviceID)
	if err != nil {
		return nil, 0, fmt.Errorf("count status history: %w", err)
	}
	return history, total, nil
}

// OverallStatus returns the worst status over the organization's services.
func (s *Service) OverallStatus(ctx context.Context, orgID string, publicOnly bool) (domain.ServiceStatus, error) {
	statuses, err := s.repo.ListServiceStatuses(ctx, orgID, publicOnly)
	if err != nil {
		return "", fmt.Errorf("list service statuses: %w", err)
	}
	return domain.HighestSeverityStatus(statuses), nil
}
