// Package maintenances manages planned maintenance windows and their comments.
package maintenances

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
	"github.com/jackc/pgx/v5"
)

// ServiceValidator checks that services belong to an organization.
type ServiceValidator interface {
	ValidateServices(ctx context.Context, orgID string, serviceIDs []string) error
}

// Service implements maintenance business logic.
type Service struct {
	repo      Repository
	services  ServiceValidator
	publisher realtime.Publisher
	now       func() time.Time
}

// NewService creates a new maintenance service.
func NewService(repo Repository, services ServiceValidator, publisher realtime.Publisher) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		services:  services,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateMaintenanceInput holds data for scheduling a maintenance.
type CreateMaintenanceInput struct {
	Title              string
	Description        string
	ScheduledStartTime time.Time
	ScheduledEndTime   time.Time
	ServiceIDs         []string
}

// UpdateStatusInput holds a target status and optional actual times.
type UpdateStatusInput struct {
	Status          domain.MaintenanceStatus
	ActualStartTime *time.Time
	ActualEndTime   *time.Time
}

// CreateMaintenance schedules a maintenance window and publishes maintenance:create.
func (s *Service) CreateMaintenance(ctx context.Context, orgID, createdBy string, input CreateMaintenanceInput) (*domain.Maintenance, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	m, err := domain.NewMaintenance(orgID, title, input.Description, input.ScheduledStartTime, input.ScheduledEndTime, createdBy, s.now())
	if err != nil {
		return nil, err
	}

	serviceIDs := dedupe(input.ServiceIDs)
	if err := s.services.ValidateServices(ctx, orgID, serviceIDs); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	if err := s.repo.CreateMaintenanceTx(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("create maintenance: %w", err)
	}

	added, err := s.repo.AddServicesTx(ctx, tx, m.ID, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("attach services: %w", err)
	}
	m.ServiceIDs = added

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	ctxlog.FromContext(ctx).Info("maintenance scheduled",
		"maintenance_id", m.ID,
		"start", m.ScheduledStartTime,
		"end", m.ScheduledEndTime,
	)
	s.publisher.Publish(ctx, orgID, realtime.EventMaintenanceCreate, realtime.NewMaintenancePayload(m))

	return m, nil
}

// GetMaintenance returns a maintenance of the organization.
func (s *Service) GetMaintenance(ctx context.Context, orgID, id string) (*domain.Maintenance, error) {
	m, err := s.repo.GetMaintenance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get maintenance: %w", err)
	}
	if m.OrganizationID != orgID {
		return nil, ErrMaintenanceNotFound
	}
	return m, nil
}

// ListMaintenances returns a page of maintenances and the total count.
func (s *Service) ListMaintenances(ctx context.Context, filter MaintenanceFilter) ([]domain.Maintenance, int, error) {
	list, err := s.repo.ListMaintenances(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list maintenances: %w", err)
	}
	total, err := s.repo.CountMaintenances(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count maintenances: %w", err)
	}
	return list, total, nil
}

// UpdateMaintenance applies a patch and publishes maintenance:update.
func (s *Service) UpdateMaintenance(ctx context.Context, orgID, id string, patch domain.MaintenancePatch) (*domain.Maintenance, error) {
	return s.mutate(ctx, orgID, id, realtime.EventMaintenanceUpdate, func(_ pgx.Tx, m *domain.Maintenance) error {
		return m.Apply(patch, s.now())
	})
}

// UpdateStatus moves the maintenance through its lifecycle. The transition
// and the actual times are validated before anything is written.
func (s *Service) UpdateStatus(ctx context.Context, orgID, id string, input UpdateStatusInput) (*domain.Maintenance, error) {
	if !input.Status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(input.Status)}
	}

	var previous domain.MaintenanceStatus
	m, err := s.mutate(ctx, orgID, id, realtime.EventMaintenanceStatusChange, func(_ pgx.Tx, m *domain.Maintenance) error {
		previous = m.Status
		return m.UpdateStatus(input.Status, s.now(), domain.MaintenanceTimes{
			ActualStart: input.ActualStartTime,
			ActualEnd:   input.ActualEndTime,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues("maintenance", string(m.Status)).Inc()
	ctxlog.FromContext(ctx).Info("maintenance status changed",
		"maintenance_id", m.ID,
		"from", previous,
		"to", m.Status,
	)
	return m, nil
}

// AddServices attaches services to the maintenance and publishes maintenance:update.
func (s *Service) AddServices(ctx context.Context, orgID, id string, serviceIDs []string) (*domain.Maintenance, error) {
	serviceIDs = dedupe(serviceIDs)
	if len(serviceIDs) == 0 {
		return nil, &domain.ValidationError{Field: "service_ids", Reason: "must not be empty"}
	}
	if err := s.services.ValidateServices(ctx, orgID, serviceIDs); err != nil {
		return nil, err
	}

	return s.mutate(ctx, orgID, id, realtime.EventMaintenanceUpdate, func(tx pgx.Tx, m *domain.Maintenance) error {
		added, err := s.repo.AddServicesTx(ctx, tx, m.ID, serviceIDs)
		if err != nil {
			return fmt.Errorf("attach services: %w", err)
		}
		m.ServiceIDs = append(m.ServiceIDs, added...)
		return nil
	})
}

// RemoveService detaches a service and publishes maintenance:update.
func (s *Service) RemoveService(ctx context.Context, orgID, id, serviceID string) (*domain.Maintenance, error) {
	return s.mutate(ctx, orgID, id, realtime.EventMaintenanceUpdate, func(tx pgx.Tx, m *domain.Maintenance) error {
		if err := s.repo.RemoveServiceTx(ctx, tx, m.ID, serviceID); err != nil {
			return fmt.Errorf("detach service: %w", err)
		}
		m.ServiceIDs = without(m.ServiceIDs, serviceID)
		return nil
	})
}

// mutate locks the maintenance, applies fn, writes the row, commits and
// publishes event. Nothing is published when fn or the write fails.
func (s *Service) mutate(ctx context.Context, orgID, id string, event realtime.EventType, fn func(pgx.Tx, *domain.Maintenance) error) (*domain.Maintenance, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	m, err := s.repo.GetMaintenanceForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock maintenance: %w", err)
	}
	if m.OrganizationID != orgID {
		return nil, ErrMaintenanceNotFound
	}

	if err := fn(tx, m); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateMaintenanceTx(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("update maintenance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.publisher.Publish(ctx, orgID, event, realtime.NewMaintenancePayload(m))
	return m, nil
}

// DeleteMaintenance deletes a maintenance with its comments.
func (s *Service) DeleteMaintenance(ctx context.Context, orgID, id string) error {
	if _, err := s.GetMaintenance(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteMaintenance(ctx, id); err != nil {
		return fmt.Errorf("delete maintenance: %w", err)
	}
	return nil
}

// ListComments returns the comments of a maintenance, oldest first.
func (s *Service) ListComments(ctx context.Context, orgID, maintenanceID string) ([]domain.Comment, error) {
	if _, err := s.GetMaintenance(ctx, orgID, maintenanceID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, maintenanceID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// CreateComment stores a comment and publishes comment:create carrying the
// maintenance title.
func (s *Service) CreateComment(ctx context.Context, orgID, maintenanceID, userID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &domain.ValidationError{Field: "content", Reason: "must not be empty"}
	}

	m, err := s.GetMaintenance(ctx, orgID, maintenanceID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		Content:       content,
		UserID:        userID,
		MaintenanceID: m.ID,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.publisher.Publish(ctx, orgID, realtime.EventCommentCreate, realtime.NewMaintenanceCommentPayload(comment, m))
	return comment, nil
}

// DeleteComment deletes a comment written by userID.
func (s *Service) DeleteComment(ctx context.Context, orgID, maintenanceID, commentID, userID string) error {
	if _, err := s.GetMaintenance(ctx, orgID, maintenanceID); err != nil {
		return err
	}

	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("get comment: %w", err)
	}
	if comment.MaintenanceID != maintenanceID {
		return ErrCommentNotFound
	}
	if comment.UserID != userID {
		return ErrNotCommentAuthor
	}

	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func without(ids []string, id string) []string {
	result := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			result = append(result, v)
		}
	}
	return result
}
