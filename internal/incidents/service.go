// Package incidents tracks disruptions, their update log and the services they affect.
package incidents

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

// ServiceStatusUpdater is the part of the catalog used to validate affected
// services and drive their status.
type ServiceStatusUpdater interface {
	ValidateServices(ctx context.Context, orgID string, serviceIDs []string) error
	UpdateServiceStatus(ctx context.Context, orgID, serviceID string, status domain.ServiceStatus) (*domain.Service, error)
}

// Service implements incident business logic.
type Service struct {
	repo      Repository
	services  ServiceStatusUpdater
	publisher realtime.Publisher
	now       func() time.Time
}

// NewService creates a new incident service.
func NewService(repo Repository, services ServiceStatusUpdater, publisher realtime.Publisher) *Service {
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

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title       string
	Description string
	Impact      domain.ServiceStatus
	Status      domain.IncidentStatus
	ServiceIDs  []string
	Message     string
}

// AddUpdateInput holds data for appending to the incident log.
// A nil Status, or the current one, records a message without a transition.
type AddUpdateInput struct {
	Status  *domain.IncidentStatus
	Message string
}

// IncidentDetail is an incident together with its update log.
type IncidentDetail struct {
	*domain.Incident
	Updates []domain.IncidentUpdate `json:"updates"`
}

// CreateIncident stores a new incident with its affected services and
// initial log entry, publishes incident:create and then drives every
// affected service to the incident impact.
func (s *Service) CreateIncident(ctx context.Context, orgID, createdBy string, input CreateIncidentInput) (*domain.Incident, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if input.Impact != "" && !input.Impact.IsValid() {
		return nil, &domain.ValidationError{Field: "impact", Reason: "unknown status " + string(input.Impact)}
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(input.Status)}
	}

	serviceIDs := dedupe(input.ServiceIDs)
	if err := s.services.ValidateServices(ctx, orgID, serviceIDs); err != nil {
		return nil, err
	}

	now := s.now()
	incident := domain.NewIncident(orgID, title, input.Description, input.Impact, createdBy, now)
	if input.Status != "" && input.Status != incident.Status {
		if err := incident.UpdateStatus(input.Status, now); err != nil {
			return nil, err
		}
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	if err := s.repo.CreateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	added, err := s.repo.AddServicesTx(ctx, tx, incident.ID, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("attach services: %w", err)
	}
	incident.ServiceIDs = added

	update := &domain.IncidentUpdate{
		IncidentID: incident.ID,
		Status:     incident.Status,
		Message:    input.Message,
		CreatedBy:  createdBy,
	}
	if err := s.repo.CreateUpdateTx(ctx, tx, update); err != nil {
		return nil, fmt.Errorf("create incident update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	ctxlog.FromContext(ctx).Info("incident created", "incident_id", incident.ID, "impact", incident.Impact)
	s.publisher.Publish(ctx, orgID, realtime.EventIncidentCreate, realtime.NewIncidentPayload(incident, input.Message))

	if !incident.IsResolved() {
		s.driveServices(ctx, orgID, incident.ServiceIDs, incident.Impact)
	}

	return incident, nil
}

// GetIncident returns an incident of the organization with its update log.
func (s *Service) GetIncident(ctx context.Context, orgID, id string) (*IncidentDetail, error) {
	incident, err := s.getIncident(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	updates, err := s.repo.ListUpdates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	return &IncidentDetail{Incident: incident, Updates: updates}, nil
}

func (s *Service) getIncident(ctx context.Context, orgID, id string) (*domain.Incident, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if incident.OrganizationID != orgID {
		return nil, ErrIncidentNotFound
	}
	return incident, nil
}

// ListIncidents returns a page of incidents and the total count.
func (s *Service) ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, int, error) {
	incidents, err := s.repo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}
	total, err := s.repo.CountIncidents(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}
	return incidents, total, nil
}

// ListUpdates returns the update log of an incident, oldest first.
func (s *Service) ListUpdates(ctx context.Context, orgID, id string) ([]domain.IncidentUpdate, error) {
	if _, err := s.getIncident(ctx, orgID, id); err != nil {
		return nil, err
	}
	updates, err := s.repo.ListUpdates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	return updates, nil
}

// AddUpdate appends to the incident log and optionally moves the incident
// to a new status. The transition is checked before anything is written.
// Resolving drives every affected service back to operational after the
// incident:update event is published.
func (s *Service) AddUpdate(ctx context.Context, orgID, id, createdBy string, input AddUpdateInput) (*domain.IncidentUpdate, *domain.Incident, error) {
	message := strings.TrimSpace(input.Message)
	if input.Status == nil && message == "" {
		return nil, nil, ErrEmptyUpdate
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, nil, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(*input.Status)}
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	incident, err := s.lockIncident(ctx, tx, orgID, id)
	if err != nil {
		return nil, nil, err
	}

	previous := incident.Status
	transitioned := false
	if input.Status != nil && *input.Status != incident.Status {
		if err := incident.UpdateStatus(*input.Status, s.now()); err != nil {
			return nil, nil, err
		}
		transitioned = true
		if err := s.repo.UpdateIncidentTx(ctx, tx, incident); err != nil {
			return nil, nil, fmt.Errorf("update incident: %w", err)
		}
	}
	if !transitioned && message == "" {
		return nil, nil, ErrEmptyUpdate
	}

	update := &domain.IncidentUpdate{
		IncidentID: incident.ID,
		Status:     incident.Status,
		Message:    message,
		CreatedBy:  createdBy,
	}
	if err := s.repo.CreateUpdateTx(ctx, tx, update); err != nil {
		return nil, nil, fmt.Errorf("create incident update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}

	if transitioned {
		metrics.StatusTransitions.WithLabelValues("incident", string(incident.Status)).Inc()
		ctxlog.FromContext(ctx).Info("incident status changed",
			"incident_id", incident.ID,
			"from", previous,
			"to", incident.Status,
		)
	}
	s.publisher.Publish(ctx, orgID, realtime.EventIncidentUpdate, realtime.NewIncidentPayload(incident, message))

	if transitioned && incident.IsResolved() {
		s.driveServices(ctx, orgID, incident.ServiceIDs, domain.ServiceStatusOperational)
	}

	return update, incident, nil
}

// UpdateIncident applies a patch. A changed impact is re-applied to the
// affected services while the incident is unresolved.
func (s *Service) UpdateIncident(ctx context.Context, orgID, id string, patch domain.IncidentPatch) (*domain.Incident, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	incident, err := s.lockIncident(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}

	previousImpact := incident.Impact
	if err := incident.Apply(patch, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.publisher.Publish(ctx, orgID, realtime.EventIncidentUpdate, realtime.NewIncidentPayload(incident, ""))

	if incident.Impact != previousImpact && !incident.IsResolved() {
		s.driveServices(ctx, orgID, incident.ServiceIDs, incident.Impact)
	}

	return incident, nil
}

// AddServices attaches services to the incident. Newly attached services
// take the incident impact while the incident is unresolved.
func (s *Service) AddServices(ctx context.Context, orgID, id string, serviceIDs []string) (*domain.Incident, error) {
	serviceIDs = dedupe(serviceIDs)
	if len(serviceIDs) == 0 {
		return nil, &domain.ValidationError{Field: "service_ids", Reason: "must not be empty"}
	}
	if err := s.services.ValidateServices(ctx, orgID, serviceIDs); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	incident, err := s.lockIncident(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}

	added, err := s.repo.AddServicesTx(ctx, tx, incident.ID, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("attach services: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	incident.ServiceIDs = append(incident.ServiceIDs, added...)
	s.publisher.Publish(ctx, orgID, realtime.EventIncidentUpdate, realtime.NewIncidentPayload(incident, ""))

	if !incident.IsResolved() {
		s.driveServices(ctx, orgID, added, incident.Impact)
	}

	return incident, nil
}

// RemoveService detaches a service. While the incident is unresolved the
// service goes back to operational.
func (s *Service) RemoveService(ctx context.Context, orgID, id, serviceID string) (*domain.Incident, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer postgres.Rollback(ctx, tx)

	incident, err := s.lockIncident(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RemoveServiceTx(ctx, tx, incident.ID, serviceID); err != nil {
		return nil, fmt.Errorf("detach service: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	incident.ServiceIDs = without(incident.ServiceIDs, serviceID)
	s.publisher.Publish(ctx, orgID, realtime.EventIncidentUpdate, realtime.NewIncidentPayload(incident, ""))

	if !incident.IsResolved() {
		s.driveServices(ctx, orgID, []string{serviceID}, domain.ServiceStatusOperational)
	}

	return incident, nil
}

// DeleteIncident deletes an incident. Services of an unresolved incident
// are reset to operational once the delete has succeeded.
func (s *Service) DeleteIncident(ctx context.Context, orgID, id string) error {
	incident, err := s.getIncident(ctx, orgID, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteIncident(ctx, id); err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}

	if !incident.IsResolved() {
		s.driveServices(ctx, orgID, incident.ServiceIDs, domain.ServiceStatusOperational)
	}
	return nil
}

func (s *Service) lockIncident(ctx context.Context, tx pgx.Tx, orgID, id string) (*domain.Incident, error) {
	incident, err := s.repo.GetIncidentForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock incident: %w", err)
	}
	if incident.OrganizationID != orgID {
		return nil, ErrIncidentNotFound
	}
	return incident, nil
}

// driveServices sets each service to status. The incident write has
// already committed, so failures are logged and the remaining services are
// still updated.
func (s *Service) driveServices(ctx context.Context, orgID string, serviceIDs []string, status domain.ServiceStatus) {
	for _, serviceID := range serviceIDs {
		if _, err := s.services.UpdateServiceStatus(ctx, orgID, serviceID, status); err != nil {
			ctxlog.FromContext(ctx).Error("failed to update affected service status",
				"service_id", serviceID,
				"status", status,
				"error", err,
			)
		}
	}
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
