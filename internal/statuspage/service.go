// Package statuspage serves the read-only public mirror of an organization,
// addressed by its slug.
package statuspage

import (
	"context"
	"fmt"

	"github.com/bissquit/status-garden/internal/catalog"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/incidents"
	"github.com/bissquit/status-garden/internal/maintenances"
)

// summaryLimit caps the incidents and maintenances embedded in the status document.
const summaryLimit = 5

// OrganizationReader resolves organizations by slug.
type OrganizationReader interface {
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
}

// ServiceReader lists services and computes their aggregate status.
type ServiceReader interface {
	ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, int, error)
	OverallStatus(ctx context.Context, orgID string, publicOnly bool) (domain.ServiceStatus, error)
}

// IncidentReader lists incidents.
type IncidentReader interface {
	ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]domain.Incident, int, error)
}

// MaintenanceReader lists maintenances.
type MaintenanceReader interface {
	ListMaintenances(ctx context.Context, filter maintenances.MaintenanceFilter) ([]domain.Maintenance, int, error)
}

// Service assembles public views.
type Service struct {
	orgs         OrganizationReader
	services     ServiceReader
	incidents    IncidentReader
	maintenances MaintenanceReader
}

// NewService creates a new status page service.
func NewService(orgs OrganizationReader, services ServiceReader, incidents IncidentReader, maintenances MaintenanceReader) *Service {
	return &Service{
		orgs:         orgs,
		services:     services,
		incidents:    incidents,
		maintenances: maintenances,
	}
}

// PublicOrganization is the organization info shown on the status page.
type PublicOrganization struct {
	Name    string  `json:"name"`
	Slug    string  `json:"slug"`
	LogoURL *string `json:"logo_url"`
}

// StatusDocument is the aggregated public status of an organization.
type StatusDocument struct {
	Organization PublicOrganization   `json:"organization"`
	Status       domain.ServiceStatus `json:"status"`
	Services     []domain.Service     `json:"services"`
	Incidents    []domain.Incident    `json:"incidents"`
	Maintenances []domain.Maintenance `json:"maintenances"`
}

// Organization resolves a slug.
func (s *Service) Organization(ctx context.Context, slug string) (*domain.Organization, error) {
	org, err := s.orgs.GetOrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// Status builds the status document: the worst status over public services,
// the public services, active incidents and active or upcoming maintenances.
func (s *Service) Status(ctx context.Context, slug string) (*StatusDocument, error) {
	org, err := s.Organization(ctx, slug)
	if err != nil {
		return nil, err
	}

	overall, err := s.services.OverallStatus(ctx, org.ID, true)
	if err != nil {
		return nil, fmt.Errorf("overall status: %w", err)
	}

	services, _, err := s.services.ListServices(ctx, catalog.ServiceFilter{OrganizationID: org.ID, PublicOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	active, _, err := s.incidents.ListIncidents(ctx, incidents.IncidentFilter{
		OrganizationID: org.ID,
		ActiveOnly:     true,
		Limit:          summaryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	windows, _, err := s.maintenances.ListMaintenances(ctx, maintenances.MaintenanceFilter{
		OrganizationID: org.ID,
		ActiveOnly:     true,
		Limit:          summaryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list maintenances: %w", err)
	}

	public := serviceIDSet(services)
	hideIncidentServices(active, public)
	hideMaintenanceServices(windows, public)

	return &StatusDocument{
		Organization: PublicOrganization{Name: org.Name, Slug: org.Slug, LogoURL: org.LogoURL},
		Status:       overall,
		Services:     services,
		Incidents:    active,
		Maintenances: windows,
	}, nil
}

// Services returns a page of public services.
func (s *Service) Services(ctx context.Context, slug string, limit, offset int) ([]domain.Service, int, error) {
	org, err := s.Organization(ctx, slug)
	if err != nil {
		return nil, 0, err
	}
	return s.services.ListServices(ctx, catalog.ServiceFilter{
		OrganizationID: org.ID,
		PublicOnly:     true,
		Limit:          limit,
		Offset:         offset,
	})
}

// Incidents returns a page of incidents. The filter's organization is
// replaced by the one behind slug.
func (s *Service) Incidents(ctx context.Context, slug string, filter incidents.IncidentFilter) ([]domain.Incident, int, error) {
	org, err := s.Organization(ctx, slug)
	if err != nil {
		return nil, 0, err
	}
	filter.OrganizationID = org.ID
	list, total, err := s.incidents.ListIncidents(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	public, err := s.publicServiceIDs(ctx, org.ID)
	if err != nil {
		return nil, 0, err
	}
	hideIncidentServices(list, public)
	return list, total, nil
}

// Maintenances returns a page of maintenances of the organization behind slug.
func (s *Service) Maintenances(ctx context.Context, slug string, filter maintenances.MaintenanceFilter) ([]domain.Maintenance, int, error) {
	org, err := s.Organization(ctx, slug)
	if err != nil {
		return nil, 0, err
	}
	filter.OrganizationID = org.ID
	list, total, err := s.maintenances.ListMaintenances(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	public, err := s.publicServiceIDs(ctx, org.ID)
	if err != nil {
		return nil, 0, err
	}
	hideMaintenanceServices(list, public)
	return list, total, nil
}

func (s *Service) publicServiceIDs(ctx context.Context, orgID string) (map[string]struct{}, error) {
	services, _, err := s.services.ListServices(ctx, catalog.ServiceFilter{OrganizationID: orgID, PublicOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return serviceIDSet(services), nil
}

func serviceIDSet(services []domain.Service) map[string]struct{} {
	ids := make(map[string]struct{}, len(services))
	for _, svc := range services {
		ids[svc.ID] = struct{}{}
	}
	return ids
}

// Private services are not part of the public mirror, so their ids are
// dropped from incidents and maintenances too.
func hideIncidentServices(list []domain.Incident, public map[string]struct{}) {
	for i := range list {
		list[i].ServiceIDs = onlyPublic(list[i].ServiceIDs, public)
	}
}

func hideMaintenanceServices(list []domain.Maintenance, public map[string]struct{}) {
	for i := range list {
		list[i].ServiceIDs = onlyPublic(list[i].ServiceIDs, public)
	}
}

func onlyPublic(ids []string, public map[string]struct{}) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := public[id]; ok {
			result = append(result, id)
		}
	}
	return result
}
