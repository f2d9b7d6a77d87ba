package domain

import "time"

// ServiceStatus represents the operational status of a service.
// Incidents reuse the same vocabulary for their impact.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational   ServiceStatus = "operational"
	ServiceStatusDegraded      ServiceStatus = "degraded"
	ServiceStatusPartialOutage ServiceStatus = "partial_outage"
	ServiceStatusMajorOutage   ServiceStatus = "major_outage"
)

var serviceStatusSeverity = map[ServiceStatus]int{
	ServiceStatusOperational:   0,
	ServiceStatusDegraded:      1,
	ServiceStatusPartialOutage: 2,
	ServiceStatusMajorOutage:   3,
}

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	_, ok := serviceStatusSeverity[s]
	return ok
}

// Severity returns the rank of the status, operational being the lowest.
// Unknown statuses rank below operational.
func (s ServiceStatus) Severity() int {
	if sev, ok := serviceStatusSeverity[s]; ok {
		return sev
	}
	return -1
}

// HighestSeverityStatus returns the worst status of the set.
// An empty set is operational.
func HighestSeverityStatus(statuses []ServiceStatus) ServiceStatus {
	highest := ServiceStatusOperational
	for _, s := range statuses {
		if s.Severity() > highest.Severity() {
			highest = s
		}
	}
	return highest
}

// Service represents a monitored component of an organization.
type Service struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         ServiceStatus `json:"status"`
	IsPublic       bool          `json:"is_public"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// StatusChange is an immutable service status history record.
type StatusChange struct {
	ID        string        `json:"id"`
	ServiceID string        `json:"service_id"`
	Status    ServiceStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// ServicePatch holds optional service field changes.
// Status is deliberately absent: it only changes through the status mutator.
type ServicePatch struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	IsPublic    Optional[bool]   `json:"is_public"`
}

// Apply merges the patch into the service. Nothing is changed when the patch is invalid.
func (s *Service) Apply(p ServicePatch, now time.Time) error {
	next := *s
	if err := applyRequiredString("name", p.Name, &next.Name, 255); err != nil {
		return err
	}
	applyClearableString(p.Description, &next.Description)
	if err := applyValue("is_public", p.IsPublic, &next.IsPublic); err != nil {
		return err
	}
	next.UpdatedAt = now
	*s = next
	return nil
}
