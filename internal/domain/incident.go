package domain

import "time"

type IncidentStatus string

const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// resolved only allows reopening.
var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusInvestigating: {IncidentStatusIdentified, IncidentStatusMonitoring, IncidentStatusResolved},
	IncidentStatusIdentified:    {IncidentStatusInvestigating, IncidentStatusMonitoring, IncidentStatusResolved},
	IncidentStatusMonitoring:    {IncidentStatusInvestigating, IncidentStatusIdentified, IncidentStatusResolved},
	IncidentStatusResolved:      {IncidentStatusInvestigating},
}

func (s IncidentStatus) IsValid() bool {
	_, ok := incidentTransitions[s]
	return ok
}

func (s IncidentStatus) CanTransitionTo(target IncidentStatus) bool {
	for _, allowed := range incidentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type Incident struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Status         IncidentStatus `json:"status"`
	Impact         ServiceStatus  `json:"impact"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	ServiceIDs     []string       `json:"service_ids"`
}

// NewIncident returns an unsaved incident in its initial state.
func NewIncident(orgID, title, description string, impact ServiceStatus, createdBy string, now time.Time) *Incident {
	if impact == "" {
		impact = ServiceStatusDegraded
	}
	return &Incident{
		OrganizationID: orgID,
		Title:          title,
		Description:    description,
		Status:         IncidentStatusInvestigating,
		Impact:         impact,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
		ServiceIDs:     make([]string, 0),
	}
}

func (i *Incident) IsResolved() bool {
	return i.Status == IncidentStatusResolved
}

// UpdateStatus moves the incident to target. ResolvedAt is stamped on the
// first resolution only and is kept when the incident is reopened.
func (i *Incident) UpdateStatus(target IncidentStatus, now time.Time) error {
	if !i.Status.CanTransitionTo(target) {
		return &TransitionError{Entity: "incident", From: string(i.Status), To: string(target)}
	}
	i.Status = target
	i.UpdatedAt = now
	if target == IncidentStatusResolved && i.ResolvedAt == nil {
		resolvedAt := now
		i.ResolvedAt = &resolvedAt
	}
	return nil
}

type IncidentPatch struct {
	Title       Optional[string]        `json:"title"`
	Description Optional[string]        `json:"description"`
	Impact      Optional[ServiceStatus] `json:"impact"`
}

// Apply merges the patch into the incident. Nothing is changed when the patch is invalid.
func (i *Incident) Apply(p IncidentPatch, now time.Time) error {
	next := *i
	if err := applyRequiredString("title", p.Title, &next.Title, 255); err != nil {
		return err
	}
	applyClearableString(p.Description, &next.Description)
	if err := applyValue("impact", p.Impact, &next.Impact); err != nil {
		return err
	}
	if !next.Impact.IsValid() {
		return &ValidationError{Field: "impact", Reason: "unknown status " + string(next.Impact)}
	}
	next.UpdatedAt = now
	*i = next
	return nil
}

type IncidentUpdate struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"incident_id"`
	Status     IncidentStatus `json:"status"`
	Message    string         `json:"message"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
}
