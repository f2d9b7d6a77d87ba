package domain

import "time"

// MaintenanceStatus represents the lifecycle state of a maintenance window.
type MaintenanceStatus string

// Maintenance statuses.
const (
	MaintenanceStatusScheduled  MaintenanceStatus = "scheduled"
	MaintenanceStatusInProgress MaintenanceStatus = "in_progress"
	MaintenanceStatusCompleted  MaintenanceStatus = "completed"
)

var maintenanceTransitions = map[MaintenanceStatus][]MaintenanceStatus{
	MaintenanceStatusScheduled:  {MaintenanceStatusInProgress, MaintenanceStatusCompleted},
	MaintenanceStatusInProgress: {MaintenanceStatusCompleted},
	MaintenanceStatusCompleted:  {},
}

// IsValid checks if the maintenance status is valid.
func (s MaintenanceStatus) IsValid() bool {
	_, ok := maintenanceTransitions[s]
	return ok
}

// IsActive reports whether the window is scheduled or running.
func (s MaintenanceStatus) IsActive() bool {
	return s == MaintenanceStatusScheduled || s == MaintenanceStatusInProgress
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s MaintenanceStatus) CanTransitionTo(target MaintenanceStatus) bool {
	for _, allowed := range maintenanceTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Maintenance represents a planned, time-boxed disruption window.
type Maintenance struct {
	ID                 string            `json:"id"`
	OrganizationID     string            `json:"organization_id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Status             MaintenanceStatus `json:"status"`
	CreatedBy          string            `json:"created_by"`
	ScheduledStartTime time.Time         `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time         `json:"scheduled_end_time"`
	ActualStartTime    *time.Time        `json:"actual_start_time"`
	ActualEndTime      *time.Time        `json:"actual_end_time"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ServiceIDs         []string          `json:"service_ids"`
}

// NewMaintenance returns an unsaved scheduled maintenance.
func NewMaintenance(orgID, title, description string, start, end time.Time, createdBy string, now time.Time) (*Maintenance, error) {
	if !end.After(start) {
		return nil, &ValidationError{Field: "scheduled_end_time", Reason: "must be after scheduled_start_time"}
	}
	return &Maintenance{
		OrganizationID:     orgID,
		Title:              title,
		Description:        description,
		Status:             MaintenanceStatusScheduled,
		CreatedBy:          createdBy,
		ScheduledStartTime: start,
		ScheduledEndTime:   end,
		CreatedAt:          now,
		UpdatedAt:          now,
		ServiceIDs:         make([]string, 0),
	}, nil
}

// MaintenanceTimes carries caller supplied actual times used to correct a
// window after the fact. Nil fields fall back to the transition time.
type MaintenanceTimes struct {
	ActualStart *time.Time
	ActualEnd   *time.Time
}

// UpdateStatus moves the maintenance to target and stamps the actual times.
// Entering in_progress sets the actual start if unset. Entering completed
// sets the actual end and backfills the actual start when in_progress was skipped.
func (m *Maintenance) UpdateStatus(target MaintenanceStatus, now time.Time, override MaintenanceTimes) error {
	if !m.Status.CanTransitionTo(target) {
		return &TransitionError{Entity: "maintenance", From: string(m.Status), To: string(target)}
	}

	start := m.ActualStartTime
	end := m.ActualEndTime

	switch target {
	case MaintenanceStatusInProgress:
		if override.ActualStart != nil {
			start = timePtr(*override.ActualStart)
		} else if start == nil {
			start = timePtr(now)
		}
	case MaintenanceStatusCompleted:
		if override.ActualEnd != nil {
			end = timePtr(*override.ActualEnd)
		} else {
			end = timePtr(now)
		}
		if override.ActualStart != nil {
			start = timePtr(*override.ActualStart)
		} else if start == nil {
			start = timePtr(*end)
		}
	}

	if start != nil && end != nil && end.Before(*start) {
		return &ValidationError{Field: "actual_end_time", Reason: "must not be before actual_start_time"}
	}

	m.Status = target
	m.ActualStartTime = start
	m.ActualEndTime = end
	m.UpdatedAt = now
	return nil
}

// MaintenancePatch holds optional maintenance field changes.
type MaintenancePatch struct {
	Title              Optional[string]    `json:"title"`
	Description        Optional[string]    `json:"description"`
	ScheduledStartTime Optional[time.Time] `json:"scheduled_start_time"`
	ScheduledEndTime   Optional[time.Time] `json:"scheduled_end_time"`
}

// Apply merges the patch into the maintenance. Nothing is changed when the patch is invalid.
func (m *Maintenance) Apply(p MaintenancePatch, now time.Time) error {
	next := *m
	if err := applyRequiredString("title", p.Title, &next.Title, 255); err != nil {
		return err
	}
	applyClearableString(p.Description, &next.Description)
	if err := applyValue("scheduled_start_time", p.ScheduledStartTime, &next.ScheduledStartTime); err != nil {
		return err
	}
	if err := applyValue("scheduled_end_time", p.ScheduledEndTime, &next.ScheduledEndTime); err != nil {
		return err
	}
	if !next.ScheduledEndTime.After(next.ScheduledStartTime) {
		return &ValidationError{Field: "scheduled_end_time", Reason: "must be after scheduled_start_time"}
	}
	next.UpdatedAt = now
	*m = next
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
