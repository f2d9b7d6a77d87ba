package realtime

import (
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// EventType names a real-time event delivered to browsers.
type EventType string

// Event types pushed to organization rooms.
const (
	EventServiceStatusChange     EventType = "service:status:change"
	EventIncidentCreate          EventType = "incident:create"
	EventIncidentUpdate          EventType = "incident:update"
	EventMaintenanceCreate       EventType = "maintenance:create"
	EventMaintenanceUpdate       EventType = "maintenance:update"
	EventMaintenanceStatusChange EventType = "maintenance:status:change"
	EventCommentCreate           EventType = "comment:create"
)

// Control messages exchanged with websocket clients.
const (
	MessageJoinOrganization  = "join:organization"
	MessageLeaveOrganization = "leave:organization"
	MessageJoined            = "organization:joined"
	MessageLeft              = "organization:left"
	MessageError             = "error"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Payload        any       `json:"payload,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

// ServiceStatusPayload is published on service:status:change.
type ServiceStatusPayload struct {
	ServiceID      string               `json:"service_id"`
	Name           string               `json:"name"`
	Status         domain.ServiceStatus `json:"status"`
	PreviousStatus domain.ServiceStatus `json:"previous_status,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewServiceStatusPayload builds the payload from a service after its status changed.
func NewServiceStatusPayload(svc *domain.Service, previous domain.ServiceStatus) ServiceStatusPayload {
	return ServiceStatusPayload{
		ServiceID:      svc.ID,
		Name:           svc.Name,
		Status:         svc.Status,
		PreviousStatus: previous,
		UpdatedAt:      svc.UpdatedAt,
	}
}

// IncidentPayload is published on incident:create and incident:update.
type IncidentPayload struct {
	IncidentID string                `json:"incident_id"`
	Title      string                `json:"title"`
	Status     domain.IncidentStatus `json:"status"`
	Impact     domain.ServiceStatus  `json:"impact"`
	Message    string                `json:"message,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	ResolvedAt *time.Time            `json:"resolved_at,omitempty"`
}

// NewIncidentPayload builds the payload from an incident.
func NewIncidentPayload(inc *domain.Incident, message string) IncidentPayload {
	return IncidentPayload{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Status:     inc.Status,
		Impact:     inc.Impact,
		Message:    message,
		CreatedAt:  inc.CreatedAt,
		UpdatedAt:  inc.UpdatedAt,
		ResolvedAt: inc.ResolvedAt,
	}
}

// MaintenancePayload is published on maintenance:create, maintenance:update
// and maintenance:status:change.
type MaintenancePayload struct {
	MaintenanceID      string                   `json:"maintenance_id"`
	Title              string                   `json:"title"`
	Status             domain.MaintenanceStatus `json:"status"`
	ScheduledStartTime time.Time                `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time                `json:"scheduled_end_time"`
	ActualStartTime    *time.Time               `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time               `json:"actual_end_time,omitempty"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// NewMaintenancePayload builds the payload from a maintenance.
func NewMaintenancePayload(m *domain.Maintenance) MaintenancePayload {
	return MaintenancePayload{
		MaintenanceID:      m.ID,
		Title:              m.Title,
		Status:             m.Status,
		ScheduledStartTime: m.ScheduledStartTime,
		ScheduledEndTime:   m.ScheduledEndTime,
		ActualStartTime:    m.ActualStartTime,
		ActualEndTime:      m.ActualEndTime,
		UpdatedAt:          m.UpdatedAt,
	}
}

// Comment entity types.
const (
	CommentEntityMaintenance = "maintenance"
)

// CommentPayload is published on comment:create.
type CommentPayload struct {
	CommentID   string    `json:"comment_id"`
	Content     string    `json:"content"`
	EntityID    string    `json:"entity_id"`
	EntityType  string    `json:"entity_type"`
	EntityTitle string    `json:"entity_title"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMaintenanceCommentPayload builds the payload for a comment left on a maintenance.
func NewMaintenanceCommentPayload(c *domain.Comment, m *domain.Maintenance) CommentPayload {
	return CommentPayload{
		CommentID:   c.ID,
		Content:     c.Content,
		EntityID:    m.ID,
		EntityType:  CommentEntityMaintenance,
		EntityTitle: m.Title,
		CreatedAt:   c.CreatedAt,
	}
}
