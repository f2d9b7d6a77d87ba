package maintenances

import (
	"net/http"
	"time"

	"github.com/bissquit/status-garden/internal/catalog"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrMaintenanceNotFound, Status: http.StatusNotFound},
	{Error: ErrServiceNotAttached, Status: http.StatusNotFound},
	{Error: ErrCommentNotFound, Status: http.StatusNotFound},
	{Error: ErrNotCommentAuthor, Status: http.StatusForbidden},
	{Error: catalog.ErrServiceNotFound, Status: http.StatusBadRequest, Message: "one or more services not found"},
}

// Handler handles HTTP requests for maintenances.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new maintenances handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers maintenance routes under /organizations/{orgID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/maintenances", func(r chi.Router) {
		r.Get("/", h.ListMaintenances)
		r.Post("/", h.CreateMaintenance)
		r.Get("/{maintenanceID}", h.GetMaintenance)
		r.Patch("/{maintenanceID}", h.UpdateMaintenance)
		r.Delete("/{maintenanceID}", h.DeleteMaintenance)
		r.Post("/{maintenanceID}/status", h.UpdateStatus)
		r.Post("/{maintenanceID}/services", h.AddServices)
		r.Delete("/{maintenanceID}/services/{serviceID}", h.RemoveService)
		r.Get("/{maintenanceID}/comments", h.ListComments)
		r.Post("/{maintenanceID}/comments", h.CreateComment)
		r.Delete("/{maintenanceID}/comments/{commentID}", h.DeleteComment)
	})
}

// CreateMaintenanceRequest represents the request body for scheduling a maintenance.
type CreateMaintenanceRequest struct {
	Title              string    `json:"title" validate:"required,min=1,max=255"`
	Description        string    `json:"description"`
	ScheduledStartTime time.Time `json:"scheduled_start_time" validate:"required"`
	ScheduledEndTime   time.Time `json:"scheduled_end_time" validate:"required"`
	ServiceIDs         []string  `json:"service_ids" validate:"omitempty,dive,uuid"`
}

// UpdateStatusRequest represents the request body for a status change.
type UpdateStatusRequest struct {
	Status          string     `json:"status" validate:"required,oneof=scheduled in_progress completed"`
	ActualStartTime *time.Time `json:"actual_start_time"`
	ActualEndTime   *time.Time `json:"actual_end_time"`
}

// ServicesRequest represents the request body for attaching services.
type ServicesRequest struct {
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,dive,uuid"`
}

// CommentRequest represents the request body for a comment.
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

// CreateMaintenance handles POST /maintenances.
func (h *Handler) CreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req CreateMaintenanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	m, err := h.service.CreateMaintenance(r.Context(), chi.URLParam(r, "orgID"), httputil.GetUserID(r.Context()), CreateMaintenanceInput{
		Title:              req.Title,
		Description:        req.Description,
		ScheduledStartTime: req.ScheduledStartTime,
		ScheduledEndTime:   req.ScheduledEndTime,
		ServiceIDs:         req.ServiceIDs,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, m)
}

// ListMaintenances handles GET /maintenances.
// status accepts a maintenance status, "active" or "upcoming".
func (h *Handler) ListMaintenances(w http.ResponseWriter, r *http.Request) {
	filter, page, ok := ParseFilter(w, r, time.Now())
	if !ok {
		return
	}
	filter.OrganizationID = chi.URLParam(r, "orgID")

	list, total, err := h.service.ListMaintenances(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, list, total, page)
}

// ParseFilter reads paging and filter query parameters shared with the
// public status page. On failure it writes a 400 response and returns false.
func ParseFilter(w http.ResponseWriter, r *http.Request, now time.Time) (MaintenanceFilter, httputil.Page, bool) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return MaintenanceFilter{}, page, false
	}

	filter := MaintenanceFilter{Limit: page.Limit, Offset: page.Offset()}

	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "active":
		filter.ActiveOnly = true
	case "upcoming":
		filter.UpcomingAfter = &now
	default:
		s := domain.MaintenanceStatus(status)
		if !s.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return MaintenanceFilter{}, page, false
		}
		filter.Status = &s
	}

	if filter.StartDate, err = httputil.ParseTimeParam(r, "start_date"); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return MaintenanceFilter{}, page, false
	}
	if filter.EndDate, err = httputil.ParseTimeParam(r, "end_date"); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return MaintenanceFilter{}, page, false
	}

	return filter, page, true
}

// GetMaintenance handles GET /maintenances/{maintenanceID}.
func (h *Handler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	m, err := h.service.GetMaintenance(r.Context(), chi.URLParam(r, "orgID"), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// UpdateMaintenance handles PATCH /maintenances/{maintenanceID}.
func (h *Handler) UpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	var patch domain.MaintenancePatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	m, err := h.service.UpdateMaintenance(r.Context(), chi.URLParam(r, "orgID"), id, patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// DeleteMaintenance handles DELETE /maintenances/{maintenanceID}.
func (h *Handler) DeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	if err := h.service.DeleteMaintenance(r.Context(), chi.URLParam(r, "orgID"), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// UpdateStatus handles POST /maintenances/{maintenanceID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	m, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "orgID"), id, UpdateStatusInput{
		Status:          domain.MaintenanceStatus(req.Status),
		ActualStartTime: req.ActualStartTime,
		ActualEndTime:   req.ActualEndTime,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// AddServices handles POST /maintenances/{maintenanceID}/services.
func (h *Handler) AddServices(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	var req ServicesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	m, err := h.service.AddServices(r.Context(), chi.URLParam(r, "orgID"), id, req.ServiceIDs)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// RemoveService handles DELETE /maintenances/{maintenanceID}/services/{serviceID}.
func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}
	serviceID, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotAttached.Error())
		return
	}

	m, err := h.service.RemoveService(r.Context(), chi.URLParam(r, "orgID"), id, serviceID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, m)
}

// ListComments handles GET /maintenances/{maintenanceID}/comments.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "orgID"), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, comments)
}

// CreateComment handles POST /maintenances/{maintenanceID}/comments.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}

	var req CommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	comment, err := h.service.CreateComment(r.Context(), chi.URLParam(r, "orgID"), id, httputil.GetUserID(r.Context()), req.Content)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, comment)
}

// DeleteComment handles DELETE /maintenances/{maintenanceID}/comments/{commentID}.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "maintenanceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMaintenanceNotFound.Error())
		return
	}
	commentID, ok := httputil.PathID(r, "commentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrCommentNotFound.Error())
		return
	}

	err := h.service.DeleteComment(r.Context(), chi.URLParam(r, "orgID"), id, commentID, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}
