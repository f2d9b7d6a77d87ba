package incidents

import (
	"net/http"

	"github.com/bissquit/status-garden/internal/catalog"
	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrServiceNotAttached, Status: http.StatusNotFound},
	{Error: ErrEmptyUpdate, Status: http.StatusBadRequest},
	{Error: catalog.ErrServiceNotFound, Status: http.StatusBadRequest, Message: "one or more services not found"},
}

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident routes under /organizations/{orgID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{incidentID}", h.GetIncident)
		r.Patch("/{incidentID}", h.UpdateIncident)
		r.Delete("/{incidentID}", h.DeleteIncident)
		r.Get("/{incidentID}/updates", h.ListUpdates)
		r.Post("/{incidentID}/updates", h.AddUpdate)
		r.Post("/{incidentID}/services", h.AddServices)
		r.Delete("/{incidentID}/services/{serviceID}", h.RemoveService)
	})
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=255"`
	Description string   `json:"description"`
	Impact      string   `json:"impact" validate:"omitempty,oneof=operational degraded partial_outage major_outage"`
	Status      string   `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	ServiceIDs  []string `json:"service_ids" validate:"omitempty,dive,uuid"`
	Message     string   `json:"message"`
}

// AddUpdateRequest represents the request body for an incident update.
type AddUpdateRequest struct {
	Status  *string `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Message string  `json:"message" validate:"max=10000"`
}

// ServicesRequest represents the request body for attaching services.
type ServicesRequest struct {
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,dive,uuid"`
}

// UpdateResponse is returned after appending to the incident log.
type UpdateResponse struct {
	Update   *domain.IncidentUpdate `json:"update"`
	Incident *domain.Incident       `json:"incident"`
}

// CreateIncident handles POST /incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.CreateIncident(r.Context(), chi.URLParam(r, "orgID"), httputil.GetUserID(r.Context()), CreateIncidentInput{
		Title:       req.Title,
		Description: req.Description,
		Impact:      domain.ServiceStatus(req.Impact),
		Status:      domain.IncidentStatus(req.Status),
		ServiceIDs:  req.ServiceIDs,
		Message:     req.Message,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// ListIncidents handles GET /incidents.
// Supports status (a status or "active"), start_date and end_date.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filter, page, ok := ParseFilter(w, r)
	if !ok {
		return
	}
	filter.OrganizationID = chi.URLParam(r, "orgID")

	list, total, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, list, total, page)
}

// ParseFilter reads paging and filter query parameters shared with the
// public status page. On failure it writes a 400 response and returns false.
func ParseFilter(w http.ResponseWriter, r *http.Request) (IncidentFilter, httputil.Page, bool) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return IncidentFilter{}, page, false
	}

	filter := IncidentFilter{Limit: page.Limit, Offset: page.Offset()}

	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "active":
		filter.ActiveOnly = true
	default:
		s := domain.IncidentStatus(status)
		if !s.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return IncidentFilter{}, page, false
		}
		filter.Status = &s
	}

	if filter.StartDate, err = httputil.ParseTimeParam(r, "start_date"); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return IncidentFilter{}, page, false
	}
	if filter.EndDate, err = httputil.ParseTimeParam(r, "end_date"); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return IncidentFilter{}, page, false
	}

	return filter, page, true
}

// GetIncident handles GET /incidents/{incidentID}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	detail, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "orgID"), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, detail)
}

// UpdateIncident handles PATCH /incidents/{incidentID}.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	var patch domain.IncidentPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	incident, err := h.service.UpdateIncident(r.Context(), chi.URLParam(r, "orgID"), id, patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// DeleteIncident handles DELETE /incidents/{incidentID}.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	if err := h.service.DeleteIncident(r.Context(), chi.URLParam(r, "orgID"), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// ListUpdates handles GET /incidents/{incidentID}/updates.
func (h *Handler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	updates, err := h.service.ListUpdates(r.Context(), chi.URLParam(r, "orgID"), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, updates)
}

// AddUpdate handles POST /incidents/{incidentID}/updates.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	var req AddUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := AddUpdateInput{Message: req.Message}
	if req.Status != nil {
		s := domain.IncidentStatus(*req.Status)
		input.Status = &s
	}

	update, incident, err := h.service.AddUpdate(r.Context(), chi.URLParam(r, "orgID"), id, httputil.GetUserID(r.Context()), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, UpdateResponse{Update: update, Incident: incident})
}

// AddServices handles POST /incidents/{incidentID}/services.
func (h *Handler) AddServices(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
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

	incident, err := h.service.AddServices(r.Context(), chi.URLParam(r, "orgID"), id, req.ServiceIDs)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// RemoveService handles DELETE /incidents/{incidentID}/services/{serviceID}.
func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "incidentID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}
	serviceID, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotAttached.Error())
		return
	}

	incident, err := h.service.RemoveService(r.Context(), chi.URLParam(r, "orgID"), id, serviceID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}
