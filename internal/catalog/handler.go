package catalog

import (
	"net/http"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
}

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers catalog routes under /organizations/{orgID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.GetOverallStatus)

	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.ListServices)
		r.Post("/", h.CreateService)
		r.Get("/{serviceID}", h.GetService)
		r.Patch("/{serviceID}", h.UpdateService)
		r.Delete("/{serviceID}", h.DeleteService)
		r.Post("/{serviceID}/status", h.UpdateServiceStatus)
		r.Get("/{serviceID}/history", h.ListStatusHistory)
	})
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=operational degraded partial_outage major_outage"`
	IsPublic    *bool  `json:"is_public"`
}

// UpdateServiceStatusRequest represents the request body for changing a service status.
type UpdateServiceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=operational degraded partial_outage major_outage"`
}

// OverallStatusResponse is the aggregate status of an organization.
type OverallStatusResponse struct {
	Status domain.ServiceStatus `json:"status"`
}

// CreateService handles POST /services request.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	svc, err := h.service.CreateService(r.Context(), chi.URLParam(r, "orgID"), CreateServiceInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.ServiceStatus(req.Status),
		IsPublic:    isPublic,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, svc)
}

// GetService handles GET /services/{serviceID} request.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	svc, err := h.service.GetService(r.Context(), chi.URLParam(r, "orgID"), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, svc)
}

// ListServices handles GET /services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	filter := ServiceFilter{
		OrganizationID: chi.URLParam(r, "orgID"),
		Limit:          page.Limit,
		Offset:         page.Offset(),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.ServiceStatus(status)
		if !s.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &s
	}

	services, total, err := h.service.ListServices(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, services, total, page)
}

// UpdateService handles PATCH /services/{serviceID} request.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	var patch domain.ServicePatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	svc, err := h.service.UpdateService(r.Context(), chi.URLParam(r, "orgID"), id, patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, svc)
}

// DeleteService handles DELETE /services/{serviceID} request.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	if err := h.service.DeleteService(r.Context(), chi.URLParam(r, "orgID"), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// UpdateServiceStatus handles POST /services/{serviceID}/status request.
func (h *Handler) UpdateServiceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	var req UpdateServiceStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	svc, err := h.service.UpdateServiceStatus(r.Context(), chi.URLParam(r, "orgID"), id, domain.ServiceStatus(req.Status))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, svc)
}

// ListStatusHistory handles GET /services/{serviceID}/history request.
func (h *Handler) ListStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(r, "serviceID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	history, total, err := h.service.ListStatusHistory(r.Context(), chi.URLParam(r, "orgID"), id, page.Limit, page.Offset())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, history, total, page)
}

// GetOverallStatus handles GET /status request.
func (h *Handler) GetOverallStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.OverallStatus(r.Context(), chi.URLParam(r, "orgID"), false)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, OverallStatusResponse{Status: status})
}
