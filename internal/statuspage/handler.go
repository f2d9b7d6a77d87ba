package statuspage

import (
	"net/http"
	"time"

	"github.com/bissquit/status-garden/internal/incidents"
	"github.com/bissquit/status-garden/internal/maintenances"
	"github.com/bissquit/status-garden/internal/organizations"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: organizations.ErrOrganizationNotFound, Status: http.StatusNotFound},
}

// Handler serves the public status page API.
type Handler struct {
	service *Service
}

// NewHandler creates a new status page handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers public routes. No authentication is required.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/public/organizations/{slug}", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/services", h.ListServices)
		r.Get("/incidents", h.ListIncidents)
		r.Get("/maintenances", h.ListMaintenances)
	})
}

// GetStatus handles GET /public/organizations/{slug}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Status(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, doc)
}

// ListServices handles GET /public/organizations/{slug}/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	list, total, err := h.service.Services(r.Context(), chi.URLParam(r, "slug"), page.Limit, page.Offset())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, list, total, page)
}

// ListIncidents handles GET /public/organizations/{slug}/incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filter, page, ok := incidents.ParseFilter(w, r)
	if !ok {
		return
	}

	list, total, err := h.service.Incidents(r.Context(), chi.URLParam(r, "slug"), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, list, total, page)
}

// ListMaintenances handles GET /public/organizations/{slug}/maintenances.
func (h *Handler) ListMaintenances(w http.ResponseWriter, r *http.Request) {
	filter, page, ok := maintenances.ParseFilter(w, r, time.Now())
	if !ok {
		return
	}

	list, total, err := h.service.Maintenances(r.Context(), chi.URLParam(r, "slug"), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Paginated(w, list, total, page)
}
