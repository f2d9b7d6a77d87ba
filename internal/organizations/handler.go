package organizations

import (
	"net/http"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrOrganizationNotFound, Status: http.StatusNotFound},
	{Error: ErrSlugTaken, Status: http.StatusConflict},
	{Error: ErrNotMember, Status: http.StatusForbidden},
	{Error: ErrNotAdmin, Status: http.StatusForbidden},
	{Error: ErrTeamNotFound, Status: http.StatusNotFound},
	{Error: ErrTeamNameTaken, Status: http.StatusConflict},
	{Error: ErrMemberNotFound, Status: http.StatusNotFound},
	{Error: ErrMemberExists, Status: http.StatusConflict},
	{Error: ErrUserNotFound, Status: http.StatusBadRequest},
	{Error: ErrLastTeamAdmin, Status: http.StatusConflict},
}

// Handler handles HTTP requests for organizations and teams.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new organizations handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the organization collection routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListOrganizations)
	r.Post("/", h.CreateOrganization)
}

// RegisterOrgRoutes registers routes under /organizations/{orgID}. The caller
// mounts them behind RequireMember; management routes add RequireOrgAdmin.
func (h *Handler) RegisterOrgRoutes(r chi.Router) {
	admin := r.With(RequireOrgAdmin(h.service))

	r.Get("/", h.GetOrganization)
	admin.Patch("/", h.UpdateOrganization)
	admin.Delete("/", h.DeleteOrganization)

	r.Route("/teams", func(r chi.Router) {
		admin := r.With(RequireOrgAdmin(h.service))

		r.Get("/", h.ListTeams)
		admin.Post("/", h.CreateTeam)
		r.Get("/{teamID}", h.GetTeam)
		admin.Patch("/{teamID}", h.UpdateTeam)
		admin.Delete("/{teamID}", h.DeleteTeam)

		r.Get("/{teamID}/members", h.ListMembers)
		admin.Post("/{teamID}/members", h.AddMember)
		admin.Patch("/{teamID}/members/{userID}", h.UpdateMember)
		admin.Delete("/{teamID}/members/{userID}", h.RemoveMember)
	})
}

// CreateOrganizationRequest represents the request body for creating an organization.
type CreateOrganizationRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=255"`
	Slug    string  `json:"slug" validate:"max=100"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url"`
}

// CreateTeamRequest represents the request body for creating a team.
type CreateTeamRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description"`
}

// AddMemberRequest represents the request body for adding a team member.
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,oneof=admin member"`
}

// UpdateMemberRequest represents the request body for changing a member role.
type UpdateMemberRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

// CreateOrganization handles POST /organizations.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), httputil.GetUserID(r.Context()), CreateOrganizationInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, org)
}

// ListOrganizations handles GET /organizations.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	list, total, err := h.service.ListOrganizations(ctx, httputil.GetUserID(ctx), httputil.GetRole(ctx), page.Limit, page.Offset())
	if err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}

	httputil.Paginated(w, list, total, page)
}

// GetOrganization handles GET /organizations/{orgID}.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	if org := FromContext(r.Context()); org != nil {
		httputil.Success(w, http.StatusOK, org)
		return
	}

	org, err := h.service.GetOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// UpdateOrganization handles PATCH /organizations/{orgID}.
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var patch domain.OrganizationPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	org, err := h.service.UpdateOrganization(r.Context(), chi.URLParam(r, "orgID"), patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// DeleteOrganization handles DELETE /organizations/{orgID}.
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrganization(r.Context(), chi.URLParam(r, "orgID")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// ListTeams handles GET /teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, teams)
}

// CreateTeam handles POST /teams.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	team, err := h.service.CreateTeam(r.Context(), chi.URLParam(r, "orgID"), CreateTeamInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, team)
}

// GetTeam handles GET /teams/{teamID}.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}

	team, err := h.service.GetTeam(r.Context(), chi.URLParam(r, "orgID"), teamID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, team)
}

// UpdateTeam handles PATCH /teams/{teamID}.
func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}

	var patch domain.TeamPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	team, err := h.service.UpdateTeam(r.Context(), chi.URLParam(r, "orgID"), teamID, patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, team)
}

// DeleteTeam handles DELETE /teams/{teamID}.
func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}

	if err := h.service.DeleteTeam(r.Context(), chi.URLParam(r, "orgID"), teamID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// ListMembers handles GET /teams/{teamID}/members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}

	members, err := h.service.ListMembers(r.Context(), chi.URLParam(r, "orgID"), teamID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, members)
}

// AddMember handles POST /teams/{teamID}/members.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}

	var req AddMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	member, err := h.service.AddMember(r.Context(), chi.URLParam(r, "orgID"), teamID, req.UserID, domain.TeamRole(req.Role))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, member)
}

// UpdateMember handles PATCH /teams/{teamID}/members/{userID}.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}
	userID, ok := httputil.PathID(r, "userID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMemberNotFound.Error())
		return
	}

	var req UpdateMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	member, err := h.service.UpdateMemberRole(r.Context(), chi.URLParam(r, "orgID"), teamID, userID, domain.TeamRole(req.Role))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /teams/{teamID}/members/{userID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.PathID(r, "teamID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrTeamNotFound.Error())
		return
	}
	userID, ok := httputil.PathID(r, "userID")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrMemberNotFound.Error())
		return
	}

	if err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "orgID"), teamID, userID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}
