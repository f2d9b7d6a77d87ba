package organizations

import (
	"context"
	"net/http"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
)

type orgContextKey struct{}

// FromContext returns the organization resolved by RequireMember.
func FromContext(ctx context.Context) *domain.Organization {
	org, _ := ctx.Value(orgContextKey{}).(*domain.Organization)
	return org
}

// RequireMember resolves {orgID} and rejects callers that do not belong to
// the organization. Unknown organizations answer 404, non members 403.
func RequireMember(service *Service) func(http.Handler) http.Handler {
	return requireAccess(service, false)
}

// RequireOrgAdmin is RequireMember that also demands the admin team role.
func RequireOrgAdmin(service *Service) func(http.Handler) http.Handler {
	return requireAccess(service, true)
}

func requireAccess(service *Service, admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			orgID, ok := httputil.PathID(r, "orgID")
			if !ok {
				httputil.Error(w, http.StatusNotFound, ErrOrganizationNotFound.Error())
				return
			}

			org := FromContext(ctx)
			if org == nil || org.ID != orgID {
				var err error
				org, err = service.GetOrganization(ctx, orgID)
				if err != nil {
					httputil.HandleError(ctx, w, err, errorMappings)
					return
				}
			}

			if err := service.Authorize(ctx, orgID, httputil.GetUserID(ctx), httputil.GetRole(ctx), admin); err != nil {
				httputil.HandleError(ctx, w, err, errorMappings)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, orgContextKey{}, org)))
		})
	}
}
