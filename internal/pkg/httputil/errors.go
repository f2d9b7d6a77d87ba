package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// domainErrors apply to every module after its own mappings.
var domainErrors = []ErrorMapping{
	{Error: domain.ErrInvalidTransition, Status: http.StatusConflict},
	{Error: domain.ErrValidation, Status: http.StatusBadRequest},
	{Error: ErrInvalidPagination, Status: http.StatusBadRequest},
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// If no mapping matches, logs the error and returns 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, list := range [][]ErrorMapping{mappings, domainErrors} {
		for _, m := range list {
			if errors.Is(err, m.Error) {
				msg := m.Message
				if msg == "" {
					msg = err.Error()
				}
				Error(w, m.Status, msg)
				return
			}
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
