package transport

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/pkg/response"
)

// statusOf maps each failure kind to its HTTP status. Malformed ranges,
// timestamps and identifiers land in the retry-later class rather than the
// ordinary 400 family; clients treat them as transient.
func statusOf(kind model.Kind) int {
	switch kind {
	case model.KindInvalidRequest:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindNotModified:
		return http.StatusNotModified
	case model.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case model.KindClientSyntax, model.KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c echo.Context, err error) error {
	status := statusOf(model.KindOf(err))
	if status == http.StatusNotModified {
		c.Response().Header().Set("Connection", "close")
		return c.NoContent(status)
	}
	return response.FromError(c.Response().Writer, status, err)
}
