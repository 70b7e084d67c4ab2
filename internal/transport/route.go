package transport

import (
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/cumulus/internal/service"
)

type Handler struct {
	svc *service.Service

	dataActions      map[string]writeAction
	conjoinedActions map[string]writeAction
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		svc:              svc,
		dataActions:      dataActions(),
		conjoinedActions: conjoinedActions(),
	}
}

// SetupReaderRoutes exposes the retrieval and listing surface.
func SetupReaderRoutes(e *echo.Echo, svc *service.Service) {
	h := NewHandler(svc)

	e.GET("/:collection/data/:key", h.Retrieve)
	e.HEAD("/:collection/data/:key", h.Retrieve)
	e.GET("/:collection/data", h.ListKeys)
	e.GET("/:collection/versions", h.ListVersions)
	e.GET("/:collection/conjoined", h.ListConjoined)
	e.GET("/:collection/conjoined/:key", h.ListConjoinedParts)
	e.GET("/:collection/usage", h.Usage)
}

// SetupWriterRoutes exposes the archive, delete and conjoined surface.
func SetupWriterRoutes(e *echo.Echo, svc *service.Service) {
	h := NewHandler(svc)

	e.POST("/:collection/data/:key", h.WriteData)
	e.POST("/:collection/conjoined/:key", h.WriteConjoined)
}
