package transport

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/beanbocchi/cumulus/internal/service"
	"github.com/beanbocchi/cumulus/pkg/binder"
	"github.com/beanbocchi/cumulus/pkg/validator"
)

func newEcho() (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Custom validator & binder
	customVal, err := validator.New()
	if err != nil {
		return nil, err
	}
	e.Validator = customVal
	e.Binder = binder.NewCustomBinder()

	// Health check
	e.GET("/ping", func(c echo.Context) error {
		c.Response().Header().Set("Connection", "close")
		return c.String(http.StatusOK, "ok")
	})

	return e, nil
}

// NewReaderEcho creates the retrieval-side instance.
func NewReaderEcho(svc *service.Service) (*echo.Echo, error) {
	e, err := newEcho()
	if err != nil {
		return nil, err
	}
	SetupReaderRoutes(e, svc)
	return e, nil
}

// NewWriterEcho creates the archive-side instance.
func NewWriterEcho(svc *service.Service) (*echo.Echo, error) {
	e, err := newEcho()
	if err != nil {
		return nil, err
	}
	SetupWriterRoutes(e, svc)
	return e, nil
}
