package binder

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// CustomBinder binds path and query parameters on every method and only
// touches the body when it is JSON. The write endpoints carry their
// parameters in the query string of a POST whose body is raw object
// content, which the default binder refuses.
type CustomBinder struct {
	defaults echo.DefaultBinder
}

func NewCustomBinder() *CustomBinder {
	return &CustomBinder{}
}

func (b *CustomBinder) Bind(i interface{}, c echo.Context) error {
	if err := b.defaults.BindPathParams(c, i); err != nil {
		return err
	}
	if err := b.defaults.BindQueryParams(c, i); err != nil {
		return err
	}

	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
		return b.defaults.BindBody(c, i)
	}
	return nil
}
