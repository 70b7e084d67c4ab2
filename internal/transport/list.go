package transport

import (
	"net/http"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/service"
	"github.com/beanbocchi/cumulus/pkg/response"
)

type ListKeysRequest struct {
	model.MarkerParams
	MaxKeys null.Int32 `query:"max_keys" validate:"omitnil,min=1"`
}

func (h *Handler) ListKeys(c echo.Context) error {
	collection, err := h.authorize(c, model.List)
	if err != nil {
		return h.writeError(c, err)
	}

	var req ListKeysRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	page, err := h.svc.ListKeys(c.Request().Context(), service.ListKeysParams{
		CollectionID: collection.ID,
		Markers:      req.MarkerParams,
		MaxCount:     req.MaxKeys,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, page)
}

type ListVersionsRequest struct {
	model.MarkerParams
	VersionMarker null.String `query:"version_marker" validate:"omitnil,min=1"`
	MaxVersions   null.Int32  `query:"max_versions" validate:"omitnil,min=1"`
}

func (h *Handler) ListVersions(c echo.Context) error {
	collection, err := h.authorize(c, model.List)
	if err != nil {
		return h.writeError(c, err)
	}

	var req ListVersionsRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	page, err := h.svc.ListVersions(c.Request().Context(), service.ListVersionsParams{
		CollectionID:  collection.ID,
		Markers:       req.MarkerParams,
		VersionMarker: req.VersionMarker,
		MaxCount:      req.MaxVersions,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, page)
}

type ListConjoinedRequest struct {
	KeyMarker   null.String `query:"key_marker" validate:"omitnil"`
	IDMarker    null.String `query:"conjoined_identifier_marker" validate:"omitnil,min=1"`
	MaxArchives null.Int32  `query:"max_conjoined" validate:"omitnil,min=1"`
}

func (h *Handler) ListConjoined(c echo.Context) error {
	collection, err := h.authorize(c, model.List)
	if err != nil {
		return h.writeError(c, err)
	}

	var req ListConjoinedRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	page, err := h.svc.ListConjoined(c.Request().Context(), service.ListConjoinedParams{
		CollectionID: collection.ID,
		MaxCount:     req.MaxArchives,
		KeyMarker:    req.KeyMarker,
		IDMarker:     req.IDMarker,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, page)
}

type ListPartsRequest struct {
	Key         string `param:"key" validate:"required"`
	ConjoinedID string `query:"conjoined_identifier" validate:"required"`
}

func (h *Handler) ListConjoinedParts(c echo.Context) error {
	collection, err := h.authorize(c, model.List)
	if err != nil {
		return h.writeError(c, err)
	}

	var req ListPartsRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	parts, err := h.svc.ListConjoinedParts(c.Request().Context(), collection.ID, req.Key, req.ConjoinedID)
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, parts)
}

func (h *Handler) Usage(c echo.Context) error {
	collection, err := h.authorize(c, model.List)
	if err != nil {
		return h.writeError(c, err)
	}

	report, err := h.svc.Usage(c.Request().Context(), collection.ID)
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, report)
}
