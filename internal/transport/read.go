package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/service"
	"github.com/beanbocchi/cumulus/pkg/response"
)

type RetrieveRequest struct {
	Key       string      `param:"key" validate:"required"`
	VersionID null.String `query:"version_identifier" validate:"omitnil,min=1"`
	Action    null.String `query:"action" validate:"omitnil,oneof=meta"`
}

// Retrieve serves GET and HEAD for a single key. GET with action=meta
// returns the version metadata as a JSON document instead of the content.
func (h *Handler) Retrieve(c echo.Context) error {
	collection, err := h.authorize(c, model.Read)
	if err != nil {
		return h.writeError(c, err)
	}

	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	params := service.RetrieveParams{
		CollectionID:      collection.ID,
		Key:               req.Key,
		VersionID:         req.VersionID,
		RangeHeader:       c.Request().Header.Get("Range"),
		IfModifiedSince:   c.Request().Header.Get("If-Modified-Since"),
		IfUnmodifiedSince: c.Request().Header.Get("If-Unmodified-Since"),
	}

	if c.Request().Method == http.MethodHead {
		// ranges apply to GET only; HEAD always describes the whole version
		params.RangeHeader = ""
		return h.describeHead(c, params)
	}
	if req.Action.ValueOrZero() == "meta" {
		meta, err := h.svc.Describe(c.Request().Context(), params)
		if err != nil {
			return h.writeError(c, err)
		}
		return response.FromDTO(c.Response().Writer, http.StatusOK, meta)
	}

	return h.stream(c, params)
}

func (h *Handler) describeHead(c echo.Context, params service.RetrieveParams) error {
	meta, err := h.svc.Describe(c.Request().Context(), params)
	if err != nil {
		// a HEAD response has no body; the status alone carries the failure
		c.Response().Header().Set("Connection", "close")
		return c.NoContent(statusOf(model.KindOf(err)))
	}

	res := c.Response()
	setObjectHeaders(res.Header(), meta)
	res.Header().Set("Connection", "close")
	if meta.Partial {
		return c.NoContent(http.StatusPartialContent)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) stream(c echo.Context, params service.RetrieveParams) error {
	ctx := c.Request().Context()
	meta, stm, err := h.svc.Retrieve(ctx, params)
	if err != nil {
		return h.writeError(c, err)
	}
	defer stm.Close()

	res := c.Response()
	setObjectHeaders(res.Header(), meta)
	if meta.Partial {
		res.WriteHeader(http.StatusPartialContent)
	} else {
		res.WriteHeader(http.StatusOK)
	}

	for {
		chunk, err := stm.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// headers are out; the interrupted body is the only signal left
			return err
		}
		if _, err := res.Write(chunk); err != nil {
			return err
		}
		res.Flush()
	}
	return nil
}

func setObjectHeaders(header http.Header, meta service.Metadata) {
	header.Set(echo.HeaderContentType, meta.ContentType)
	header.Set(echo.HeaderContentLength, strconv.FormatInt(meta.ContentLength, 10))
	header.Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
	header.Set("X-Version-Identifier", meta.VersionID)
	header.Set("Accept-Ranges", "bytes")
	if meta.Partial {
		header.Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", meta.RangeStart, meta.RangeEnd, meta.TotalSize))
	}
}
