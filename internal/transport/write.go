package transport

import (
	"net/http"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/service"
	"github.com/beanbocchi/cumulus/pkg/response"
)

var errUnknownAction = model.NewError(model.KindInvalidRequest, "action.unknown", "unknown action %q")

// writeAction pairs one writer action with the access level it demands.
// The tables are built once per Handler, keyed by the action query value.
type writeAction struct {
	level  model.AccessLevel
	handle func(*Handler, echo.Context, db.Collection, string) error
}

func dataActions() map[string]writeAction {
	return map[string]writeAction{
		"archive": {model.Write, (*Handler).archive},
		"delete":  {model.Delete, (*Handler).delete},
	}
}

func conjoinedActions() map[string]writeAction {
	return map[string]writeAction{
		"start":  {model.Write, (*Handler).startConjoined},
		"finish": {model.Write, (*Handler).finishConjoined},
		"abort":  {model.Write, (*Handler).abortConjoined},
	}
}

// dispatch routes a writer request through an action table: resolve the
// action, authorize at its level, then invoke the handler with the bound
// collection and key.
func (h *Handler) dispatch(c echo.Context, actions map[string]writeAction, fallback string) error {
	name := c.QueryParam("action")
	if name == "" {
		name = fallback
	}
	action, ok := actions[name]
	if !ok {
		return h.writeError(c, errUnknownAction.Fmt(name))
	}

	collection, err := h.authorize(c, action.level)
	if err != nil {
		return h.writeError(c, err)
	}

	key := c.Param("key")
	if key == "" {
		return h.writeError(c, model.NewError(model.KindInvalidRequest, "key.required", "key is required"))
	}
	return action.handle(h, c, collection, key)
}

func (h *Handler) WriteData(c echo.Context) error {
	return h.dispatch(c, h.dataActions, "archive")
}

func (h *Handler) WriteConjoined(c echo.Context) error {
	return h.dispatch(c, h.conjoinedActions, "")
}

type ArchiveRequest struct {
	ConjoinedID   null.String `query:"conjoined_identifier" validate:"omitnil,min=1"`
	ConjoinedPart null.Int32  `query:"conjoined_part" validate:"omitnil,min=1"`
}

func (h *Handler) archive(c echo.Context, collection db.Collection, key string) error {
	var req ArchiveRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	result, err := h.svc.ArchiveKey(c.Request().Context(), service.ArchiveParams{
		CollectionID:  collection.ID,
		Key:           key,
		Body:          c.Request().Body,
		ConjoinedID:   req.ConjoinedID,
		ConjoinedPart: req.ConjoinedPart,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, result)
}

func (h *Handler) delete(c echo.Context, collection db.Collection, key string) error {
	if err := h.svc.DeleteKey(c.Request().Context(), collection.ID, key); err != nil {
		return h.writeError(c, err)
	}
	return response.FromMessage(c.Response().Writer, http.StatusOK, "deleted")
}

func (h *Handler) startConjoined(c echo.Context, collection db.Collection, key string) error {
	entry, err := h.svc.StartConjoined(c.Request().Context(), collection.ID, key)
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusCreated, entry)
}

type ConjoinedActionRequest struct {
	ConjoinedID string `query:"conjoined_identifier" validate:"required"`
}

func (h *Handler) finishConjoined(c echo.Context, collection db.Collection, key string) error {
	var req ConjoinedActionRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	entry, err := h.svc.FinishConjoined(c.Request().Context(), collection.ID, req.ConjoinedID)
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, entry)
}

func (h *Handler) abortConjoined(c echo.Context, collection db.Collection, key string) error {
	var req ConjoinedActionRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.FromError(c.Response().Writer, http.StatusBadRequest, err)
	}

	entry, err := h.svc.AbortConjoined(c.Request().Context(), collection.ID, req.ConjoinedID)
	if err != nil {
		return h.writeError(c, err)
	}
	return response.FromDTO(c.Response().Writer, http.StatusOK, entry)
}
