package transport

import (
	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/cumulus/internal/access"
	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
)

// passwordHeader carries the collection password for policies that fall
// back to password authentication.
const passwordHeader = "X-Collection-Password"

var (
	errAccessDenied = model.NewError(model.KindForbidden, "access.denied", "access denied: %s")
	errBadDecision  = model.NewError(model.KindInternal, "access.bad_decision", "unrecognized access decision")
	errNameRequired = model.NewError(model.KindInvalidRequest, "access.collection_required", "collection name is required")
)

// authorize resolves the collection named in the path and evaluates its
// access policy for the given level. On success the collection row comes
// back for the handler to work with; any failure has already been shaped
// into a model error for writeError.
func (h *Handler) authorize(c echo.Context, required model.AccessLevel) (db.Collection, error) {
	name := c.Param("collection")
	if name == "" {
		return db.Collection{}, errNameRequired
	}

	collection, err := h.svc.GetCollection(c.Request().Context(), name)
	if err != nil {
		return db.Collection{}, err
	}

	if required == model.NoAccess {
		return collection, nil
	}

	policy, err := access.LoadPolicy(collection.AccessControl)
	if err != nil {
		return db.Collection{}, err
	}

	forwarded := c.Request().Header.Get("X-Forwarded-For")
	if forwarded == "" {
		// no proxy in front; the peer address is the client
		forwarded = c.RealIP()
	}
	sourceIP, err := access.ParseSourceIP(forwarded)
	if err != nil {
		return db.Collection{}, err
	}
	referer, err := access.ParseReferer(c.Request().Header.Get("Referer"))
	if err != nil {
		return db.Collection{}, err
	}

	password := c.Request().Header.Get(passwordHeader)
	decision := access.Evaluate(required, policy, access.Context{
		SourceIP: sourceIP,
		Referer:  referer,
		Password: null.NewString(password, password != ""),
	})

	switch {
	case decision.Granted:
		return collection, nil
	case decision.RequiresSecondaryAuth:
		if err := h.svc.VerifyPassword(collection, password); err != nil {
			return db.Collection{}, err
		}
		return collection, nil
	case decision.Reason != "":
		return db.Collection{}, errAccessDenied.Fmt(decision.Reason)
	default:
		return db.Collection{}, errBadDecision
	}
}
