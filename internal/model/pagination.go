package model

import (
	"github.com/guregu/null/v6"
)

const defaultPageSize = 1000

// MarkerParams is the pagination shape shared by the listing endpoints:
// exclusive lower-bound markers plus a page size cap.
type MarkerParams struct {
	Prefix    null.String `query:"prefix" validate:"omitnil"`
	Delimiter null.String `query:"delimiter" validate:"omitnil,max=1"`
	KeyMarker null.String `query:"key_marker" validate:"omitnil"`
}

// PageSize clamps a requested max_* parameter to [1, defaultPageSize].
func PageSize(requested null.Int32) int32 {
	if !requested.Valid || requested.Int32 <= 0 {
		return defaultPageSize
	}
	if requested.Int32 > defaultPageSize {
		return defaultPageSize
	}
	return requested.Int32
}

// Page is a marker-paginated result set.
type Page[T any] struct {
	Data      []T  `json:"data"`
	Truncated bool `json:"truncated"`
}
