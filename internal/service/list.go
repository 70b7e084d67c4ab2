package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
)

type ListKeysParams struct {
	CollectionID int64
	Markers      model.MarkerParams
	MaxCount     null.Int32
}

// KeyItem is one distinct key in a key listing, described by its current
// version.
type KeyItem struct {
	Key          string    `json:"key"`
	VersionID    string    `json:"version_identifier"`
	Timestamp    time.Time `json:"timestamp"`
	FileSize     int64     `json:"file_size"`
	CommonPrefix bool      `json:"common_prefix,omitempty"`
}

// ListKeys pages through the distinct live keys of a collection. With a
// delimiter, keys sharing a prefix up to the first delimiter past the
// requested prefix collapse into a single common-prefix entry, the way a
// flat namespace emulates directories.
func (s *Service) ListKeys(ctx context.Context, params ListKeysParams) (model.Page[KeyItem], error) {
	limit := int64(model.PageSize(params.MaxCount))
	prefix := params.Markers.Prefix.ValueOrZero()
	delimiter := params.Markers.Delimiter.ValueOrZero()
	marker := params.Markers.KeyMarker.ValueOrZero()

	items := make([]KeyItem, 0, limit)
	var truncated bool

	// a delimiter page can collapse many rows into one entry, so keep
	// fetching row pages until the result page fills or the rows run out
	for {
		rows, err := s.storage.ListKeys(ctx, db.ListKeysParams{
			CollectionID: params.CollectionID,
			Prefix:       prefix,
			KeyMarker:    marker,
			Limit:        limit + 1,
		})
		if err != nil {
			return model.Page[KeyItem]{}, s.recordUnexpected("list", fmt.Errorf("list keys: %w", err))
		}

		morePages := int64(len(rows)) > limit
		if morePages {
			rows = rows[:limit]
		}

		for _, row := range rows {
			marker = row.Key
			item, rolled := s.keyItem(row, prefix, delimiter)
			if rolled && len(items) > 0 && items[len(items)-1].Key == item.Key {
				continue
			}
			if int64(len(items)) == limit {
				truncated = true
				break
			}
			items = append(items, item)
		}

		if truncated || !morePages || delimiter == "" {
			truncated = truncated || (morePages && delimiter == "")
			break
		}
	}

	return model.Page[KeyItem]{Data: items, Truncated: truncated}, nil
}

func (s *Service) keyItem(row db.KeyEntry, prefix, delimiter string) (KeyItem, bool) {
	if delimiter != "" {
		rest := strings.TrimPrefix(row.Key, prefix)
		if i := strings.Index(rest, delimiter); i >= 0 {
			return KeyItem{
				Key:          prefix + rest[:i+len(delimiter)],
				CommonPrefix: true,
			}, true
		}
	}
	return KeyItem{
		Key:       row.Key,
		VersionID: s.ids.PublicID(row.UnifiedID),
		Timestamp: nanosToTime(row.Timestamp),
		FileSize:  row.FileSize,
	}, false
}

type ListVersionsParams struct {
	CollectionID  int64
	Markers       model.MarkerParams
	VersionMarker null.String
	MaxCount      null.Int32
}

// VersionItem is one finalized version in a version listing.
type VersionItem struct {
	Key       string    `json:"key"`
	VersionID string    `json:"version_identifier"`
	Timestamp time.Time `json:"timestamp"`
	FileSize  int64     `json:"file_size"`
	Conjoined bool      `json:"conjoined,omitempty"`
}

// ListVersions pages through every finalized, non-tombstoned version of a
// collection in (key, version) order. The version marker only narrows the
// page when a key marker accompanies it.
func (s *Service) ListVersions(ctx context.Context, params ListVersionsParams) (model.Page[VersionItem], error) {
	var versionMarker int64
	if params.VersionMarker.Valid {
		var err error
		versionMarker, err = s.ids.InternalID(params.VersionMarker.String)
		if err != nil {
			return model.Page[VersionItem]{}, err
		}
	}

	limit := int64(model.PageSize(params.MaxCount))
	rows, err := s.storage.ListVersions(ctx, db.ListVersionsParams{
		CollectionID:  params.CollectionID,
		Prefix:        params.Markers.Prefix.ValueOrZero(),
		KeyMarker:     params.Markers.KeyMarker.ValueOrZero(),
		VersionMarker: versionMarker,
		Limit:         limit + 1,
	})
	if err != nil {
		return model.Page[VersionItem]{}, s.recordUnexpected("list", fmt.Errorf("list versions: %w", err))
	}

	truncated := int64(len(rows)) > limit
	if truncated {
		rows = rows[:limit]
	}

	items := make([]VersionItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, VersionItem{
			Key:       row.Key,
			VersionID: s.ids.PublicID(row.UnifiedID),
			Timestamp: nanosToTime(row.Timestamp),
			FileSize:  row.FileSize,
			Conjoined: row.ConjoinedID.Valid,
		})
	}
	return model.Page[VersionItem]{Data: items, Truncated: truncated}, nil
}
