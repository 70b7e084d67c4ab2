package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/stream"
)

const defaultContentType = "application/octet-stream"

var (
	errKeyNotFound  = model.NewError(model.KindNotFound, "retrieve.not_found", "key %q not found")
	errNotModified  = model.NewError(model.KindNotModified, "retrieve.not_modified", "not modified")
	errPrecondition = model.NewError(model.KindPreconditionFailed, "retrieve.precondition", "precondition failed")
)

type RetrieveParams struct {
	CollectionID      int64
	Key               string
	VersionID         null.String
	RangeHeader       string
	IfModifiedSince   string
	IfUnmodifiedSince string
}

// Metadata describes the response for one resolved object version, full or
// ranged.
type Metadata struct {
	Key           string    `json:"key"`
	VersionID     string    `json:"version_identifier"`
	TotalSize     int64     `json:"total_size"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
	ContentType   string    `json:"content_type"`

	Partial    bool  `json:"-"`
	RangeStart int64 `json:"-"`
	RangeEnd   int64 `json:"-"` // inclusive
}

// resolveVersion picks the target object version: the explicit version when
// given, else the key's current live version.
func (s *Service) resolveVersion(ctx context.Context, params RetrieveParams) (db.ObjectVersion, error) {
	if params.VersionID.Valid {
		unifiedID, err := s.ids.InternalID(params.VersionID.String)
		if err != nil {
			return db.ObjectVersion{}, err
		}
		version, err := s.storage.GetObjectVersion(ctx, db.GetObjectVersionParams{
			CollectionID: params.CollectionID,
			Key:          params.Key,
			UnifiedID:    unifiedID,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ObjectVersion{}, errKeyNotFound.Fmt(params.Key)
			}
			return db.ObjectVersion{}, fmt.Errorf("get object version: %w", err)
		}
		return version, nil
	}

	version, err := s.storage.GetCurrentObjectVersion(ctx, db.GetCurrentObjectVersionParams{
		CollectionID: params.CollectionID,
		Key:          params.Key,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.ObjectVersion{}, errKeyNotFound.Fmt(params.Key)
		}
		return db.ObjectVersion{}, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

// describe resolves the version, derives its metadata from the segment
// status rows and applies the range and conditional headers.
func (s *Service) describe(ctx context.Context, params RetrieveParams) (Metadata, db.ObjectVersion, byteRange, error) {
	version, err := s.resolveVersion(ctx, params)
	if err != nil {
		return Metadata{}, db.ObjectVersion{}, byteRange{}, err
	}

	status, err := s.storage.GetVersionStatus(ctx, version.UnifiedID)
	if err != nil {
		// A version without resolvable status rows is indistinguishable from
		// a missing one: metadata never resolves partially.
		if errors.Is(err, sql.ErrNoRows) {
			return Metadata{}, db.ObjectVersion{}, byteRange{}, errKeyNotFound.Fmt(params.Key)
		}
		return Metadata{}, db.ObjectVersion{}, byteRange{}, fmt.Errorf("get version status: %w", err)
	}

	rng, err := parseByteRange(params.RangeHeader)
	if err != nil {
		return Metadata{}, db.ObjectVersion{}, byteRange{}, err
	}

	lastModified := nanosToTime(status.LastModified)

	modifiedSince, err := parseConditionalTime(params.IfModifiedSince)
	if err != nil {
		return Metadata{}, db.ObjectVersion{}, byteRange{}, err
	}
	if !modifiedSince.IsZero() && lastModified.Before(modifiedSince) {
		return Metadata{}, db.ObjectVersion{}, byteRange{}, errNotModified
	}

	unmodifiedSince, err := parseConditionalTime(params.IfUnmodifiedSince)
	if err != nil {
		return Metadata{}, db.ObjectVersion{}, byteRange{}, err
	}
	if !unmodifiedSince.IsZero() && lastModified.After(unmodifiedSince) {
		return Metadata{}, db.ObjectVersion{}, byteRange{}, errPrecondition
	}

	meta := Metadata{
		Key:           params.Key,
		VersionID:     s.ids.PublicID(version.UnifiedID),
		TotalSize:     status.TotalSize,
		ContentLength: status.TotalSize,
		LastModified:  lastModified,
		ContentType:   contentTypeForKey(params.Key),
	}

	if params.RangeHeader != "" {
		meta.Partial = true
		meta.RangeStart = rng.offset

		// The upper bound never extends past the object: the stream clips
		// there, so the declared length must too.
		end := status.TotalSize - 1
		if rng.size != readToEnd && rng.offset+rng.size-1 < end {
			end = rng.offset + rng.size - 1
		}
		meta.RangeEnd = end
		meta.ContentLength = end - rng.offset + 1
		if meta.ContentLength < 0 {
			// range starts at or past the object end; nothing to serve
			meta.ContentLength = 0
		}
	}

	return meta, version, rng, nil
}

// Describe serves HEAD and action=meta requests: metadata only, same
// conditional semantics, no body.
func (s *Service) Describe(ctx context.Context, params RetrieveParams) (Metadata, error) {
	meta, _, _, err := s.describe(ctx, params)
	if err != nil {
		return Metadata{}, s.recordUnexpected("describe", err)
	}
	return meta, nil
}

// Retrieve resolves an object version and returns its metadata plus a lazily
// produced byte stream over the requested range. The caller owns the stream
// and must close it.
func (s *Service) Retrieve(ctx context.Context, params RetrieveParams) (Metadata, *stream.Stream, error) {
	meta, version, rng, err := s.describe(ctx, params)
	if err != nil {
		return Metadata{}, nil, s.recordUnexpected("retrieve", err)
	}

	segmentRows, err := s.storage.ListSegments(ctx, version.UnifiedID)
	if err != nil {
		return Metadata{}, nil, s.recordUnexpected("retrieve", fmt.Errorf("list segments: %w", err))
	}

	segments := make([]stream.Segment, 0, len(segmentRows))
	for _, row := range segmentRows {
		segments = append(segments, stream.Segment{
			Location: row.Location,
			Offset:   row.SegOffset,
			Size:     row.Size,
		})
	}

	// Best-effort usage report; retrieval never fails on accounting.
	depCtx, cancel := s.depContext(ctx)
	if err := s.accounting.RetrievedBytes(depCtx, params.CollectionID, meta.ContentLength); err != nil {
		slog.Debug("failed to report retrieved bytes", "error", err)
	}
	cancel()

	return meta, stream.New(s.segments, segments, rng.offset, rng.size), nil
}

// recordUnexpected reports genuinely unexpected failures to the fault
// tracker before they propagate. Failures already classified by the taxonomy
// pass through untouched.
func (s *Service) recordUnexpected(class string, err error) error {
	if err == nil {
		return nil
	}
	if model.KindOf(err) != model.KindInternal {
		return err
	}
	s.faults.Exception(class, err.Error())
	return err
}

func contentTypeForKey(key string) string {
	ext := filepath.Ext(key)
	if ext == "" {
		return defaultContentType
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return defaultContentType
}
