package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
	"github.com/beanbocchi/cumulus/internal/utils/blake3"
	"github.com/beanbocchi/cumulus/internal/utils/ioutil"
)

var (
	errDeleteNotFound = model.NewError(model.KindNotFound, "delete.not_found", "key %q has no live versions")
	errPartConflict   = model.NewError(model.KindConflict, "conjoined.part_exists", "part %d already uploaded for archive %s")
)

type ArchiveParams struct {
	CollectionID int64
	Key          string
	Body         io.Reader

	// ConjoinedID routes the body into an active conjoined archive as part
	// ConjoinedPart instead of creating a standalone version.
	ConjoinedID   null.String
	ConjoinedPart null.Int32
}

type ArchiveResult struct {
	Key       string `json:"key"`
	VersionID string `json:"version_identifier"`
	Size      int64  `json:"size"`
}

type storedSegment struct {
	sequenceNo int64
	offset     int64
	size       int64
	hash       string
}

// ArchiveKey stores a request body as a new object version, or as one part
// of an active conjoined archive.
func (s *Service) ArchiveKey(ctx context.Context, params ArchiveParams) (ArchiveResult, error) {
	result, err := s.archiveKey(ctx, params)
	return result, s.recordUnexpected("archive", err)
}

func (s *Service) archiveKey(ctx context.Context, params ArchiveParams) (ArchiveResult, error) {
	if params.ConjoinedID.Valid {
		return s.archiveConjoinedPart(ctx, params)
	}

	unifiedID := s.idFactory.Next()
	now := time.Now().UnixNano()

	sized := ioutil.NewSizeReader(params.Body)
	segments, err := s.storeSegments(ctx, unifiedID, sized)
	if err != nil {
		return ArchiveResult{}, err
	}

	tx, err := s.storage.BeginTx()
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.CreateObjectVersion(ctx, db.CreateObjectVersionParams{
		UnifiedID:    unifiedID,
		CollectionID: params.CollectionID,
		Key:          params.Key,
		Timestamp:    now,
		Finalized:    false,
	}); err != nil {
		return ArchiveResult{}, fmt.Errorf("create version: %w", err)
	}

	for _, seg := range segments {
		if err := tx.CreateSegment(ctx, db.CreateSegmentParams{
			VersionUnifiedID: unifiedID,
			SequenceNo:       seg.sequenceNo,
			SegOffset:        seg.offset,
			Size:             seg.size,
			Location:         segmentLocation(unifiedID, seg.sequenceNo),
			Hash:             seg.hash,
			Timestamp:        now,
		}); err != nil {
			return ArchiveResult{}, fmt.Errorf("create segment: %w", err)
		}
	}

	if err := tx.FinalizeObjectVersion(ctx, db.FinalizeObjectVersionParams{
		UnifiedID: unifiedID,
		FileSize:  sized.Size,
		Timestamp: now,
	}); err != nil {
		return ArchiveResult{}, fmt.Errorf("finalize version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ArchiveResult{}, fmt.Errorf("commit: %w", err)
	}

	s.reportAddedBytes(ctx, params.CollectionID, sized.Size)

	return ArchiveResult{
		Key:       params.Key,
		VersionID: s.ids.PublicID(unifiedID),
		Size:      sized.Size,
	}, nil
}

// storeSegments splits a body into segment-sized pieces, hashing each while
// it streams to the segment store. At least one segment is always stored so
// empty objects still carry status rows.
func (s *Service) storeSegments(ctx context.Context, versionUnifiedID int64, body io.Reader) ([]storedSegment, error) {
	var segments []storedSegment
	var offset int64

	for sequenceNo := int64(1); ; sequenceNo++ {
		piece := blake3.NewTee(io.LimitReader(body, s.segmentSize))

		location := segmentLocation(versionUnifiedID, sequenceNo)
		written, err := s.segments.Store(ctx, location, piece)
		if err != nil {
			return nil, fmt.Errorf("store segment %s: %w", location, err)
		}

		if written == 0 && sequenceNo > 1 {
			// the body ended exactly on a segment boundary
			if err := s.segments.Delete(ctx, location); err != nil {
				slog.Warn("failed to remove empty trailing segment", "location", location, "error", err)
			}
			break
		}

		segments = append(segments, storedSegment{
			sequenceNo: sequenceNo,
			offset:     offset,
			size:       written,
			hash:       piece.Sum(),
		})
		offset += written

		if written < s.segmentSize {
			break
		}
	}

	return segments, nil
}

// archiveConjoinedPart appends one part to an active conjoined archive.
// Offsets are assigned when the archive finishes, so parts may arrive in any
// order.
func (s *Service) archiveConjoinedPart(ctx context.Context, params ArchiveParams) (ArchiveResult, error) {
	if !params.ConjoinedPart.Valid || params.ConjoinedPart.Int32 < 1 {
		return ArchiveResult{}, model.NewError(model.KindInvalidRequest, "conjoined.part", "conjoined part number is required")
	}

	archive, version, err := s.activeArchive(ctx, params.CollectionID, params.ConjoinedID.String)
	if err != nil {
		return ArchiveResult{}, err
	}

	sequenceNo := int64(params.ConjoinedPart.Int32)
	now := time.Now().UnixNano()

	part := blake3.NewTee(params.Body)

	location := segmentLocation(version.UnifiedID, sequenceNo)
	written, err := s.segments.Store(ctx, location, part)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("store part %s: %w", location, err)
	}

	if err := s.storage.CreateSegment(ctx, db.CreateSegmentParams{
		VersionUnifiedID: version.UnifiedID,
		SequenceNo:       sequenceNo,
		SegOffset:        0,
		Size:             written,
		Location:         location,
		Hash:             part.Sum(),
		Timestamp:        now,
	}); err != nil {
		// the segments primary key makes duplicate part uploads a conflict
		return ArchiveResult{}, errPartConflict.Fmt(sequenceNo, params.ConjoinedID.String)
	}

	s.reportAddedBytes(ctx, params.CollectionID, written)

	return ArchiveResult{
		Key:       archive.Key,
		VersionID: s.ids.PublicID(version.UnifiedID),
		Size:      written,
	}, nil
}

// DeleteKey retires every live version of a key.
func (s *Service) DeleteKey(ctx context.Context, collectionID int64, key string) error {
	affected, err := s.storage.TombstoneKey(ctx, db.TombstoneKeyParams{
		CollectionID: collectionID,
		Key:          key,
	})
	if err != nil {
		return s.recordUnexpected("delete", fmt.Errorf("tombstone key: %w", err))
	}
	if affected == 0 {
		return errDeleteNotFound.Fmt(key)
	}
	return nil
}

// activeArchive resolves a public conjoined identifier to its archive row
// and assembling version, requiring the archive to still be active.
func (s *Service) activeArchive(ctx context.Context, collectionID int64, publicID string) (db.ConjoinedArchive, db.ObjectVersion, error) {
	unifiedID, err := s.ids.InternalID(publicID)
	if err != nil {
		return db.ConjoinedArchive{}, db.ObjectVersion{}, err
	}

	archive, err := s.storage.GetConjoinedArchive(ctx, db.GetConjoinedArchiveParams{
		UnifiedID:    unifiedID,
		CollectionID: collectionID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.ConjoinedArchive{}, db.ObjectVersion{}, errConjoinedNotFound.Fmt(publicID)
		}
		return db.ConjoinedArchive{}, db.ObjectVersion{}, fmt.Errorf("get conjoined archive: %w", err)
	}

	if archive.State() != db.ConjoinedActive {
		return db.ConjoinedArchive{}, db.ObjectVersion{}, errConjoinedTerminal.Fmt(publicID, archive.State())
	}

	version, err := s.storage.GetVersionByConjoinedID(ctx, unifiedID)
	if err != nil {
		return db.ConjoinedArchive{}, db.ObjectVersion{}, fmt.Errorf("get conjoined version: %w", err)
	}

	return archive, version, nil
}

// reportAddedBytes tells accounting about stored bytes, best-effort.
func (s *Service) reportAddedBytes(ctx context.Context, collectionID, n int64) {
	depCtx, cancel := s.depContext(ctx)
	defer cancel()
	if err := s.accounting.AddedBytes(depCtx, collectionID, n); err != nil {
		slog.Debug("failed to report added bytes", "error", err)
	}
}
