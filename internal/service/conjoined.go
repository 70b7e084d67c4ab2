package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/guregu/null/v6"

	"github.com/beanbocchi/cumulus/internal/db"
	"github.com/beanbocchi/cumulus/internal/model"
)

var (
	errConjoinedNotFound = model.NewError(model.KindNotFound, "conjoined.not_found", "conjoined archive %s not found")
	errConjoinedTerminal = model.NewError(model.KindConflict, "conjoined.terminal", "conjoined archive %s is already %s")
)

// ConjoinedEntry is the boundary-facing view of an archive. It carries the
// public identifier, never the raw unified one.
type ConjoinedEntry struct {
	ConjoinedID     string     `json:"conjoined_identifier"`
	Key             string     `json:"key"`
	State           string     `json:"state"`
	CreateTimestamp time.Time  `json:"create_timestamp"`
	CompleteTime    *time.Time `json:"complete_timestamp,omitempty"`
	AbortTime       *time.Time `json:"abort_timestamp,omitempty"`
}

func (s *Service) conjoinedEntry(archive db.ConjoinedArchive) ConjoinedEntry {
	entry := ConjoinedEntry{
		ConjoinedID:     s.ids.PublicID(archive.UnifiedID),
		Key:             archive.Key,
		State:           archive.State(),
		CreateTimestamp: nanosToTime(archive.CreateTimestamp),
	}
	if archive.CompleteTimestamp.Valid {
		entry.CompleteTime = ptr.Time(nanosToTime(archive.CompleteTimestamp.Int64))
	}
	if archive.AbortTimestamp.Valid {
		entry.AbortTime = ptr.Time(nanosToTime(archive.AbortTimestamp.Int64))
	}
	return entry
}

// StartConjoined opens a new active conjoined archive for a key, together
// with the unfinalized version its parts assemble into.
func (s *Service) StartConjoined(ctx context.Context, collectionID int64, key string) (ConjoinedEntry, error) {
	archiveID := s.idFactory.Next()
	versionID := s.idFactory.Next()
	now := time.Now().UnixNano()

	tx, err := s.storage.BeginTx()
	if err != nil {
		return ConjoinedEntry{}, s.recordUnexpected("conjoined", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := tx.CreateConjoinedArchive(ctx, db.CreateConjoinedArchiveParams{
		UnifiedID:       archiveID,
		CollectionID:    collectionID,
		Key:             key,
		CreateTimestamp: now,
	}); err != nil {
		return ConjoinedEntry{}, s.recordUnexpected("conjoined", fmt.Errorf("create archive: %w", err))
	}

	if err := tx.CreateObjectVersion(ctx, db.CreateObjectVersionParams{
		UnifiedID:    versionID,
		CollectionID: collectionID,
		Key:          key,
		Timestamp:    now,
		ConjoinedID:  null.IntFrom(archiveID),
		Finalized:    false,
	}); err != nil {
		return ConjoinedEntry{}, s.recordUnexpected("conjoined", fmt.Errorf("create version: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return ConjoinedEntry{}, s.recordUnexpected("conjoined", fmt.Errorf("commit: %w", err))
	}

	return ConjoinedEntry{
		ConjoinedID:     s.ids.PublicID(archiveID),
		Key:             key,
		State:           db.ConjoinedActive,
		CreateTimestamp: nanosToTime(now),
	}, nil
}

// FinishConjoined moves an archive from active to completed and finalizes
// its version: parts get contiguous offsets in sequence order and the
// version becomes the key's live one. Finishing a non-active archive is a
// conflict, not a no-op.
func (s *Service) FinishConjoined(ctx context.Context, collectionID int64, publicID string) (ConjoinedEntry, error) {
	entry, err := s.finishConjoined(ctx, collectionID, publicID)
	return entry, s.recordUnexpected("conjoined", err)
}

func (s *Service) finishConjoined(ctx context.Context, collectionID int64, publicID string) (ConjoinedEntry, error) {
	unifiedID, err := s.ids.InternalID(publicID)
	if err != nil {
		return ConjoinedEntry{}, err
	}
	now := time.Now().UnixNano()

	tx, err := s.storage.BeginTx()
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	affected, err := tx.CompleteConjoinedArchive(ctx, db.TerminateConjoinedArchiveParams{
		UnifiedID: unifiedID,
		Timestamp: now,
	})
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("complete archive: %w", err)
	}
	if affected == 0 {
		return ConjoinedEntry{}, s.terminalOrMissing(ctx, collectionID, unifiedID, publicID)
	}

	version, err := tx.GetVersionByConjoinedID(ctx, unifiedID)
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("get conjoined version: %w", err)
	}

	parts, err := tx.ListSegments(ctx, version.UnifiedID)
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("list parts: %w", err)
	}

	// parts may have been uploaded out of order; lay them out contiguously
	// by sequence number now
	var offset int64
	for _, part := range parts {
		if err := tx.SetSegmentOffset(ctx, db.SetSegmentOffsetParams{
			VersionUnifiedID: version.UnifiedID,
			SequenceNo:       part.SequenceNo,
			SegOffset:        offset,
		}); err != nil {
			return ConjoinedEntry{}, fmt.Errorf("place part %d: %w", part.SequenceNo, err)
		}
		offset += part.Size
	}

	if err := tx.FinalizeObjectVersion(ctx, db.FinalizeObjectVersionParams{
		UnifiedID: version.UnifiedID,
		FileSize:  offset,
		Timestamp: now,
	}); err != nil {
		return ConjoinedEntry{}, fmt.Errorf("finalize version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ConjoinedEntry{}, fmt.Errorf("commit: %w", err)
	}

	archive, err := s.storage.GetConjoinedArchive(ctx, db.GetConjoinedArchiveParams{
		UnifiedID:    unifiedID,
		CollectionID: collectionID,
	})
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("reload archive: %w", err)
	}
	return s.conjoinedEntry(archive), nil
}

// AbortConjoined moves an archive from active to aborted. The assembling
// version is tombstoned; the archive itself stays listable.
func (s *Service) AbortConjoined(ctx context.Context, collectionID int64, publicID string) (ConjoinedEntry, error) {
	entry, err := s.abortConjoined(ctx, collectionID, publicID)
	return entry, s.recordUnexpected("conjoined", err)
}

func (s *Service) abortConjoined(ctx context.Context, collectionID int64, publicID string) (ConjoinedEntry, error) {
	unifiedID, err := s.ids.InternalID(publicID)
	if err != nil {
		return ConjoinedEntry{}, err
	}
	now := time.Now().UnixNano()

	tx, err := s.storage.BeginTx()
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	affected, err := tx.AbortConjoinedArchive(ctx, db.TerminateConjoinedArchiveParams{
		UnifiedID: unifiedID,
		Timestamp: now,
	})
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("abort archive: %w", err)
	}
	if affected == 0 {
		return ConjoinedEntry{}, s.terminalOrMissing(ctx, collectionID, unifiedID, publicID)
	}

	version, err := tx.GetVersionByConjoinedID(ctx, unifiedID)
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("get conjoined version: %w", err)
	}
	if err := tx.TombstoneVersion(ctx, version.UnifiedID); err != nil {
		return ConjoinedEntry{}, fmt.Errorf("tombstone version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ConjoinedEntry{}, fmt.Errorf("commit: %w", err)
	}

	archive, err := s.storage.GetConjoinedArchive(ctx, db.GetConjoinedArchiveParams{
		UnifiedID:    unifiedID,
		CollectionID: collectionID,
	})
	if err != nil {
		return ConjoinedEntry{}, fmt.Errorf("reload archive: %w", err)
	}
	return s.conjoinedEntry(archive), nil
}

// terminalOrMissing distinguishes the two reasons a guarded transition can
// touch zero rows.
func (s *Service) terminalOrMissing(ctx context.Context, collectionID, unifiedID int64, publicID string) error {
	archive, err := s.storage.GetConjoinedArchive(ctx, db.GetConjoinedArchiveParams{
		UnifiedID:    unifiedID,
		CollectionID: collectionID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errConjoinedNotFound.Fmt(publicID)
		}
		return fmt.Errorf("get conjoined archive: %w", err)
	}
	return errConjoinedTerminal.Fmt(publicID, archive.State())
}

type ListConjoinedParams struct {
	CollectionID int64
	MaxCount     null.Int32
	KeyMarker    null.String
	IDMarker     null.String
}

// ListConjoined pages through a collection's archives in unified-ID order.
// Markers are exclusive lower bounds; terminal archives stay listed.
func (s *Service) ListConjoined(ctx context.Context, params ListConjoinedParams) (model.Page[ConjoinedEntry], error) {
	var idMarker int64
	if params.IDMarker.Valid {
		var err error
		idMarker, err = s.ids.InternalID(params.IDMarker.String)
		if err != nil {
			return model.Page[ConjoinedEntry]{}, err
		}
	}

	limit := int64(model.PageSize(params.MaxCount))
	rows, err := s.storage.ListConjoinedArchives(ctx, db.ListConjoinedArchivesParams{
		CollectionID: params.CollectionID,
		IDMarker:     idMarker,
		KeyMarker:    params.KeyMarker.ValueOrZero(),
		Limit:        limit + 1,
	})
	if err != nil {
		return model.Page[ConjoinedEntry]{}, s.recordUnexpected("conjoined", fmt.Errorf("list archives: %w", err))
	}

	truncated := int64(len(rows)) > limit
	if truncated {
		rows = rows[:limit]
	}

	entries := make([]ConjoinedEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, s.conjoinedEntry(row))
	}
	return model.Page[ConjoinedEntry]{Data: entries, Truncated: truncated}, nil
}

// PartEntry is one in-progress part of an active conjoined archive.
type PartEntry struct {
	PartNumber int64     `json:"part_number"`
	Size       int64     `json:"size"`
	Hash       string    `json:"hash"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListConjoinedParts lists the uploaded parts of one active archive in part
// order.
func (s *Service) ListConjoinedParts(ctx context.Context, collectionID int64, key, publicID string) ([]PartEntry, error) {
	_, version, err := s.activeArchive(ctx, collectionID, publicID)
	if err != nil {
		return nil, s.recordUnexpected("conjoined", err)
	}
	if version.Key != key {
		return nil, errConjoinedNotFound.Fmt(publicID)
	}

	parts, err := s.storage.ListSegments(ctx, version.UnifiedID)
	if err != nil {
		return nil, s.recordUnexpected("conjoined", fmt.Errorf("list parts: %w", err))
	}

	entries := make([]PartEntry, 0, len(parts))
	for _, part := range parts {
		entries = append(entries, PartEntry{
			PartNumber: part.SequenceNo,
			Size:       part.Size,
			Hash:       part.Hash,
			Timestamp:  nanosToTime(part.Timestamp),
		})
	}
	return entries, nil
}
