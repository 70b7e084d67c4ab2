package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/guregu/null/v6"
)

const createObjectVersion = `
INSERT INTO object_versions (unified_id, collection_id, key, timestamp, file_size, conjoined_id, finalized, tombstone)
VALUES (?, ?, ?, ?, 0, ?, ?, 0)
`

type CreateObjectVersionParams struct {
	UnifiedID    int64
	CollectionID int64
	Key          string
	Timestamp    int64
	ConjoinedID  null.Int64
	Finalized    bool
}

func (q *Queries) CreateObjectVersion(ctx context.Context, arg CreateObjectVersionParams) error {
	_, err := q.db.ExecContext(ctx, createObjectVersion,
		arg.UnifiedID, arg.CollectionID, arg.Key, arg.Timestamp, arg.ConjoinedID, arg.Finalized)
	return err
}

const versionColumns = `unified_id, collection_id, key, timestamp, file_size, conjoined_id, finalized, tombstone`

func scanVersion(row interface{ Scan(...any) error }) (ObjectVersion, error) {
	var v ObjectVersion
	err := row.Scan(&v.UnifiedID, &v.CollectionID, &v.Key, &v.Timestamp,
		&v.FileSize, &v.ConjoinedID, &v.Finalized, &v.Tombstone)
	return v, err
}

const getObjectVersion = `
SELECT ` + versionColumns + `
FROM object_versions
WHERE collection_id = ? AND key = ? AND unified_id = ? AND finalized = 1 AND tombstone = 0
`

type GetObjectVersionParams struct {
	CollectionID int64
	Key          string
	UnifiedID    int64
}

func (q *Queries) GetObjectVersion(ctx context.Context, arg GetObjectVersionParams) (ObjectVersion, error) {
	return scanVersion(q.db.QueryRowContext(ctx, getObjectVersion, arg.CollectionID, arg.Key, arg.UnifiedID))
}

const getCurrentObjectVersion = `
SELECT ` + versionColumns + `
FROM object_versions
WHERE collection_id = ? AND key = ? AND finalized = 1 AND tombstone = 0
ORDER BY unified_id DESC
LIMIT 1
`

type GetCurrentObjectVersionParams struct {
	CollectionID int64
	Key          string
}

func (q *Queries) GetCurrentObjectVersion(ctx context.Context, arg GetCurrentObjectVersionParams) (ObjectVersion, error) {
	return scanVersion(q.db.QueryRowContext(ctx, getCurrentObjectVersion, arg.CollectionID, arg.Key))
}

const getVersionByConjoinedID = `
SELECT ` + versionColumns + `
FROM object_versions
WHERE conjoined_id = ?
`

func (q *Queries) GetVersionByConjoinedID(ctx context.Context, conjoinedID int64) (ObjectVersion, error) {
	return scanVersion(q.db.QueryRowContext(ctx, getVersionByConjoinedID, conjoinedID))
}

const finalizeObjectVersion = `
UPDATE object_versions
SET finalized = 1, file_size = ?, timestamp = ?
WHERE unified_id = ?
`

type FinalizeObjectVersionParams struct {
	UnifiedID int64
	FileSize  int64
	Timestamp int64
}

func (q *Queries) FinalizeObjectVersion(ctx context.Context, arg FinalizeObjectVersionParams) error {
	_, err := q.db.ExecContext(ctx, finalizeObjectVersion, arg.FileSize, arg.Timestamp, arg.UnifiedID)
	return err
}

const tombstoneKey = `
UPDATE object_versions
SET tombstone = 1
WHERE collection_id = ? AND key = ? AND finalized = 1 AND tombstone = 0
`

type TombstoneKeyParams struct {
	CollectionID int64
	Key          string
}

// TombstoneKey retires every live version of a key, returning how many rows
// it touched.
func (q *Queries) TombstoneKey(ctx context.Context, arg TombstoneKeyParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, tombstoneKey, arg.CollectionID, arg.Key)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const tombstoneVersion = `
UPDATE object_versions SET tombstone = 1 WHERE unified_id = ?
`

func (q *Queries) TombstoneVersion(ctx context.Context, unifiedID int64) error {
	_, err := q.db.ExecContext(ctx, tombstoneVersion, unifiedID)
	return err
}

const createSegment = `
INSERT INTO segments (version_unified_id, sequence_no, seg_offset, size, location, hash, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreateSegmentParams struct {
	VersionUnifiedID int64
	SequenceNo       int64
	SegOffset        int64
	Size             int64
	Location         string
	Hash             string
	Timestamp        int64
}

func (q *Queries) CreateSegment(ctx context.Context, arg CreateSegmentParams) error {
	_, err := q.db.ExecContext(ctx, createSegment,
		arg.VersionUnifiedID, arg.SequenceNo, arg.SegOffset, arg.Size, arg.Location, arg.Hash, arg.Timestamp)
	return err
}

const listSegments = `
SELECT version_unified_id, sequence_no, seg_offset, size, location, hash, timestamp
FROM segments
WHERE version_unified_id = ?
ORDER BY sequence_no ASC
`

func (q *Queries) ListSegments(ctx context.Context, versionUnifiedID int64) ([]Segment, error) {
	rows, err := q.db.QueryContext(ctx, listSegments, versionUnifiedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Segment
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.VersionUnifiedID, &s.SequenceNo, &s.SegOffset,
			&s.Size, &s.Location, &s.Hash, &s.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const setSegmentOffset = `
UPDATE segments SET seg_offset = ? WHERE version_unified_id = ? AND sequence_no = ?
`

type SetSegmentOffsetParams struct {
	VersionUnifiedID int64
	SequenceNo       int64
	SegOffset        int64
}

func (q *Queries) SetSegmentOffset(ctx context.Context, arg SetSegmentOffsetParams) error {
	_, err := q.db.ExecContext(ctx, setSegmentOffset, arg.SegOffset, arg.VersionUnifiedID, arg.SequenceNo)
	return err
}

const getVersionStatus = `
SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(MAX(timestamp), 0)
FROM segments
WHERE version_unified_id = ?
`

// GetVersionStatus derives total size and last-modified from a version's
// segment status rows. A version without status rows yields sql.ErrNoRows;
// the two fields never resolve separately.
func (q *Queries) GetVersionStatus(ctx context.Context, versionUnifiedID int64) (VersionStatus, error) {
	var count int64
	var status VersionStatus
	err := q.db.QueryRowContext(ctx, getVersionStatus, versionUnifiedID).
		Scan(&count, &status.TotalSize, &status.LastModified)
	if err != nil {
		return VersionStatus{}, err
	}
	if count == 0 {
		return VersionStatus{}, sql.ErrNoRows
	}
	return status, nil
}

const listKeys = `
SELECT key, MAX(unified_id) AS unified_id, timestamp, file_size
FROM object_versions
WHERE collection_id = ? AND finalized = 1 AND tombstone = 0
  AND key LIKE ? ESCAPE '\'
  AND key > ?
GROUP BY key
ORDER BY key ASC
LIMIT ?
`

type ListKeysParams struct {
	CollectionID int64
	Prefix       string
	KeyMarker    string
	Limit        int64
}

func (q *Queries) ListKeys(ctx context.Context, arg ListKeysParams) ([]KeyEntry, error) {
	rows, err := q.db.QueryContext(ctx, listKeys,
		arg.CollectionID, likePrefix(arg.Prefix), arg.KeyMarker, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []KeyEntry
	for rows.Next() {
		var e KeyEntry
		if err := rows.Scan(&e.Key, &e.UnifiedID, &e.Timestamp, &e.FileSize); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const listVersions = `
SELECT ` + versionColumns + `
FROM object_versions
WHERE collection_id = ? AND finalized = 1 AND tombstone = 0
  AND key LIKE ? ESCAPE '\'
  AND (key > ? OR (key = ? AND unified_id > ?))
ORDER BY key ASC, unified_id ASC
LIMIT ?
`

type ListVersionsParams struct {
	CollectionID  int64
	Prefix        string
	KeyMarker     string
	VersionMarker int64
	Limit         int64
}

func (q *Queries) ListVersions(ctx context.Context, arg ListVersionsParams) ([]ObjectVersion, error) {
	rows, err := q.db.QueryContext(ctx, listVersions,
		arg.CollectionID, likePrefix(arg.Prefix), arg.KeyMarker, arg.KeyMarker, arg.VersionMarker, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ObjectVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// likePrefix builds a LIKE pattern matching keys starting with prefix,
// escaping the wildcard characters.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
