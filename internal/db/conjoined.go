package db

import (
	"context"
)

const createConjoinedArchive = `
INSERT INTO conjoined_archives (unified_id, collection_id, key, create_timestamp)
VALUES (?, ?, ?, ?)
`

type CreateConjoinedArchiveParams struct {
	UnifiedID       int64
	CollectionID    int64
	Key             string
	CreateTimestamp int64
}

func (q *Queries) CreateConjoinedArchive(ctx context.Context, arg CreateConjoinedArchiveParams) error {
	_, err := q.db.ExecContext(ctx, createConjoinedArchive,
		arg.UnifiedID, arg.CollectionID, arg.Key, arg.CreateTimestamp)
	return err
}

const conjoinedColumns = `unified_id, collection_id, key, create_timestamp, complete_timestamp, abort_timestamp`

func scanConjoined(row interface{ Scan(...any) error }) (ConjoinedArchive, error) {
	var a ConjoinedArchive
	err := row.Scan(&a.UnifiedID, &a.CollectionID, &a.Key,
		&a.CreateTimestamp, &a.CompleteTimestamp, &a.AbortTimestamp)
	return a, err
}

const getConjoinedArchive = `
SELECT ` + conjoinedColumns + `
FROM conjoined_archives
WHERE unified_id = ? AND collection_id = ?
`

type GetConjoinedArchiveParams struct {
	UnifiedID    int64
	CollectionID int64
}

func (q *Queries) GetConjoinedArchive(ctx context.Context, arg GetConjoinedArchiveParams) (ConjoinedArchive, error) {
	return scanConjoined(q.db.QueryRowContext(ctx, getConjoinedArchive, arg.UnifiedID, arg.CollectionID))
}

const completeConjoinedArchive = `
UPDATE conjoined_archives
SET complete_timestamp = ?
WHERE unified_id = ? AND complete_timestamp IS NULL AND abort_timestamp IS NULL
`

type TerminateConjoinedArchiveParams struct {
	UnifiedID int64
	Timestamp int64
}

// CompleteConjoinedArchive moves an archive from active to completed. The
// guard on the terminal timestamps makes concurrent transitions race-free:
// exactly one caller observes an affected row.
func (q *Queries) CompleteConjoinedArchive(ctx context.Context, arg TerminateConjoinedArchiveParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, completeConjoinedArchive, arg.Timestamp, arg.UnifiedID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const abortConjoinedArchive = `
UPDATE conjoined_archives
SET abort_timestamp = ?
WHERE unified_id = ? AND complete_timestamp IS NULL AND abort_timestamp IS NULL
`

func (q *Queries) AbortConjoinedArchive(ctx context.Context, arg TerminateConjoinedArchiveParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, abortConjoinedArchive, arg.Timestamp, arg.UnifiedID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listConjoinedArchives = `
SELECT ` + conjoinedColumns + `
FROM conjoined_archives
WHERE collection_id = ?
  AND unified_id > ?
  AND (? = '' OR key > ?)
ORDER BY unified_id ASC
LIMIT ?
`

type ListConjoinedArchivesParams struct {
	CollectionID int64
	IDMarker     int64
	KeyMarker    string
	Limit        int64
}

func (q *Queries) ListConjoinedArchives(ctx context.Context, arg ListConjoinedArchivesParams) ([]ConjoinedArchive, error) {
	rows, err := q.db.QueryContext(ctx, listConjoinedArchives,
		arg.CollectionID, arg.IDMarker, arg.KeyMarker, arg.KeyMarker, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ConjoinedArchive
	for rows.Next() {
		a, err := scanConjoined(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
