package db

import (
	"context"

	"github.com/guregu/null/v6"
)

const createCollection = `
INSERT INTO collections (name, access_control, password_hash, creation_time)
VALUES (?, ?, ?, ?)
RETURNING id, name, access_control, password_hash, creation_time, deletion_time
`

type CreateCollectionParams struct {
	Name          string
	AccessControl null.String
	PasswordHash  null.String
	CreationTime  int64
}

func (q *Queries) CreateCollection(ctx context.Context, arg CreateCollectionParams) (Collection, error) {
	row := q.db.QueryRowContext(ctx, createCollection,
		arg.Name, arg.AccessControl, arg.PasswordHash, arg.CreationTime)
	var c Collection
	err := row.Scan(&c.ID, &c.Name, &c.AccessControl, &c.PasswordHash, &c.CreationTime, &c.DeletionTime)
	return c, err
}

const getCollectionByName = `
SELECT id, name, access_control, password_hash, creation_time, deletion_time
FROM collections
WHERE name = ? AND deletion_time IS NULL
`

func (q *Queries) GetCollectionByName(ctx context.Context, name string) (Collection, error) {
	row := q.db.QueryRowContext(ctx, getCollectionByName, name)
	var c Collection
	err := row.Scan(&c.ID, &c.Name, &c.AccessControl, &c.PasswordHash, &c.CreationTime, &c.DeletionTime)
	return c, err
}

const updateCollectionAccessControl = `
UPDATE collections SET access_control = ? WHERE id = ?
`

type UpdateCollectionAccessControlParams struct {
	AccessControl null.String
	ID            int64
}

func (q *Queries) UpdateCollectionAccessControl(ctx context.Context, arg UpdateCollectionAccessControlParams) error {
	_, err := q.db.ExecContext(ctx, updateCollectionAccessControl, arg.AccessControl, arg.ID)
	return err
}
