package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Chunk struct {
	X    int64
	Y    int64
	Z    int64
	Data []byte
}

const insertChunk = `-- name: InsertChunk :exec
INSERT INTO chunks (x, y, z, data) VALUES (?, ?, ?, ?)
`

type InsertChunkParams struct {
	X    int64
	Y    int64
	Z    int64
	Data []byte
}

func (q *Queries) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	_, err := q.db.ExecContext(ctx, insertChunk, arg.X, arg.Y, arg.Z, arg.Data)
	return err
}

const updateChunk = `-- name: UpdateChunk :execrows
UPDATE chunks SET data = ? WHERE x = ? AND y = ? AND z = ?
`

type UpdateChunkParams struct {
	Data []byte
	X    int64
	Y    int64
	Z    int64
}

func (q *Queries) UpdateChunk(ctx context.Context, arg UpdateChunkParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateChunk, arg.Data, arg.X, arg.Y, arg.Z)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getChunk = `-- name: GetChunk :one
SELECT data FROM chunks WHERE x = ? AND y = ? AND z = ?
`

type GetChunkParams struct {
	X int64
	Y int64
	Z int64
}

func (q *Queries) GetChunk(ctx context.Context, arg GetChunkParams) ([]byte, error) {
	row := q.db.QueryRowContext(ctx, getChunk, arg.X, arg.Y, arg.Z)
	var data []byte
	err := row.Scan(&data)
	return data, err
}

const getChunkColumn = `-- name: GetChunkColumn :many
SELECT x, y, z, data FROM chunks WHERE x = ? AND z = ? ORDER BY y
`

type GetChunkColumnParams struct {
	X int64
	Z int64
}

func (q *Queries) GetChunkColumn(ctx context.Context, arg GetChunkColumnParams) ([]Chunk, error) {
	rows, err := q.db.QueryContext(ctx, getChunkColumn, arg.X, arg.Z)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Chunk
	for rows.Next() {
		var i Chunk
		if err := rows.Scan(&i.X, &i.Y, &i.Z, &i.Data); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const chunkColumnExists = `-- name: ChunkColumnExists :one
SELECT EXISTS (SELECT 1 FROM chunks WHERE x = ? AND z = ?)
`

type ChunkColumnExistsParams struct {
	X int64
	Z int64
}

func (q *Queries) ChunkColumnExists(ctx context.Context, arg ChunkColumnExistsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, chunkColumnExists, arg.X, arg.Z)
	var exists int64
	err := row.Scan(&exists)
	return exists, err
}

const countChunks = `-- name: CountChunks :one
SELECT COUNT(*) FROM chunks
`

func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countChunks)
	var count int64
	err := row.Scan(&count)
	return count, err
}
