package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
)

// LoggingQueries wraps the generated Queries struct to add debug logging
type LoggingQueries struct {
	*Queries
}

// NewLoggingQueries creates a new LoggingQueries instance
func NewLoggingQueries(db DBTX) *LoggingQueries {
	return &LoggingQueries{
		Queries: New(db),
	}
}

// WithTx creates a new LoggingQueries with a transaction
func (lq *LoggingQueries) WithTx(tx *sql.Tx) *LoggingQueries {
	return &LoggingQueries{
		Queries: lq.Queries.WithTx(tx),
	}
}

// Helper function to log query execution
func (lq *LoggingQueries) logQuery(queryName string, start time.Time, err error, args ...interface{}) {
	duration := time.Since(start)

	if err != nil && err != sql.ErrNoRows {
		log.Debug("Database query failed",
			"query", queryName,
			"duration", duration,
			"error", err,
			"args", args,
		)
	} else {
		log.Debug("Database query executed",
			"query", queryName,
			"duration", duration,
			"args", args,
		)
	}
}

// InsertChunk with logging
func (lq *LoggingQueries) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	start := time.Now()
	log.Debug("Executing InsertChunk", "chunk_x", arg.X, "chunk_y", arg.Y, "chunk_z", arg.Z, "bytes", len(arg.Data))

	err := lq.Queries.InsertChunk(ctx, arg)
	lq.logQuery("InsertChunk", start, err, arg.X, arg.Y, arg.Z)
	return err
}

// UpdateChunk with logging
func (lq *LoggingQueries) UpdateChunk(ctx context.Context, arg UpdateChunkParams) (int64, error) {
	start := time.Now()
	log.Debug("Executing UpdateChunk", "chunk_x", arg.X, "chunk_y", arg.Y, "chunk_z", arg.Z, "bytes", len(arg.Data))

	result, err := lq.Queries.UpdateChunk(ctx, arg)
	lq.logQuery("UpdateChunk", start, err, arg.X, arg.Y, arg.Z)

	if err == nil {
		log.Debug("UpdateChunk result", "rows_affected", result)
	}

	return result, err
}

// GetChunk with logging
func (lq *LoggingQueries) GetChunk(ctx context.Context, arg GetChunkParams) ([]byte, error) {
	start := time.Now()
	log.Debug("Executing GetChunk", "chunk_x", arg.X, "chunk_y", arg.Y, "chunk_z", arg.Z)

	result, err := lq.Queries.GetChunk(ctx, arg)
	lq.logQuery("GetChunk", start, err, arg)

	return result, err
}

// GetChunkColumn with logging
func (lq *LoggingQueries) GetChunkColumn(ctx context.Context, arg GetChunkColumnParams) ([]Chunk, error) {
	start := time.Now()
	log.Debug("Executing GetChunkColumn", "chunk_x", arg.X, "chunk_z", arg.Z)

	result, err := lq.Queries.GetChunkColumn(ctx, arg)
	lq.logQuery("GetChunkColumn", start, err, arg)

	if err == nil {
		log.Debug("GetChunkColumn result", "chunk_count", len(result), "chunk_x", arg.X, "chunk_z", arg.Z)
	}

	return result, err
}

// ChunkColumnExists with logging
func (lq *LoggingQueries) ChunkColumnExists(ctx context.Context, arg ChunkColumnExistsParams) (int64, error) {
	start := time.Now()
	log.Debug("Executing ChunkColumnExists", "chunk_x", arg.X, "chunk_z", arg.Z)

	result, err := lq.Queries.ChunkColumnExists(ctx, arg)
	lq.logQuery("ChunkColumnExists", start, err, arg)

	return result, err
}

// CountChunks with logging
func (lq *LoggingQueries) CountChunks(ctx context.Context) (int64, error) {
	start := time.Now()
	log.Debug("Executing CountChunks")

	result, err := lq.Queries.CountChunks(ctx)
	lq.logQuery("CountChunks", start, err)

	if err == nil {
		log.Debug("CountChunks result", "count", result)
	}

	return result, err
}
