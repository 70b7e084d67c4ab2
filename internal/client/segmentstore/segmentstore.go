// Package segmentstore abstracts the storage nodes holding object segment
// data. The physical engine and its replication live behind this interface.
package segmentstore

import (
	"context"
	"io"
)

// ReadToEnd asks Fetch for everything from offset through the end of the
// segment.
const ReadToEnd int64 = -1

type Client interface {
	// Store writes a segment's bytes under location, returning the size
	// written.
	Store(ctx context.Context, location string, content io.Reader) (int64, error)
	// Fetch opens a reader over [offset, offset+size) of a stored segment.
	// size == ReadToEnd reads through the end.
	Fetch(ctx context.Context, location string, offset, size int64) (io.ReadCloser, error)
	// Delete removes a stored segment. Deleting a missing segment is not an
	// error.
	Delete(ctx context.Context, location string) error
}
