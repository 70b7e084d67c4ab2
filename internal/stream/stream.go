// Package stream reassembles a stored object version from its segments into
// a lazily produced byte sequence. This is the gateway's performance-critical
// path: memory use stays constant regardless of object size.
package stream

import (
	"context"
	"fmt"
	"io"

	"github.com/beanbocchi/cumulus/internal/client/segmentstore"
)

const defaultChunkSize = 64 * 1024

// ErrClosed is returned by Next after Close.
var ErrClosed = fmt.Errorf("stream is closed")

// Segment describes one stored fragment: where its bytes live and which part
// of the object [Offset, Offset+Size) it covers.
type Segment struct {
	Location string
	Offset   int64
	Size     int64
}

// Stream is a single-pass, non-restartable chunk iterator over a byte range
// of an object. Segment readers open lazily as the consumer pulls; nothing
// is fetched ahead of demand, so a slow consumer applies backpressure and an
// early Close stops further segment fetches.
type Stream struct {
	store    segmentstore.Client
	segments []Segment

	// requested range within the object; end < 0 means through the last
	// segment.
	pos int64
	end int64

	next   int
	cur    io.ReadCloser
	buf    []byte
	closed bool
}

// New builds a stream over the given segments, which must be ordered and
// contiguous. offset is the first object byte to produce; size < 0 streams
// through the end.
func New(store segmentstore.Client, segments []Segment, offset, size int64) *Stream {
	end := int64(-1)
	if size >= 0 {
		end = offset + size
	}
	return &Stream{
		store:    store,
		segments: segments,
		pos:      offset,
		end:      end,
		buf:      make([]byte, defaultChunkSize),
	}
}

// Next returns the next chunk of the sequence, or io.EOF once the range is
// exhausted. The returned slice is only valid until the following call.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	for {
		if s.cur == nil {
			opened, err := s.openNext(ctx)
			if err != nil {
				return nil, err
			}
			if !opened {
				return nil, io.EOF
			}
		}

		n, err := s.cur.Read(s.buf)
		if n > 0 {
			s.pos += int64(n)
			return s.buf[:n], nil
		}
		if err == io.EOF {
			s.cur.Close()
			s.cur = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read segment: %w", err)
		}
	}
}

// openNext advances to the first remaining segment overlapping the requested
// range and opens a fetch clipped to it. Returns false when the range is
// exhausted.
func (s *Stream) openNext(ctx context.Context) (bool, error) {
	for ; s.next < len(s.segments); s.next++ {
		seg := s.segments[s.next]
		segEnd := seg.Offset + seg.Size

		if segEnd <= s.pos {
			continue
		}
		if s.end >= 0 && seg.Offset >= s.end {
			return false, nil
		}

		readStart := s.pos
		if readStart < seg.Offset {
			readStart = seg.Offset
		}
		readEnd := segEnd
		if s.end >= 0 && s.end < readEnd {
			readEnd = s.end
		}
		if readEnd <= readStart {
			return false, nil
		}

		reader, err := s.store.Fetch(ctx, seg.Location, readStart-seg.Offset, readEnd-readStart)
		if err != nil {
			return false, fmt.Errorf("fetch segment %s: %w", seg.Location, err)
		}

		s.pos = readStart
		s.cur = reader
		s.next++
		return true, nil
	}
	return false, nil
}

// Close releases the current segment reader and stops the iteration. Safe to
// call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.segments = nil
	if s.cur != nil {
		err := s.cur.Close()
		s.cur = nil
		return err
	}
	return nil
}
