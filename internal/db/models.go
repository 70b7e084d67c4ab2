package db

import (
	"github.com/guregu/null/v6"
)

// Collection is a named, access-controlled namespace for keys.
type Collection struct {
	ID            int64
	Name          string
	AccessControl null.String
	PasswordHash  null.String
	CreationTime  int64
	DeletionTime  null.Int64
}

// ObjectVersion is one stored version of a key. Rows stay unfinalized while
// an owning conjoined archive is still assembling them.
type ObjectVersion struct {
	UnifiedID    int64
	CollectionID int64
	Key          string
	Timestamp    int64
	FileSize     int64
	ConjoinedID  null.Int64
	Finalized    bool
	Tombstone    bool
}

// Segment is one stored byte-range fragment of an object version. Segments
// of a finalized version partition [0, file_size) without overlap or gap.
type Segment struct {
	VersionUnifiedID int64
	SequenceNo       int64
	SegOffset        int64
	Size             int64
	Location         string
	Hash             string
	Timestamp        int64
}

// Conjoined archive states.
const (
	ConjoinedActive    = "active"
	ConjoinedCompleted = "completed"
	ConjoinedAborted   = "aborted"
)

// ConjoinedArchive tracks a multi-part upload. Exactly one of the terminal
// timestamps is set once the archive leaves the active state.
type ConjoinedArchive struct {
	UnifiedID         int64
	CollectionID      int64
	Key               string
	CreateTimestamp   int64
	CompleteTimestamp null.Int64
	AbortTimestamp    null.Int64
}

func (a ConjoinedArchive) State() string {
	switch {
	case a.CompleteTimestamp.Valid:
		return ConjoinedCompleted
	case a.AbortTimestamp.Valid:
		return ConjoinedAborted
	default:
		return ConjoinedActive
	}
}

// VersionStatus is the metadata derived from a version's segment status
// rows. Both fields resolve together or not at all.
type VersionStatus struct {
	TotalSize    int64
	LastModified int64
}

// KeyEntry is one row of a key listing: the key plus its current live
// version.
type KeyEntry struct {
	Key       string
	UnifiedID int64
	Timestamp int64
	FileSize  int64
}
