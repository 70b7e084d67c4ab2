// Package unifiedid issues the cluster-wide ordered identifiers assigned to
// object versions and conjoined archives.
package unifiedid

import (
	"sync"
	"time"
)

const (
	secondsShift = 23
	shardShift   = 13
	shardMask    = (1 << (secondsShift - shardShift)) - 1
	sequenceMask = (1 << shardShift) - 1
)

// Factory issues monotonically increasing unified IDs. The ID packs the
// issue second, the shard number and a per-second sequence, so IDs are
// collision-free across shards and totally ordered within one.
type Factory struct {
	mu       sync.Mutex
	shard    int64
	lastSecs int64
	sequence int64
}

func NewFactory(shard int64) *Factory {
	return &Factory{shard: shard & shardMask}
}

// Next returns a fresh unified ID, never reissued.
func (f *Factory) Next() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().Unix()
	// lastSecs can run ahead of the clock when a second's sequence space is
	// exhausted; never step backwards.
	if now > f.lastSecs {
		f.lastSecs = now
		f.sequence = 0
	} else {
		f.sequence++
		if f.sequence > sequenceMask {
			f.lastSecs++
			f.sequence = 0
		}
	}

	return f.lastSecs<<secondsShift | f.shard<<shardShift | f.sequence
}
