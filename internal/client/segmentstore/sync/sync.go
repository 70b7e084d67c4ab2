package sync

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/beanbocchi/cumulus/internal/client/segmentstore"
	"github.com/beanbocchi/cumulus/internal/utils/ioutil"
)

// SyncConfig configures the synchronized segmentstore wrapper.
type SyncConfig struct {
	// Client is the underlying segmentstore client to wrap with locking.
	Client segmentstore.Client
}

// SyncClient wraps a segmentstore client with per-location locking so a
// segment cannot be deleted while a retrieval still streams from it.
type SyncClient struct {
	client segmentstore.Client
	locks  sync.Map // map[string]*sync.RWMutex
}

// NewSyncClient creates a new synchronized segmentstore client wrapper.
func NewSyncClient(cfg SyncConfig) (*SyncClient, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}

	return &SyncClient{
		client: cfg.Client,
	}, nil
}

// getLock returns a per-location RWMutex, creating one if it doesn't exist.
func (c *SyncClient) getLock(location string) *sync.RWMutex {
	lock, _ := c.locks.LoadOrStore(location, &sync.RWMutex{})
	return lock.(*sync.RWMutex)
}

// Store writes a segment with write locking.
func (c *SyncClient) Store(ctx context.Context, location string, content io.Reader) (int64, error) {
	lock := c.getLock(location)
	lock.Lock()
	defer lock.Unlock()

	return c.client.Store(ctx, location, content)
}

// Fetch opens a segment reader with read locking. The lock is held until the
// returned reader is closed.
func (c *SyncClient) Fetch(ctx context.Context, location string, offset, size int64) (io.ReadCloser, error) {
	lock := c.getLock(location)
	lock.RLock()

	reader, err := c.client.Fetch(ctx, location, offset, size)
	if err != nil {
		lock.RUnlock()
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return ioutil.NewLockedReadCloser(reader, lock), nil
}

// Delete removes a segment with write locking.
func (c *SyncClient) Delete(ctx context.Context, location string) error {
	lock := c.getLock(location)
	lock.Lock()
	defer lock.Unlock()

	return c.client.Delete(ctx, location)
}
