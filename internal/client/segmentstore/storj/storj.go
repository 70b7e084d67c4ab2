package storj

import (
	"context"
	"fmt"
	"io"

	"storj.io/uplink"
)

// ClientImpl stores segments as objects in a Storj bucket.
type ClientImpl struct {
	project *uplink.Project
	bucket  string
}

type StorjConfig struct {
	// AccessGrant is the Storj access grant string
	AccessGrant string
	// Bucket is the bucket name where segments will be stored
	Bucket string
}

// NewClient creates a new Storj segmentstore client
func NewClient(ctx context.Context, cfg StorjConfig) (*ClientImpl, error) {
	if cfg.AccessGrant == "" {
		return nil, fmt.Errorf("access grant is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	access, err := uplink.ParseAccess(cfg.AccessGrant)
	if err != nil {
		return nil, fmt.Errorf("parse access grant: %w", err)
	}

	project, err := uplink.OpenProject(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}

	// Ensure bucket exists
	if _, err := project.EnsureBucket(ctx, cfg.Bucket); err != nil {
		project.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	return &ClientImpl{
		project: project,
		bucket:  cfg.Bucket,
	}, nil
}

// Close closes the Storj project connection
func (c *ClientImpl) Close() error {
	if c.project != nil {
		return c.project.Close()
	}
	return nil
}

// Store uploads a segment to Storj
func (c *ClientImpl) Store(ctx context.Context, location string, content io.Reader) (int64, error) {
	upload, err := c.project.UploadObject(ctx, c.bucket, location, nil)
	if err != nil {
		return 0, fmt.Errorf("initiate upload: %w", err)
	}

	written, err := io.Copy(upload, content)
	if err != nil {
		upload.Abort()
		return 0, fmt.Errorf("write data: %w", err)
	}

	if err := upload.Commit(); err != nil {
		return 0, fmt.Errorf("commit upload: %w", err)
	}

	return written, nil
}

// Fetch downloads a byte range of a segment from Storj
func (c *ClientImpl) Fetch(ctx context.Context, location string, offset, size int64) (io.ReadCloser, error) {
	download, err := c.project.DownloadObject(ctx, c.bucket, location, &uplink.DownloadOptions{
		Offset: offset,
		Length: size,
	})
	if err != nil {
		return nil, fmt.Errorf("download object: %w", err)
	}

	return download, nil
}

// Delete deletes a segment from Storj
func (c *ClientImpl) Delete(ctx context.Context, location string) error {
	if _, err := c.project.DeleteObject(ctx, c.bucket, location); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
