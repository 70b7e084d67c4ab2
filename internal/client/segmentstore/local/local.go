package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ClientImpl stores segments as files under a root directory.
type ClientImpl struct {
	root string
}

type LocalConfig struct {
	// Root is the base directory where segments are stored on disk.
	Root string
}

func NewClient(cfg LocalConfig) (*ClientImpl, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("local root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &ClientImpl{root: cfg.Root}, nil
}

func (c *ClientImpl) fullPath(location string) string {
	// prevent path traversal
	clean := filepath.Clean(location)
	return filepath.Join(c.root, clean)
}

func (c *ClientImpl) Store(ctx context.Context, location string, content io.Reader) (int64, error) {
	path := c.fullPath(location)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	//! Write to temp file first, then rename for filesystem atomicity because mid-write crash will leave a partial file.
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(f, content)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename file: %w", err)
	}

	return written, nil
}

func (c *ClientImpl) Fetch(ctx context.Context, location string, offset, size int64) (io.ReadCloser, error) {
	file, err := os.Open(c.fullPath(location))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, fmt.Errorf("seek: %w", err)
		}
	}

	if size < 0 {
		return file, nil
	}
	return &limitedFile{Reader: io.LimitReader(file, size), file: file}, nil
}

func (c *ClientImpl) Delete(ctx context.Context, location string) error {
	if err := os.Remove(c.fullPath(location)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

type limitedFile struct {
	io.Reader
	file *os.File
}

func (l *limitedFile) Close() error {
	return l.file.Close()
}
