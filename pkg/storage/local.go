package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileInfo is what callers need to know about a stored file.
type FileInfo struct {
	Exists bool
	Size   int64
}

// Local implements file operations on the device filesystem. URIs are plain paths.
type Local struct{}

// NewLocal returns a local filesystem port.
func NewLocal() *Local { return &Local{} }

// Copy copies src to dst, creating dst's directory. A partially written dst is removed on failure.
func (l *Local) Copy(ctx context.Context, src, dst string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close destination: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("sync destination: %w", err)
	}
	return nil
}

// Stat reports existence and size. A missing file is not an error.
func (l *Local) Stat(_ context.Context, uri string) (FileInfo, error) {
	info, err := os.Stat(uri)
	if errors.Is(err, fs.ErrNotExist) {
		return FileInfo{}, nil
	}
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Exists: true, Size: info.Size()}, nil
}

// Delete removes a file; deleting a missing file succeeds.
func (l *Local) Delete(_ context.Context, uri string) error {
	if err := os.Remove(uri); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	return nil
}

// Open opens a file for reading, e.g. to upload it.
func (l *Local) Open(_ context.Context, uri string) (io.ReadCloser, int64, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
