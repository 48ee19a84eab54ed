package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"roadwatch.mg/internal/ids"
	"roadwatch.mg/internal/roads"
)

var (
	ErrTooLarge   = errors.New("blob: file too large")
	ErrInvalidRef = errors.New("blob: invalid reference")
	ErrEmpty      = errors.New("blob: empty file")
)

// Disk stores uploaded files as flat files named by ULID references.
type Disk struct {
	dir     string
	maxSize int64
}

// NewDisk creates dir if needed. maxSize <= 0 disables the size limit.
func NewDisk(dir string, maxSize int64) (*Disk, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create dir: %w", err)
	}
	return &Disk{dir: dir, maxSize: maxSize}, nil
}

// Put copies r into a new blob. The original filename is kept only as
// metadata; the stored name is a fresh reference.
func (d *Disk) Put(ctx context.Context, name, contentType string, r io.Reader) (roads.File, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	ext := filepath.Ext(name)
	ref := ids.BlobRef(ext)
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return roads.File{}, fmt.Errorf("blob: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := io.Reader(ctxReader{ctx: ctx, r: r})
	if d.maxSize > 0 {
		src = io.LimitReader(src, d.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return roads.File{}, fmt.Errorf("blob: write: %w", err)
	}
	if d.maxSize > 0 && n > d.maxSize {
		return roads.File{}, ErrTooLarge
	}
	if n == 0 {
		return roads.File{}, ErrEmpty
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.dir, ref)); err != nil {
		return roads.File{}, fmt.Errorf("blob: commit: %w", err)
	}
	return roads.File{Ref: ref, Name: name, ContentType: contentType, Size: n}, nil
}

// Open returns the blob for streaming. The caller closes it.
func (d *Disk) Open(ref string) (*os.File, error) {
	path, err := d.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, roads.NotFound("file")
	}
	return f, err
}

// Delete removes a blob; a missing blob is not an error.
func (d *Disk) Delete(ref string) error {
	path, err := d.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Disk) path(ref string) (string, error) {
	if !ids.ValidBlobRef(ref) {
		return "", ErrInvalidRef
	}
	return filepath.Join(d.dir, ref), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
