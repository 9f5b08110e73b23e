// Package imagesource implements the §9 ImageSource trait boundary:
// one interface for reading a fixed-size byte stream (a disk image
// file or a raw block device), so the rest of the engine never
// branches on platform or on file-vs-device. There is a single
// implementation, regularFile, which serves both image files and
// block devices; there is no separate block-device type.
//
// Grounded on the teacher's internal/disk.Reader, which already
// handles the block-device case (stat reports size 0, so the reader
// falls back to seeking to the end) for regular files opened
// read-only; this package keeps that behavior and adds the physical
// Seek/Read cursor operations the coverage facade needs to build its
// logical view on top.
package imagesource

import (
	"fmt"
	"io"
	"os"
)

// Source is the physical byte stream a carving session operates on:
// a plain disk image file or a raw block device, opened read-only.
type Source interface {
	io.ReaderAt
	io.Reader
	io.Seeker
	io.Closer
	// Size returns the total byte length of the underlying image.
	Size() int64
}

// regularFile backs both plain image files and block devices: on
// Unix a block device opens and reads just like a regular file, it
// simply reports stat size 0, which Open below detects and corrects
// for by seeking to the end once.
type regularFile struct {
	f    *os.File
	size int64
}

// Open opens path read-only and determines its size, falling back to
// seek-to-end for block devices whose stat(2) size is unreliable.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imagesource: open %s: %w", path, err)
	}

	size, err := sizeOf(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("imagesource: size %s: %w", path, err)
	}

	return &regularFile{f: f, size: size}, nil
}

func sizeOf(f *os.File) (int64, error) {
	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := stat.Size()
	if size > 0 {
		return size, nil
	}

	// Regular stat is unreliable for block devices; find the end by
	// seeking, then rewind to the start for the caller.
	size, err = f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

func (r *regularFile) Size() int64 { return r.size }

func (r *regularFile) ReadAt(buf []byte, offset int64) (int, error) {
	return r.f.ReadAt(buf, offset)
}

func (r *regularFile) Read(buf []byte) (int, error) {
	return r.f.Read(buf)
}

func (r *regularFile) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}

func (r *regularFile) Close() error {
	return r.f.Close()
}
