// Package source provides the byte sources documents are parsed from: a
// read-only memory map of a file and a virtual concatenation of readers.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ErrEmpty is returned when opening a zero-length file.
var ErrEmpty = errors.New("file is empty")

// ReaderAt is a random access source that knows its length.
type ReaderAt interface {
	io.ReaderAt
	Size() int64
}

// File is a read-only memory mapped file.
type File struct {
	f    *os.File
	m    mmap.MMap
	data *bytes.Reader
}

// Open maps path read-only. The mapping is released by Close.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, ErrEmpty
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &File{f: f, m: m, data: bytes.NewReader(m)}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.data.ReadAt(p, off) }
func (f *File) Size() int64                              { return int64(len(f.m)) }

// Bytes exposes the mapped region. It must not be used after Close.
func (f *File) Bytes() []byte { return f.m }

func (f *File) Close() error {
	var errs []error
	if f.m != nil {
		errs = append(errs, f.m.Unmap())
		f.m = nil
	}
	if f.f != nil {
		errs = append(errs, f.f.Close())
		f.f = nil
	}
	return errors.Join(errs...)
}

// Concat presents several sources as one contiguous source without copying
// them.
type Concat struct {
	parts  []ReaderAt
	starts []int64
	size   int64
}

// NewConcat joins parts in order.
func NewConcat(parts ...ReaderAt) *Concat {
	c := &Concat{parts: parts, starts: make([]int64, len(parts))}
	for i, p := range parts {
		c.starts[i] = c.size
		c.size += p.Size()
	}
	return c
}

func (c *Concat) Size() int64 { return c.size }

func (c *Concat) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("source: negative offset")
	}
	if off >= c.size {
		return 0, io.EOF
	}
	n := 0
	for i, part := range c.parts {
		if len(p) == 0 {
			break
		}
		start, end := c.starts[i], c.starts[i]+part.Size()
		if off >= end {
			continue
		}
		m, err := part.ReadAt(p, off-start)
		n += m
		off += int64(m)
		p = p[m:]
		if err != nil && err != io.EOF {
			return n, err
		}
	}
	if len(p) > 0 {
		return n, io.EOF
	}
	return n, nil
}

// Bytes wraps an in-memory buffer as a source.
func Bytes(b []byte) ReaderAt { return bytes.NewReader(b) }
