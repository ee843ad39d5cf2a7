package xref

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// tailWindow is how much of the file end the strict check inspects.
	tailWindow = 1024
	// patchLookback is how far before the final %%EOF the repair searches
	// for a startxref directive.
	patchLookback = 128
)

var (
	eofMarker       = []byte("%%EOF")
	startxrefMarker = []byte("startxref")
)

// Size reports the length of r. Readers exposing Size() are asked directly;
// others are probed.
func Size(r io.ReaderAt) (int64, error) {
	if s, ok := r.(interface{ Size() int64 }); ok {
		return s.Size(), nil
	}
	var size int64
	buf := make([]byte, 32*1024)
	for {
		n, err := r.ReadAt(buf, size)
		size += int64(n)
		if err == io.EOF || (err == nil && n == 0) {
			return size, nil
		}
		if err != nil {
			return 0, err
		}
	}
}

func readRange(r io.ReaderAt, off, n int64) ([]byte, error) {
	if off < 0 {
		n += off
		off = 0
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:got], nil
}

// StartXRef reads the offset of the newest cross-reference section from the
// file tail. The tail must be exactly "startxref <offset> %%EOF" followed only
// by whitespace.
func StartXRef(r io.ReaderAt, size int64) (int64, error) {
	tail, err := readRange(r, size-tailWindow, tailWindow)
	if err != nil {
		return 0, err
	}
	tail = bytes.TrimRight(tail, "\x00\t\n\f\r ")
	if !bytes.HasSuffix(tail, eofMarker) {
		return 0, errors.New("file does not end with %%EOF")
	}
	rest := bytes.TrimRight(tail[:len(tail)-len(eofMarker)], "\x00\t\n\f\r ")
	i := len(rest)
	for i > 0 && rest[i-1] >= '0' && rest[i-1] <= '9' {
		i--
	}
	if i == len(rest) {
		return 0, fmt.Errorf("%w: no offset before %%%%EOF", ErrNoStartXRef)
	}
	off, err := strconv.ParseInt(string(rest[i:]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	head := bytes.TrimRight(rest[:i], "\x00\t\n\f\r ")
	if !bytes.HasSuffix(head, startxrefMarker) || len(head) == i {
		return 0, ErrNoStartXRef
	}
	return off, nil
}

// TailPatch builds the bytes that, appended to the file, give it a well-formed
// tail. It locates the final %%EOF, searches the preceding bytes for the last
// startxref directive and re-emits its offset. It reports false when no
// directive is found.
func TailPatch(r io.ReaderAt, size int64) ([]byte, bool) {
	eof, err := lastIndex(r, size, eofMarker)
	if err != nil || eof < 0 {
		return nil, false
	}
	window, err := readRange(r, eof-patchLookback, patchLookback)
	if err != nil {
		return nil, false
	}
	i := bytes.LastIndex(window, startxrefMarker)
	if i < 0 {
		return nil, false
	}
	digits := bytes.TrimLeft(window[i+len(startxrefMarker):], "\x00\t\n\f\r ")
	j := 0
	for j < len(digits) && digits[j] >= '0' && digits[j] <= '9' {
		j++
	}
	if j == 0 {
		return nil, false
	}
	off, err := strconv.ParseInt(string(digits[:j]), 10, 64)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("\n\nstartxref\n%d\n%%%%EOF", off)), true
}

// lastIndex finds the last occurrence of needle in r, scanning backwards.
func lastIndex(r io.ReaderAt, size int64, needle []byte) (int64, error) {
	const chunk = 4096
	overlap := int64(len(needle) - 1)
	end := size
	for end > 0 {
		start := end - chunk
		if start < 0 {
			start = 0
		}
		readEnd := end + overlap
		if readEnd > size {
			readEnd = size
		}
		buf, err := readRange(r, start, readEnd-start)
		if err != nil {
			return -1, err
		}
		if i := bytes.LastIndex(buf, needle); i >= 0 {
			return start + int64(i), nil
		}
		end = start
	}
	return -1, nil
}
