// Package pageops implements the page-level mutations: rotation, range
// extraction and reorganization.
package pageops

import (
	"fmt"
	"strconv"
)

// Range is an inclusive run of 1-based page numbers.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start + 1 }

// Label renders the range for display: "4" or "4–6".
func (r Range) Label() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d–%d", r.Start, r.End)
}

// Validate checks that the range is non-empty and inside 1..pageCount.
func (r Range) Validate(pageCount int) error {
	if r.Start < 1 || r.End < r.Start {
		return fmt.Errorf("invalid page range %d-%d", r.Start, r.End)
	}
	if r.End > pageCount {
		return fmt.Errorf("page range %s exceeds page count %d", r.Label(), pageCount)
	}
	return nil
}

// SplitMode decides how many pages go into each chunk.
type SplitMode interface {
	chunkSize(pageCount int) int
}

// EveryN puts N consecutive pages in each chunk; the last chunk may be
// shorter. N below 1 is treated as 1.
type EveryN struct{ N int }

func (m EveryN) chunkSize(int) int { return max(m.N, 1) }

// OnePerPage puts every page in its own chunk.
type OnePerPage struct{}

func (OnePerPage) chunkSize(int) int { return 1 }

// ChunkRanges partitions 1..pageCount into consecutive ranges.
func ChunkRanges(pageCount int, mode SplitMode) []Range {
	if pageCount <= 0 {
		return nil
	}
	size := mode.chunkSize(pageCount)
	out := make([]Range, 0, (pageCount+size-1)/size)
	for start := 1; start <= pageCount; start += size {
		out = append(out, Range{Start: start, End: min(start+size-1, pageCount)})
	}
	return out
}
