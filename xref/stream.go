package xref

import (
	"context"
	"errors"
	"fmt"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/scanner"
)

// readStreamSection parses a cross-reference stream object at the reader's
// position.
func readStreamSection(ctx context.Context, or *scanner.ObjectReader, p *filters.Pipeline) (*section, error) {
	if _, err := or.ReadHeader(); err != nil {
		return nil, err
	}
	obj, err := or.ReadObject()
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok || !raw.IsType(stm, "XRef") {
		return nil, errors.New("expected xref stream")
	}
	data, err := filters.DecodeStream(ctx, p, stm)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	widths, err := fieldWidths(stm.Dict)
	if err != nil {
		return nil, err
	}
	index, err := subsections(stm.Dict)
	if err != nil {
		return nil, err
	}
	sec := &section{kind: "xref-stream", entries: make(map[int]entry), trailer: trailerFromStream(stm.Dict)}
	rowLen := widths[0] + widths[1] + widths[2]
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, errors.New("xref stream truncated")
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if widths[0] > 0 {
				typ = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])
			num := first + j
			switch typ {
			case 0:
				sec.entries[num] = entry{free: true}
			case 1:
				sec.entries[num] = entry{offset: f2, gen: int(f3)}
			case 2:
				sec.entries[num] = entry{stream: int(f2), index: int(f3), inObjStm: true}
			}
		}
	}
	return sec, nil
}

func fieldWidths(d *raw.DictObj) ([3]int, error) {
	var w [3]int
	arr, ok := d.Array("W")
	if !ok || arr.Len() != 3 {
		return w, errors.New("xref stream missing /W")
	}
	for i, item := range arr.Items {
		n, ok := item.(raw.NumberObj)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return w, errors.New("invalid /W entry")
		}
		w[i] = int(n.Int())
	}
	return w, nil
}

func subsections(d *raw.DictObj) ([]int, error) {
	if arr, ok := d.Array("Index"); ok {
		out := make([]int, 0, arr.Len())
		for _, item := range arr.Items {
			n, ok := item.(raw.NumberObj)
			if !ok {
				return nil, errors.New("invalid /Index entry")
			}
			out = append(out, int(n.Int()))
		}
		return out, nil
	}
	size, ok := d.Int("Size")
	if !ok {
		return nil, errors.New("xref stream missing /Size")
	}
	return []int{0, int(size)}, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// trailerFromStream keeps the trailer keys of an xref stream dictionary.
func trailerFromStream(d *raw.DictObj) *raw.DictObj {
	t := raw.Dict()
	for _, k := range []string{"Size", "Root", "Info", "ID", "Encrypt", "Prev"} {
		if v, ok := d.Get(k); ok {
			t.Set(k, v)
		}
	}
	return t
}
