package xref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/scanner"
)

// Table maps object numbers to their storage location.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	ObjStream(objNum int) (streamNum int, index int, found bool)
	Objects() []int
	Type() string
	Trailer() *raw.DictObj
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	Linearized() bool
	Trailer() *raw.DictObj
}

type ResolverConfig struct {
	// MaxXRefDepth bounds the number of sections followed through /Prev.
	MaxXRefDepth int
	Limits       filters.Limits
}

var (
	ErrNoStartXRef = errors.New("startxref not found")
	ErrXRefLoop    = errors.New("xref chain loops")
)

// NewResolver returns a resolver for classic tables, xref streams and
// hybrid files.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &chainResolver{cfg: cfg}
}

type chainResolver struct {
	cfg        ResolverConfig
	linearized bool
	trailer    *raw.DictObj
}

func (c *chainResolver) Linearized() bool      { return c.linearized }
func (c *chainResolver) Trailer() *raw.DictObj { return c.trailer }

func (c *chainResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	size, err := Size(r)
	if err != nil {
		return nil, err
	}
	start, err := StartXRef(r, size)
	if err != nil {
		return nil, err
	}
	tbl := &table{entries: make(map[int]entry), trailer: raw.Dict()}
	s := scanner.New(r, scanner.Config{})
	or := scanner.NewObjectReader(s)
	pipeline := filters.NewDefaultPipeline(c.cfg.Limits)

	visited := map[int64]bool{}
	streams := map[int64]bool{}
	off := start
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= c.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d sections", c.cfg.MaxXRefDepth)
		}
		if visited[off] {
			return nil, ErrXRefLoop
		}
		visited[off] = true
		if off <= 0 || off >= size {
			return nil, fmt.Errorf("xref offset out of range: %d", off)
		}
		sec, err := readSection(ctx, or, pipeline, off)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", off, err)
		}
		if depth == 0 {
			tbl.kind = sec.kind
		}
		tbl.merge(sec)
		if stm, ok := sec.trailer.Int("XRefStm"); ok && sec.kind == "table" && !streams[stm] {
			streams[stm] = true
			hybrid, err := readSection(ctx, or, pipeline, stm)
			if err != nil {
				return nil, fmt.Errorf("xref stream at %d: %w", stm, err)
			}
			hybrid.trailer = raw.Dict()
			tbl.merge(hybrid)
		}
		prev, ok := sec.trailer.Int("Prev")
		if !ok {
			break
		}
		off = prev
	}
	if _, ok := tbl.trailer.Get("Root"); !ok {
		return nil, errors.New("trailer has no Root")
	}
	tbl.trailer.Delete("Prev")
	tbl.trailer.Delete("XRefStm")
	c.trailer = tbl.trailer
	c.linearized = detectLinearized(or, tbl)
	return tbl, nil
}

type entry struct {
	offset   int64
	gen      int
	stream   int
	index    int
	free     bool
	inObjStm bool
}

type section struct {
	kind    string
	entries map[int]entry
	trailer *raw.DictObj
}

type table struct {
	kind    string
	entries map[int]entry
	trailer *raw.DictObj
}

// merge adds entries from an older section; entries already present win.
func (t *table) merge(s *section) {
	for num, e := range s.entries {
		if _, ok := t.entries[num]; !ok {
			t.entries[num] = e
		}
	}
	for _, k := range s.trailer.Keys() {
		if _, ok := t.trailer.Get(k); !ok {
			t.trailer.Set(k, s.trailer.KV[k])
		}
	}
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.free || e.inObjStm {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || !e.inObjStm {
		return 0, 0, false
	}
	return e.stream, e.index, true
}

// Objects returns the in-use object numbers in ascending order.
func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if !e.free && k > 0 {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Type() string          { return t.kind }
func (t *table) Trailer() *raw.DictObj { return t.trailer }

func readSection(ctx context.Context, or *scanner.ObjectReader, p *filters.Pipeline, off int64) (*section, error) {
	if err := or.Seek(off); err != nil {
		return nil, err
	}
	tok, err := or.Next()
	if err != nil {
		return nil, err
	}
	if tok.IsKeyword("xref") {
		return readClassic(or)
	}
	or.Unread(tok)
	return readStreamSection(ctx, or, p)
}

func readClassic(or *scanner.ObjectReader) (*section, error) {
	sec := &section{kind: "table", entries: make(map[int]entry)}
	for {
		tok, err := or.Next()
		if err != nil {
			return nil, fmt.Errorf("classic xref: %w", err)
		}
		if tok.IsKeyword("trailer") {
			break
		}
		countTok, err := or.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("invalid xref subsection header at offset %d", tok.Pos)
		}
		first, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := or.Next()
			genTok, err2 := or.Next()
			kindTok, err3 := or.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("unexpected end of xref section: %w", err)
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at offset %d", offTok.Pos)
			}
			num := first + i
			if _, dup := sec.entries[num]; dup {
				continue
			}
			switch kindTok.Str {
			case "n":
				sec.entries[num] = entry{offset: offTok.Int, gen: int(genTok.Int)}
			case "f":
				sec.entries[num] = entry{free: true}
			default:
				return nil, fmt.Errorf("invalid xref entry type %q", kindTok.Str)
			}
		}
	}
	obj, err := or.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	sec.trailer = dict
	return sec, nil
}

// detectLinearized reports whether the object at the lowest offset carries a
// /Linearized entry.
func detectLinearized(or *scanner.ObjectReader, t *table) bool {
	first := int64(-1)
	for _, e := range t.entries {
		if e.free || e.inObjStm {
			continue
		}
		if first < 0 || e.offset < first {
			first = e.offset
		}
	}
	if first < 0 || or.Seek(first) != nil {
		return false
	}
	if _, err := or.ReadHeader(); err != nil {
		return false
	}
	obj, err := or.ReadObject()
	if err != nil {
		return false
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return false
	}
	_, ok = d.Get("Linearized")
	return ok
}
