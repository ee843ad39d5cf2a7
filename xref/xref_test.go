package xref_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paradisepdf/pagekit/internal/pdftest"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/parser"
	"github.com/paradisepdf/pagekit/xref"
)

// file writes a document revision by revision. Offsets are recorded as
// objects are written.
type file struct {
	buf  bytes.Buffer
	offs map[int]int
}

func newFile() *file {
	f := &file{offs: make(map[int]int)}
	f.buf.WriteString("%PDF-1.7\n")
	return f
}

func (f *file) obj(num int, body string) int {
	f.offs[num] = f.buf.Len()
	fmt.Fprintf(&f.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return f.offs[num]
}

func (f *file) stream(num int, dict string, data []byte) int {
	return f.obj(num, fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data))
}

// table writes a classic section holding the free head and nums, one
// subsection per object, and returns its offset.
func (f *file) table(trailer string, nums ...int) int {
	off := f.buf.Len()
	f.buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for _, n := range nums {
		fmt.Fprintf(&f.buf, "%d 1\n%010d 00000 n \n", n, f.offs[n])
	}
	fmt.Fprintf(&f.buf, "trailer\n<< %s >>\n", trailer)
	f.tail(off)
	return off
}

func (f *file) tail(off int) {
	fmt.Fprintf(&f.buf, "startxref\n%d\n%%%%EOF\n", off)
}

func (f *file) resolve(t *testing.T) (xref.Table, xref.Resolver) {
	t.Helper()
	r := xref.NewResolver(xref.ResolverConfig{})
	table, err := r.Resolve(context.Background(), bytes.NewReader(f.buf.Bytes()))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return table, r
}

// entries encodes xref stream rows with /W [1 4 1]. Each row is type,
// field 2 and field 3.
func entries(size int, rows map[int][3]int) []byte {
	out := make([]byte, 6*size)
	for num, row := range rows {
		e := out[num*6:]
		e[0] = byte(row[0])
		e[1], e[2], e[3], e[4] = byte(row[1]>>24), byte(row[1]>>16), byte(row[1]>>8), byte(row[1])
		e[5] = byte(row[2])
	}
	return out
}

func TestResolverClassicTable(t *testing.T) {
	doc := pdftest.Pages(3)
	r := xref.NewResolver(xref.ResolverConfig{})
	table, err := r.Resolve(context.Background(), bytes.NewReader(doc.Bytes()))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "table" {
		t.Fatalf("type %s", table.Type())
	}
	for num, want := range doc.Offsets() {
		off, gen, ok := table.Lookup(num)
		if !ok || off != int64(want) || gen != 0 {
			t.Errorf("object %d: got (%d, %d, %v) want offset %d", num, off, gen, ok, want)
		}
	}
	if _, ok := table.Trailer().Get("Root"); !ok {
		t.Fatalf("trailer lost Root")
	}
}

func TestResolverXRefStreamWithObjectStream(t *testing.T) {
	f := newFile()
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	first := "<< /Val 7 >>"
	header := fmt.Sprintf("4 0 5 %d ", len(first)+1)
	f.stream(3, fmt.Sprintf("/Type /ObjStm /N 2 /First %d", len(header)), []byte(header+first+" 5"))
	xrefOff := f.buf.Len()
	rows := entries(7, map[int][3]int{
		1: {1, f.offs[1], 0},
		2: {1, f.offs[2], 0},
		3: {1, f.offs[3], 0},
		4: {2, 3, 0},
		5: {2, 3, 1},
		6: {1, xrefOff, 0},
	})
	f.stream(6, "/Type /XRef /Size 7 /Root 1 0 R /W [1 4 1] /Index [0 7]", rows)
	f.tail(xrefOff)

	table, _ := f.resolve(t)
	if table.Type() != "xref-stream" {
		t.Fatalf("type %s", table.Type())
	}
	if stm, idx, ok := table.ObjStream(5); !ok || stm != 3 || idx != 1 {
		t.Fatalf("object 5 in (%d, %d, %v)", stm, idx, ok)
	}

	loader, err := (&parser.ObjectLoaderBuilder{}).WithReader(bytes.NewReader(f.buf.Bytes())).WithXRef(table).Build()
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	obj4, err := loader.Load(context.Background(), raw.ObjectRef{Num: 4})
	if err != nil {
		t.Fatalf("load 4: %v", err)
	}
	if d, ok := obj4.(*raw.DictObj); !ok || d.Len() != 1 {
		t.Fatalf("object 4 = %#v", obj4)
	}
	obj5, err := loader.Load(context.Background(), raw.ObjectRef{Num: 5})
	if err != nil {
		t.Fatalf("load 5: %v", err)
	}
	if n, ok := obj5.(raw.NumberObj); !ok || n.Int() != 5 {
		t.Fatalf("object 5 = %#v", obj5)
	}
}

func TestResolverHybridRevision(t *testing.T) {
	f := newFile()
	f.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	stmOff := f.buf.Len()
	f.stream(4, "/Type /XRef /Size 6 /Root 1 0 R /W [1 4 1] /Index [0 6]", entries(6, map[int][3]int{
		1: {1, f.offs[1], 0},
		2: {1, f.offs[2], 0},
		4: {1, stmOff, 0},
	}))
	f.tail(stmOff)
	f.obj(5, "<< /Producer (update) >>")
	f.table(fmt.Sprintf("/Size 6 /Root 1 0 R /Prev %d /XRefStm %d", stmOff, stmOff), 5)

	table, r := f.resolve(t)
	if table.Type() != "table" {
		t.Fatalf("newest section is a table, got %s", table.Type())
	}
	for _, num := range []int{1, 5} {
		if off, _, ok := table.Lookup(num); !ok || off != int64(f.offs[num]) {
			t.Errorf("object %d at %d, %v", num, off, ok)
		}
	}
	if r.Trailer() == nil {
		t.Fatalf("resolver kept no trailer")
	}
}

func TestResolverNewestRevisionWins(t *testing.T) {
	f := newFile()
	f.obj(1, "<< /Type /Catalog /V 1 >>")
	firstOff := f.table("/Size 2 /Root 1 0 R /Info 9 0 R", 1)
	f.obj(1, "<< /Type /Catalog /V 2 >>")
	f.table(fmt.Sprintf("/Size 2 /Root 1 0 R /Prev %d", firstOff), 1)

	table, _ := f.resolve(t)
	if off, _, _ := table.Lookup(1); off != int64(f.offs[1]) {
		t.Fatalf("object 1 at %d, want the update at %d", off, f.offs[1])
	}
	if _, ok := table.Trailer().Get("Info"); !ok {
		t.Fatalf("keys of older trailers are merged")
	}
	if _, ok := table.Trailer().Get("Prev"); ok {
		t.Fatalf("Prev is not carried into the merged trailer")
	}
}

func TestResolverDetectsLinearized(t *testing.T) {
	f := newFile()
	f.obj(1, "<< /Linearized 1 /L 200 /O 1 /N 1 /H [ 10 20 ] >>")
	f.obj(2, "<< /Type /Catalog /Pages 3 0 R >>")
	f.obj(3, "<< /Type /Pages /Kids [] /Count 0 >>")
	f.table("/Size 4 /Root 2 0 R", 1, 2, 3)
	if _, r := f.resolve(t); !r.Linearized() {
		t.Fatalf("linearization dictionary not detected")
	}
}

func TestResolverFailures(t *testing.T) {
	loop := newFile()
	loop.obj(1, "<< /Type /Catalog >>")
	off := loop.buf.Len()
	loop.table(fmt.Sprintf("/Size 2 /Root 1 0 R /Prev %d", off), 1)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"prev loop", loop.buf.Bytes(), xref.ErrXRefLoop},
		{"trailing garbage", append(pdftest.Pages(1).Bytes(), "garbage after the end\n"...), nil},
		{"no startxref", bytes.Replace(pdftest.Pages(1).Bytes(), []byte("startxref"), []byte("startxrex"), 1), xref.ErrNoStartXRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(tt.data))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}
