package pageops

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/paradisepdf/pagekit/internal/pdftest"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/pagetree"
	"github.com/paradisepdf/pagekit/parser"
	"github.com/paradisepdf/pagekit/pdferr"
)

func load(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func pageCount(t *testing.T, doc *raw.Document) int {
	t.Helper()
	m, err := pagetree.Pages(doc)
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	return m.Len()
}

func contentOf(t *testing.T, doc *raw.Document, n int) string {
	t.Helper()
	m, _ := pagetree.Pages(doc)
	ref, ok := m.Lookup(n)
	if !ok {
		t.Fatalf("no page %d", n)
	}
	c, _ := doc.Objects[ref].(*raw.DictObj).Ref("Contents")
	return string(doc.Objects[c].(*raw.StreamObj).Data)
}

func TestChunkRangesEveryThree(t *testing.T) {
	got := ChunkRanges(10, EveryN{N: 3})
	want := []Range{{1, 3}, {4, 6}, {7, 9}, {10, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	labels := []string{"1–3", "4–6", "7–9", "10"}
	for i, r := range got {
		if r.Label() != labels[i] {
			t.Errorf("label %q, want %q", r.Label(), labels[i])
		}
	}
}

func TestChunkRangesPartition(t *testing.T) {
	modes := []SplitMode{EveryN{N: 0}, EveryN{N: 1}, EveryN{N: 4}, EveryN{N: 50}, OnePerPage{}}
	for _, mode := range modes {
		for count := 1; count <= 17; count++ {
			next := 1
			for _, r := range ChunkRanges(count, mode) {
				if r.Start != next || r.End < r.Start {
					t.Fatalf("%T %d: range %v breaks the partition", mode, count, r)
				}
				next = r.End + 1
			}
			if next != count+1 {
				t.Fatalf("%T %d: pages up to %d covered", mode, count, next-1)
			}
		}
	}
	if got := ChunkRanges(4, OnePerPage{}); len(got) != 4 {
		t.Fatalf("one per page gave %v", got)
	}
	if ChunkRanges(0, OnePerPage{}) != nil {
		t.Fatalf("no pages, no ranges")
	}
}

func TestRangeValidate(t *testing.T) {
	if err := (Range{2, 3}).Validate(3); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}
	for _, r := range []Range{{0, 1}, {3, 2}, {1, 4}} {
		if (r).Validate(3) == nil {
			t.Errorf("range %v accepted", r)
		}
	}
}

func TestNormalizeRotation(t *testing.T) {
	cases := map[int]int{0: 0, 90: 90, 360: 0, 450: 90, -90: 270, -720: 0, 1000: 280}
	for in, want := range cases {
		if got := NormalizeRotation(in); got != want {
			t.Errorf("NormalizeRotation(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRotateIsAdditive(t *testing.T) {
	doc := load(t, pdftest.Pages(3).Bytes())
	applied, err := Rotate(doc, map[int]int{1: 90, 3: -90, 7: 90})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !reflect.DeepEqual(applied, []int{1, 3}) {
		t.Fatalf("applied %v", applied)
	}
	if _, err := Rotate(doc, map[int]int{1: 180}); err != nil {
		t.Fatal(err)
	}
	m, _ := pagetree.Pages(doc)
	want := map[int]int{1: 270, 2: 0, 3: 270}
	for n, deg := range want {
		ref, _ := m.Lookup(n)
		if got := pagetree.Rotation(doc, ref); got != deg {
			t.Errorf("page %d rotation %d, want %d", n, got, deg)
		}
	}
}

func TestRotateArbitraryDeltas(t *testing.T) {
	doc := load(t, pdftest.Pages(2).Bytes())
	if _, err := Rotate(doc, map[int]int{1: 45, 2: -45}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := Rotate(doc, map[int]int{2: 405}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	m, _ := pagetree.Pages(doc)
	for n, want := range map[int]int{1: 45, 2: 0} {
		ref, _ := m.Lookup(n)
		got := pagetree.Rotation(doc, ref)
		if got != want || got < 0 || got >= 360 {
			t.Errorf("page %d rotation %d, want %d", n, got, want)
		}
	}
}

// linked builds three pages where page 1 links to page 3 through an
// annotation and page 3 alone uses the image XObject 20.
func linked() *pdftest.Doc {
	d := pdftest.Pages(3)
	d.Set(3, "<< /Type /Page /Parent 2 0 R /Contents 6 0 R /Annots [10 0 R] >>")
	d.Set(10, "<< /Type /Annot /Subtype /Link /Dest [5 0 R /Fit] >>")
	d.Set(5, "<< /Type /Page /Parent 2 0 R /Contents 8 0 R /Resources << /XObject << /Im0 20 0 R >> >> >>")
	d.Stream(20, "/Type /XObject /Subtype /Image /Width 1 /Height 1 /BitsPerComponent 8 /ColorSpace /DeviceGray", []byte{0})
	d.Set(11, "<< /Title (Extracted) >>")
	d.Trailer = "/Info 11 0 R"
	return d
}

func TestExtractClosure(t *testing.T) {
	doc := load(t, linked().Bytes())
	out, err := Extract(doc, Range{Start: 1, End: 2})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if n := pageCount(t, out); n != 2 {
		t.Fatalf("extracted %d pages", n)
	}
	if _, ok := out.Objects[raw.ObjectRef{Num: 20}]; ok {
		t.Fatalf("image used only by page 3 was copied")
	}
	annot := out.Objects[raw.ObjectRef{Num: 10}].(*raw.DictObj)
	dest, _ := annot.Array("Dest")
	if _, ok := dest.Items[0].(raw.NullObj); !ok {
		t.Fatalf("link to excluded page kept: %#v", dest.Items[0])
	}
	if contentOf(t, out, 2) != "BT /F1 12 Tf 72 720 Td (Page 2) Tj ET" {
		t.Fatalf("wrong second page")
	}
	if info, ok := out.Trailer.Ref("Info"); !ok || out.Objects[info] == nil {
		t.Fatalf("Info not carried")
	}
	page := out.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
	if _, ok := page.Get("MediaBox"); !ok {
		t.Fatalf("inherited MediaBox not materialized")
	}
	if _, err := Extract(doc, Range{Start: 3, End: 5}); !pdferr.Is(err, pdferr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReorganize(t *testing.T) {
	doc := load(t, pdftest.Pages(3).Bytes())
	skipped, err := Reorganize(doc, []Action{Keep(3), Blank(), Keep(9), Keep(1)})
	if err != nil {
		t.Fatalf("reorganize: %v", err)
	}
	if !reflect.DeepEqual(skipped, []int{9}) {
		t.Fatalf("skipped %v", skipped)
	}
	if pageCount(t, doc) != 3 {
		t.Fatalf("page count %d", pageCount(t, doc))
	}
	if got := contentOf(t, doc, 1); got != "BT /F1 12 Tf 72 720 Td (Page 3) Tj ET" {
		t.Fatalf("page 1 is %q", got)
	}
	if got := contentOf(t, doc, 2); got != "" {
		t.Fatalf("page 2 should be blank, got %q", got)
	}
}

func TestReorganizeBlankOnly(t *testing.T) {
	doc := load(t, pdftest.Pages(2).Bytes())
	if _, err := Reorganize(doc, []Action{Blank(), Blank()}); err != nil {
		t.Fatalf("reorganize: %v", err)
	}
	m, _ := pagetree.Pages(doc)
	for _, ref := range m.Refs() {
		box, ok := pagetree.MediaBox(doc, ref)
		if !ok || box.Len() != 4 {
			t.Fatalf("blank page without MediaBox")
		}
	}
	if m.Len() != 2 {
		t.Fatalf("page count %d", m.Len())
	}
}

func TestReorganizeWithoutPagesFails(t *testing.T) {
	doc := load(t, pdftest.Pages(2).Bytes())
	_, err := Reorganize(doc, []Action{Keep(5)})
	if !pdferr.Is(err, pdferr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseActions(t *testing.T) {
	got, err := ParseActions("3, blank ,1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []Action{Keep(3), Blank(), Keep(1)}) {
		t.Fatalf("got %v", got)
	}
	if _, err := ParseActions("1,x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseRotations(t *testing.T) {
	got, err := ParseRotations("1:90,3:-90,1:90,2:45")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[int]int{1: 180, 2: 45, 3: -90}) {
		t.Fatalf("got %v", got)
	}
	for _, bad := range []string{"1", "a:90", "1:x", "0:90", "2:4.5"} {
		if _, err := ParseRotations(bad); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}
