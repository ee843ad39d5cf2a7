package combine

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/paradisepdf/pagekit/graph"
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

// labelled builds n pages whose content streams read "<prefix><i>".
func labelled(t *testing.T, prefix string, n int) *raw.Document {
	d := pdftest.Pages(n)
	for i := 1; i <= n; i++ {
		d.Stream(2+n+i, "", []byte(fmt.Sprintf("(%s%d) Tj", prefix, i)))
	}
	return load(t, d.Bytes())
}

func pageLabels(t *testing.T, doc *raw.Document) []string {
	t.Helper()
	m, err := pagetree.Pages(doc)
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	var out []string
	for _, ref := range m.Refs() {
		page := doc.Objects[ref].(*raw.DictObj)
		c, _ := page.Ref("Contents")
		st := doc.Objects[c].(*raw.StreamObj)
		label := strings.TrimSuffix(strings.TrimPrefix(string(st.Data), "("), ") Tj")
		out = append(out, label)
	}
	return out
}

func TestCombineKeepsIdentifiersDisjoint(t *testing.T) {
	dst := labelled(t, "A", 2)
	src := labelled(t, "B", 3)
	before := len(dst.Objects)
	srcCount := len(src.Objects)
	maxBefore, srcMax := dst.MaxID, src.MaxID
	m, err := Combine(dst, src)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if len(dst.Objects) != before+srcCount {
		t.Fatalf("objects %d, want %d", len(dst.Objects), before+srcCount)
	}
	for old, nu := range m {
		if nu.Num <= maxBefore || nu.Num != old.Num+maxBefore {
			t.Errorf("%v mapped to %v", old, nu)
		}
	}
	if dst.MaxID != maxBefore+srcMax {
		t.Errorf("MaxID %d", dst.MaxID)
	}
}

func TestCombineRejectsCollisions(t *testing.T) {
	dst := labelled(t, "A", 1)
	dst.MaxID = 0
	_, err := Combine(dst, labelled(t, "B", 1))
	if !pdferr.Is(err, pdferr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAppendExtendsTopLevelKids(t *testing.T) {
	dst := labelled(t, "A", 2)
	src := labelled(t, "B", 3)
	if err := Append(dst, src); err != nil {
		t.Fatalf("append: %v", err)
	}
	got := pageLabels(t, dst)
	want := []string{"A1", "A2", "B1", "B2", "B3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pages %v, want %v", got, want)
	}
	root := dst.Objects[raw.ObjectRef{Num: 2}].(*raw.DictObj)
	if c, _ := root.Int("Count"); c != 5 {
		t.Fatalf("Count %d", c)
	}
	m, _ := pagetree.Pages(dst)
	last, _ := m.Lookup(5)
	page := dst.Objects[last].(*raw.DictObj)
	if p, _ := page.Ref("Parent"); p.Num != 2 {
		t.Fatalf("appended Parent %v", p)
	}
	if _, ok := page.Get("MediaBox"); !ok {
		t.Fatalf("inherited MediaBox not carried")
	}
	graph.Prune(dst)
	if got := pageLabels(t, dst); len(got) != 5 {
		t.Fatalf("prune lost pages: %v", got)
	}
}

func TestAppendCutsDanglingSourceRefs(t *testing.T) {
	dst := labelled(t, "A", 3)
	src := labelled(t, "B", 1)
	m, _ := pagetree.Pages(src)
	ref, _ := m.Lookup(1)
	src.Objects[ref].(*raw.DictObj).Set("Thumb", raw.Ref(7, 0))
	if _, ok := dst.Objects[raw.ObjectRef{Num: 7}]; !ok {
		t.Fatalf("fixture: dst has no object 7")
	}

	if err := Append(dst, src); err != nil {
		t.Fatalf("append: %v", err)
	}
	pages, _ := pagetree.Pages(dst)
	last, _ := pages.Lookup(4)
	thumb, ok := dst.Objects[last].(*raw.DictObj).Get("Thumb")
	if !ok {
		t.Fatalf("Thumb entry lost")
	}
	if _, isNull := thumb.(raw.NullObj); !isNull {
		t.Fatalf("dangling Thumb became %#v", thumb)
	}
}

func TestMixRoundRobin(t *testing.T) {
	out, err := Mix(labelled(t, "A", 2), labelled(t, "B", 3))
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if out.Version != MixVersion {
		t.Fatalf("version %s", out.Version)
	}
	graph.Prune(out)
	graph.Compact(out)
	got := pageLabels(t, out)
	want := []string{"A1", "B1", "A2", "B2", "B3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pages %v, want %v", got, want)
	}
	if _, err := Mix(); !pdferr.Is(err, pdferr.KindValidation) {
		t.Fatalf("empty mix: %v", err)
	}
}

func TestRoundRobin(t *testing.T) {
	cases := []struct {
		in   [][]int
		want []int
	}{
		{nil, []int{}},
		{[][]int{{1, 2, 3}}, []int{1, 2, 3}},
		{[][]int{{1, 2}, {10, 20, 30}, {}}, []int{1, 10, 2, 20, 30}},
		{[][]int{{1, 2, 3, 4}, {10}}, []int{1, 10, 2, 3, 4}},
	}
	for _, tc := range cases {
		if got := RoundRobin(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("RoundRobin(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
