package pageops

import (
	"fmt"
	"sort"

	"github.com/paradisepdf/pagekit/graph"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/pagetree"
	"github.com/paradisepdf/pagekit/pdferr"
)

// NormalizeRotation maps any angle into [0, 360).
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Rotate adds deltas[n] degrees to the effective rotation of page n and
// writes the result on the page itself. Page numbers outside the document
// are skipped. Any integer delta is accepted; the stored value is reduced
// into [0, 360). It returns the page numbers that were rotated, ascending.
func Rotate(doc *raw.Document, deltas map[int]int) ([]int, error) {
	pages, err := pagetree.Pages(doc)
	if err != nil {
		return nil, err
	}
	nums := make([]int, 0, len(deltas))
	for n := range deltas {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	applied := make([]int, 0, len(nums))
	for _, n := range nums {
		ref, ok := pages.Lookup(n)
		if !ok {
			continue
		}
		page, ok := doc.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		current := pagetree.Rotation(doc, ref)
		page.Set("Rotate", raw.NumberInt(int64(NormalizeRotation(current+deltas[n]))))
		applied = append(applied, n)
	}
	return applied, nil
}

// Extract builds a new document holding the pages of r and everything they
// reference. Parent links are not followed and references to pages outside
// r become null. The trailer Info is carried over. Inherited attributes are
// materialized on the source pages of r first.
func Extract(doc *raw.Document, r Range) (*raw.Document, error) {
	pages, err := pagetree.Pages(doc)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(pages.Len()); err != nil {
		return nil, pdferr.Validation("extract", "%v", err)
	}
	all := pages.Refs()
	keep := all[r.Start-1 : r.End]
	kept := make(map[raw.ObjectRef]bool, len(keep))
	for _, ref := range keep {
		if err := pagetree.Materialize(doc, ref); err != nil {
			return nil, err
		}
		kept[ref] = true
	}
	cut := make(map[raw.ObjectRef]bool, len(all))
	for _, ref := range all {
		if !kept[ref] {
			cut[ref] = true
		}
	}

	roots := append([]raw.ObjectRef(nil), keep...)
	info, hasInfo := doc.Trailer.Ref("Info")
	if hasInfo {
		roots = append(roots, info)
	}
	out := graph.Subset(doc, roots, cut)
	if _, ok := out.Objects[info]; hasInfo && ok {
		out.Trailer.Set("Info", raw.RefObj{R: info})
	}
	pagetree.NewCatalog(out)
	if _, err := pagetree.Flatten(out, keep); err != nil {
		return nil, err
	}
	graph.Prune(out)
	return out, nil
}

// Action is one step of a reorganization: keep an existing page or insert
// a blank one.
type Action struct {
	page  int
	blank bool
}

// Keep selects existing page n (1-based).
func Keep(n int) Action { return Action{page: n} }

// Blank inserts a blank page sized like the document's first page.
func Blank() Action { return Action{blank: true} }

func (a Action) IsBlank() bool { return a.blank }
func (a Action) Page() int     { return a.page }

func (a Action) String() string {
	if a.blank {
		return "blank"
	}
	return fmt.Sprintf("%d", a.page)
}

// Reorganize rebuilds the page list from actions under a fresh catalog.
// Keep actions naming a page that does not exist are skipped and returned.
// A result without pages is an error.
func Reorganize(doc *raw.Document, actions []Action) (skipped []int, err error) {
	pages, err := pagetree.Pages(doc)
	if err != nil {
		return nil, err
	}
	box := pagetree.BlankMediaBox(doc)
	refs := make([]raw.ObjectRef, 0, len(actions))
	for _, a := range actions {
		if a.blank {
			refs = append(refs, pagetree.NewBlankPage(doc, box))
			continue
		}
		ref, ok := pages.Lookup(a.page)
		if !ok {
			skipped = append(skipped, a.page)
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return skipped, pdferr.Validation("reorganize", "no pages left after applying %d actions", len(actions))
	}
	pagetree.NewCatalog(doc)
	if _, err := pagetree.Flatten(doc, refs); err != nil {
		return skipped, err
	}
	return skipped, nil
}
