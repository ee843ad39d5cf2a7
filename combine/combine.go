// Package combine merges independent object graphs into one document.
package combine

import (
	"fmt"

	"github.com/paradisepdf/pagekit/graph"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/pagetree"
	"github.com/paradisepdf/pagekit/pdferr"
)

// MixVersion is the version declared by documents Mix builds from scratch.
const MixVersion = "1.7"

// Combine renumbers src above dst's highest identifier and moves its objects
// into dst. src is consumed: its objects and trailer now use the new
// identifiers. The returned map translates src's old identifiers.
func Combine(dst, src *raw.Document) (map[raw.ObjectRef]raw.ObjectRef, error) {
	m := graph.Renumber(src, dst.MaxID)
	for _, ref := range src.Refs() {
		if _, taken := dst.Objects[ref]; taken {
			return nil, pdferr.Validation("combine", "identifier %s already in use", ref)
		}
	}
	for ref, obj := range src.Objects {
		dst.Objects[ref] = obj
	}
	if src.MaxID > dst.MaxID {
		dst.MaxID = src.MaxID
	}
	return m, nil
}

// Append combines src into dst and adds src's pages, in order, to the end
// of dst's top-level Kids. The appended pages take their inherited
// attributes from src's tree with them.
func Append(dst, src *raw.Document) error {
	srcPages, err := pagetree.Pages(src)
	if err != nil {
		return fmt.Errorf("source pages: %w", err)
	}
	for _, ref := range srcPages.Refs() {
		if err := pagetree.Materialize(src, ref); err != nil {
			return err
		}
	}
	cat, err := dst.Catalog()
	if err != nil {
		return err
	}
	rootRef, ok := cat.Ref("Pages")
	if !ok {
		return pagetree.ErrNoPages
	}
	root, ok := dst.ResolveDict(raw.RefObj{R: rootRef})
	if !ok {
		return fmt.Errorf("pages root %s: %w", rootRef, raw.ErrMissingObject)
	}

	m, err := Combine(dst, src)
	if err != nil {
		return err
	}
	kids, ok := dst.ResolveArray(root.KV["Kids"])
	if !ok {
		kids = raw.NewArray()
		root.Set("Kids", kids)
	}
	for _, old := range srcPages.Refs() {
		ref := m[old]
		page, ok := dst.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		page.Set("Parent", raw.RefObj{R: rootRef})
		kids.Append(raw.RefObj{R: ref})
	}
	count, _ := dst.ResolveNumber(root.KV["Count"])
	root.Set("Count", raw.NumberInt(int64(count)+int64(srcPages.Len())))
	return nil
}

// Mix builds a new document whose pages alternate between the sources,
// taking one page from each in turn. The sources are consumed.
func Mix(srcs ...*raw.Document) (*raw.Document, error) {
	if len(srcs) == 0 {
		return nil, pdferr.Validation("mix", "no documents to mix")
	}
	out := raw.NewDocument(MixVersion)
	lists := make([][]raw.ObjectRef, 0, len(srcs))
	for i, src := range srcs {
		pages, err := pagetree.Pages(src)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		for _, ref := range pages.Refs() {
			if err := pagetree.Materialize(src, ref); err != nil {
				return nil, err
			}
		}
		m, err := Combine(out, src)
		if err != nil {
			return nil, err
		}
		list := make([]raw.ObjectRef, 0, pages.Len())
		for _, ref := range pages.Refs() {
			list = append(list, m[ref])
		}
		lists = append(lists, list)
	}
	pagetree.NewCatalog(out)
	if _, err := pagetree.Flatten(out, RoundRobin(lists)); err != nil {
		return nil, err
	}
	return out, nil
}

// RoundRobin interleaves lists: the first element of each list, then the
// second of each, and so on. Exhausted lists drop out.
func RoundRobin[T any](lists [][]T) []T {
	total, longest := 0, 0
	for _, l := range lists {
		total += len(l)
		longest = max(longest, len(l))
	}
	out := make([]T, 0, total)
	for i := 0; i < longest; i++ {
		for _, l := range lists {
			if i < len(l) {
				out = append(out, l[i])
			}
		}
	}
	return out
}
