package pagetree

import (
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/pdferr"
)

// DefaultMediaBox is US Letter, used when a document has no page to copy a
// size from.
func DefaultMediaBox() *raw.ArrayObj { return raw.Rect(0, 0, 612, 792) }

// NewCatalog stores an empty catalog and points the trailer Root at it.
func NewCatalog(doc *raw.Document) raw.ObjectRef {
	cat := raw.Dict()
	cat.Set("Type", raw.NameLiteral("Catalog"))
	ref := doc.Add(cat)
	doc.Trailer.Set("Root", raw.RefObj{R: ref})
	return ref
}

// Flatten replaces the page tree with a single Pages node whose Kids are
// refs, in order. Listed pages get their inherited attributes materialized
// before their Parent is moved; a page listed more than once is cloned so
// every Kids entry owns its Parent. The old tree nodes are left for Prune.
func Flatten(doc *raw.Document, refs []raw.ObjectRef) (raw.ObjectRef, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return raw.ObjectRef{}, pdferr.Validation("flatten", "%v", err)
	}
	kids := make([]raw.Object, 0, len(refs))
	pages := make([]*raw.DictObj, 0, len(refs))
	seen := make(map[raw.ObjectRef]bool, len(refs))
	for _, ref := range refs {
		dict, ok := doc.Objects[ref].(*raw.DictObj)
		if !ok || !IsPage(dict) {
			return raw.ObjectRef{}, pdferr.Validation("flatten", "%s is not a page", ref)
		}
		if !seen[ref] {
			if err := Materialize(doc, ref); err != nil {
				return raw.ObjectRef{}, err
			}
			seen[ref] = true
		} else {
			dict = raw.Clone(dict).(*raw.DictObj)
			ref = doc.Add(dict)
		}
		kids = append(kids, raw.RefObj{R: ref})
		pages = append(pages, dict)
	}

	root := raw.Dict()
	root.Set("Type", raw.NameLiteral("Pages"))
	root.Set("Kids", raw.NewArray(kids...))
	root.Set("Count", raw.NumberInt(int64(len(kids))))
	rootRef := doc.Add(root)
	for _, page := range pages {
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Parent", raw.RefObj{R: rootRef})
	}
	cat.Set("Pages", raw.RefObj{R: rootRef})
	return rootRef, nil
}

// NewBlankPage stores a page with the given MediaBox, an empty Resources
// dictionary and its own empty content stream. The page has no Parent until
// it is placed in a tree.
func NewBlankPage(doc *raw.Document, mediaBox *raw.ArrayObj) raw.ObjectRef {
	content := doc.Add(raw.NewStream(nil, nil))
	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("MediaBox", raw.Clone(mediaBox))
	page.Set("Resources", raw.Dict())
	page.Set("Contents", raw.RefObj{R: content})
	return doc.Add(page)
}

// BlankMediaBox returns the MediaBox of the first page, or the default size
// when the document has no usable page.
func BlankMediaBox(doc *raw.Document) *raw.ArrayObj {
	m, err := Pages(doc)
	if err != nil || m.Len() == 0 {
		return DefaultMediaBox()
	}
	first, _ := m.Lookup(1)
	if box, ok := MediaBox(doc, first); ok {
		return raw.Clone(box).(*raw.ArrayObj)
	}
	return DefaultMediaBox()
}
