// Package pagetree reads and rebuilds the page tree of a raw document.
package pagetree

import (
	"errors"
	"fmt"

	"github.com/paradisepdf/pagekit/ir/raw"
)

// InheritableKeys lists the page attributes a Page may take from its
// ancestors.
var InheritableKeys = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// maxParentDepth bounds Parent chain walks in malformed trees.
const maxParentDepth = 64

var ErrNoPages = errors.New("catalog has no Pages entry")

// PageMap is the ordered list of page leaves of a document.
type PageMap struct {
	refs  []raw.ObjectRef
	index map[raw.ObjectRef]int
}

func (m *PageMap) Len() int { return len(m.refs) }

// Lookup returns the page with 1-based number n.
func (m *PageMap) Lookup(n int) (raw.ObjectRef, bool) {
	if n < 1 || n > len(m.refs) {
		return raw.ObjectRef{}, false
	}
	return m.refs[n-1], true
}

// Refs returns a copy of the page identifiers in reading order.
func (m *PageMap) Refs() []raw.ObjectRef {
	out := make([]raw.ObjectRef, len(m.refs))
	copy(out, m.refs)
	return out
}

// Number returns the 1-based number of the first occurrence of ref.
func (m *PageMap) Number(ref raw.ObjectRef) (int, bool) {
	i, ok := m.index[ref]
	return i + 1, ok
}

// Pages walks the page tree depth first from the catalog. Kids that do not
// resolve, or that would revisit a node on the current path, are skipped.
// The document is not modified.
func Pages(doc *raw.Document) (*PageMap, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	root, ok := cat.Ref("Pages")
	if !ok {
		return nil, ErrNoPages
	}
	m := &PageMap{index: make(map[raw.ObjectRef]int)}
	walk(doc, root, make(map[raw.ObjectRef]bool), m)
	return m, nil
}

func walk(doc *raw.Document, ref raw.ObjectRef, path map[raw.ObjectRef]bool, m *PageMap) {
	if path[ref] {
		return
	}
	obj, err := doc.Get(ref)
	if err != nil {
		return
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return
	}
	if IsPage(dict) {
		if _, seen := m.index[ref]; !seen {
			m.index[ref] = len(m.refs)
		}
		m.refs = append(m.refs, ref)
		return
	}
	kids, ok := doc.ResolveArray(dict.KV["Kids"])
	if !ok {
		return
	}
	path[ref] = true
	for _, kid := range kids.Items {
		if r, ok := kid.(raw.RefObj); ok {
			walk(doc, r.R, path, m)
		}
	}
	delete(path, ref)
}

// IsPage reports whether dict is a page leaf: /Type /Page, or a node
// without Kids.
func IsPage(dict *raw.DictObj) bool {
	if t, ok := dict.Name("Type"); ok {
		return t == "Page"
	}
	_, hasKids := dict.Get("Kids")
	return !hasKids
}

// Inherited returns the value of key on the page or its nearest ancestor
// that defines it. The value is returned as stored, references included.
func Inherited(doc *raw.Document, page raw.ObjectRef, key string) (raw.Object, bool) {
	dict, ok := doc.ResolveDict(raw.RefObj{R: page})
	for depth := 0; ok && depth < maxParentDepth; depth++ {
		if v, found := dict.Get(key); found {
			if _, null := v.(raw.NullObj); !null {
				return v, true
			}
		}
		parent, has := dict.Get("Parent")
		if !has {
			break
		}
		dict, ok = doc.ResolveDict(parent)
	}
	return nil, false
}

// Materialize copies the inheritable attributes the page takes from its
// ancestors onto the page itself, so it no longer depends on them.
func Materialize(doc *raw.Document, page raw.ObjectRef) error {
	dict, ok := doc.ResolveDict(raw.RefObj{R: page})
	if !ok {
		return fmt.Errorf("page %s: %w", page, raw.ErrMissingObject)
	}
	for _, key := range InheritableKeys {
		if _, own := dict.Get(key); own {
			continue
		}
		if v, ok := Inherited(doc, page, key); ok {
			dict.Set(key, raw.Clone(v))
		}
	}
	return nil
}

// MediaBox resolves the effective MediaBox of a page.
func MediaBox(doc *raw.Document, page raw.ObjectRef) (*raw.ArrayObj, bool) {
	return Box(doc, page, "MediaBox")
}

// Box resolves a page boundary rectangle. MediaBox and CropBox are looked up
// through the ancestors; the other boxes only on the page.
func Box(doc *raw.Document, page raw.ObjectRef, key string) (*raw.ArrayObj, bool) {
	var v raw.Object
	ok := false
	switch key {
	case "MediaBox", "CropBox":
		v, ok = Inherited(doc, page, key)
	default:
		if dict, found := doc.ResolveDict(raw.RefObj{R: page}); found {
			v, ok = dict.Get(key)
		}
	}
	if !ok {
		return nil, false
	}
	arr, ok := doc.ResolveArray(v)
	if !ok || arr.Len() != 4 {
		return nil, false
	}
	return arr, true
}

// Rotation returns the effective /Rotate of a page, 0 when absent.
func Rotation(doc *raw.Document, page raw.ObjectRef) int {
	v, ok := Inherited(doc, page, "Rotate")
	if !ok {
		return 0
	}
	f, ok := doc.ResolveNumber(v)
	if !ok {
		return 0
	}
	return int(f)
}
