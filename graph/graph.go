// Package graph holds the whole-document operations on the indirect object
// store: reachability, pruning, renumbering and closure extraction.
package graph

import (
	"github.com/paradisepdf/pagekit/ir/raw"
)

// Reachable marks every identifier reachable from the trailer. Dangling
// references are marked too; callers check the store for presence.
func Reachable(doc *raw.Document) map[raw.ObjectRef]bool {
	reachable := make(map[raw.ObjectRef]bool)
	if doc.Trailer != nil {
		markReachable(doc, doc.Trailer, reachable, nil)
	}
	return reachable
}

// markReachable walks obj and follows references. Keys listed in skip are
// not descended into.
func markReachable(doc *raw.Document, obj raw.Object, reachable map[raw.ObjectRef]bool, skip map[string]bool) {
	if obj == nil {
		return
	}
	switch t := obj.(type) {
	case raw.RefObj:
		ref := t.Ref()
		if reachable[ref] {
			return
		}
		reachable[ref] = true
		if target, ok := doc.Objects[ref]; ok {
			markReachable(doc, target, reachable, skip)
		}
	case *raw.ArrayObj:
		for _, v := range t.Items {
			markReachable(doc, v, reachable, skip)
		}
	case *raw.DictObj:
		for k, v := range t.KV {
			if skip[k] {
				continue
			}
			markReachable(doc, v, reachable, skip)
		}
	case *raw.StreamObj:
		if t.Dict != nil {
			markReachable(doc, t.Dict, reachable, skip)
		}
	}
}

// Prune drops every object not reachable from the trailer and rewrites
// references to absent identifiers as null. It returns the number of objects
// removed.
func Prune(doc *raw.Document) int {
	reachable := Reachable(doc)
	removed := 0
	for ref := range doc.Objects {
		if !reachable[ref] {
			delete(doc.Objects, ref)
			removed++
		}
	}
	cutDangling(doc)
	return removed
}

// cutDangling rewrites references to identifiers absent from the store as
// null, in every object and in the trailer.
func cutDangling(doc *raw.Document) {
	cut := func(r raw.RefObj) raw.Object {
		if _, ok := doc.Objects[r.R]; !ok {
			return raw.NullObj{}
		}
		return r
	}
	for ref, obj := range doc.Objects {
		doc.Objects[ref] = rewriteRefs(obj, cut)
	}
	if doc.Trailer != nil {
		rewriteRefs(doc.Trailer, cut)
	}
}

// rewriteRefs replaces every reference inside obj with fn's result.
// Containers are modified in place; the returned object replaces obj.
func rewriteRefs(obj raw.Object, fn func(raw.RefObj) raw.Object) raw.Object {
	switch t := obj.(type) {
	case raw.RefObj:
		return fn(t)
	case *raw.ArrayObj:
		for i, v := range t.Items {
			t.Items[i] = rewriteRefs(v, fn)
		}
	case *raw.DictObj:
		for k, v := range t.KV {
			t.KV[k] = rewriteRefs(v, fn)
		}
	case *raw.StreamObj:
		if t.Dict != nil {
			rewriteRefs(t.Dict, fn)
		}
	}
	return obj
}

// RemapRefs rewrites the references inside obj according to m. References
// missing from m are left alone.
func RemapRefs(obj raw.Object, m map[raw.ObjectRef]raw.ObjectRef) raw.Object {
	return rewriteRefs(obj, func(r raw.RefObj) raw.Object {
		if to, ok := m[r.R]; ok {
			return raw.RefObj{R: to}
		}
		return r
	})
}

// Renumber moves every object of doc to number+offset with generation 0 and
// remaps all references, including the trailer's. Identifiers that would
// coincide because they differ only in generation are moved above the
// highest number. References to absent identifiers become null first, so
// no old number survives to alias an object of another store. It returns
// the old to new identifier map.
func Renumber(doc *raw.Document, offset int) map[raw.ObjectRef]raw.ObjectRef {
	cutDangling(doc)
	m := make(map[raw.ObjectRef]raw.ObjectRef, len(doc.Objects))
	taken := make(map[int]bool, len(doc.Objects))
	refs := doc.Refs()
	next := doc.MaxID
	if n := len(refs); n > 0 && refs[n-1].Num > next {
		next = refs[n-1].Num
	}
	next += offset
	for _, ref := range refs {
		num := ref.Num + offset
		if taken[num] {
			next++
			num = next
		}
		taken[num] = true
		m[ref] = raw.ObjectRef{Num: num}
	}
	apply(doc, m)
	doc.MaxID = next
	return m
}

// Compact renumbers the store to the dense range 1..n in ascending order of
// the current identifiers.
func Compact(doc *raw.Document) map[raw.ObjectRef]raw.ObjectRef {
	refs := doc.Refs()
	m := make(map[raw.ObjectRef]raw.ObjectRef, len(refs))
	for i, ref := range refs {
		m[ref] = raw.ObjectRef{Num: i + 1}
	}
	apply(doc, m)
	doc.MaxID = len(refs)
	return m
}

func apply(doc *raw.Document, m map[raw.ObjectRef]raw.ObjectRef) {
	objects := make(map[raw.ObjectRef]raw.Object, len(doc.Objects))
	for ref, obj := range doc.Objects {
		objects[m[ref]] = RemapRefs(obj, m)
	}
	doc.Objects = objects
	if doc.Trailer != nil {
		RemapRefs(doc.Trailer, m)
	}
}

// Subset copies the transitive closure of roots into a new document that
// keeps the source identifiers. Parent entries are not followed, and
// references to identifiers in cut are rewritten to null so the closure never
// reaches them. The source document is not modified.
func Subset(doc *raw.Document, roots []raw.ObjectRef, cut map[raw.ObjectRef]bool) *raw.Document {
	reachable := make(map[raw.ObjectRef]bool, len(cut))
	for ref := range cut {
		reachable[ref] = true
	}
	for _, root := range roots {
		markReachable(doc, raw.RefObj{R: root}, reachable, map[string]bool{"Parent": true})
	}
	out := raw.NewDocument(doc.Version)
	out.MaxID = doc.MaxID
	out.Metadata = doc.Metadata
	nullCut := func(r raw.RefObj) raw.Object {
		if cut[r.R] {
			return raw.NullObj{}
		}
		return r
	}
	for ref := range reachable {
		if cut[ref] {
			continue
		}
		obj, ok := doc.Objects[ref]
		if !ok {
			continue
		}
		out.Objects[ref] = rewriteRefs(raw.Clone(obj), nullCut)
	}
	return out
}
