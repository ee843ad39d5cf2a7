package optimize

import (
	"github.com/paradisepdf/pagekit/graph"
	"github.com/paradisepdf/pagekit/ir/raw"
)

// combineObjects redirects references from duplicate objects to the first
// identical one and deletes the duplicates. Merging can make further
// objects identical, so it repeats until nothing changes.
func (o *Optimizer) combineObjects(doc *raw.Document, includeStreams, includeOthers bool) int {
	total := 0
	changed := true
	var buf []byte
	for changed {
		changed = false
		seen := make(map[digest]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)

		for _, ref := range doc.Refs() {
			obj := doc.Objects[ref]
			_, isStream := obj.(*raw.StreamObj)
			if isStream && !includeStreams {
				continue
			}
			if !isStream && !includeOthers {
				continue
			}
			if structural(obj) {
				continue
			}

			var h digest
			h, buf = contentKey(buf, obj)
			if original, ok := seen[h]; ok {
				replacements[ref] = original
				changed = true
			} else {
				seen[h] = ref
			}
		}

		if len(replacements) > 0 {
			for dup := range replacements {
				delete(doc.Objects, dup)
			}
			for ref, obj := range doc.Objects {
				doc.Objects[ref] = graph.RemapRefs(obj, replacements)
			}
			if doc.Trailer != nil {
				graph.RemapRefs(doc.Trailer, replacements)
			}
			total += len(replacements)
		}
	}
	return total
}
