package raw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrMissingObject is returned when a reference points at an identifier that
// is not present in the object store.
var ErrMissingObject = errors.New("object not found")

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// DocumentMetadata contains common PDF info fields.
type DocumentMetadata struct {
	Producer string
	Creator  string
	Title    string
	Author   string
	Subject  string
	Keywords []string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	MaxID     int
	Metadata  DocumentMetadata
	Encrypted bool
}

// NewDocument returns an empty document with an empty trailer.
func NewDocument(version string) *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: version,
	}
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}

// NextRef allocates a fresh identifier above every identifier in use.
func (d *Document) NextRef() ObjectRef {
	d.MaxID++
	return ObjectRef{Num: d.MaxID}
}

// Add stores obj under a freshly allocated identifier.
func (d *Document) Add(obj Object) ObjectRef {
	ref := d.NextRef()
	d.Objects[ref] = obj
	return ref
}

// RecomputeMaxID sets MaxID to the highest object number in the store.
func (d *Document) RecomputeMaxID() {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	d.MaxID = max
}

// Refs returns the identifiers in the store sorted by number then generation.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}

// Get returns the object stored under ref.
func (d *Document) Get(ref ObjectRef) (Object, error) {
	obj, ok := d.Objects[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrMissingObject)
	}
	return obj, nil
}

// Resolve follows obj if it is a reference. Chains of references are followed
// up to a small depth; a dangling reference yields ErrMissingObject.
func (d *Document) Resolve(obj Object) (Object, error) {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj, nil
		}
		next, err := d.Get(ref.R)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, errors.New("reference chain too deep")
}

// ResolveDict resolves obj and returns its dictionary. Streams yield their
// dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	if obj == nil {
		return nil, false
	}
	v, err := d.Resolve(obj)
	if err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case *DictObj:
		return t, true
	case *StreamObj:
		return t.Dict, true
	}
	return nil, false
}

// ResolveArray resolves obj and returns it as an array.
func (d *Document) ResolveArray(obj Object) (*ArrayObj, bool) {
	if obj == nil {
		return nil, false
	}
	v, err := d.Resolve(obj)
	if err != nil {
		return nil, false
	}
	arr, ok := v.(*ArrayObj)
	return arr, ok
}

// ResolveNumber resolves obj and returns its numeric value.
func (d *Document) ResolveNumber(obj Object) (float64, bool) {
	if obj == nil {
		return 0, false
	}
	v, err := d.Resolve(obj)
	if err != nil {
		return 0, false
	}
	n, ok := v.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// Catalog returns the dictionary referenced by the trailer Root entry.
func (d *Document) Catalog() (*DictObj, error) {
	if d.Trailer == nil {
		return nil, errors.New("missing trailer")
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, errors.New("trailer has no Root")
	}
	cat, ok := d.ResolveDict(root)
	if !ok {
		return nil, errors.New("Root is not a dictionary")
	}
	return cat, nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Objects:   make(map[ObjectRef]Object, len(d.Objects)),
		Version:   d.Version,
		MaxID:     d.MaxID,
		Metadata:  d.Metadata,
		Encrypted: d.Encrypted,
	}
	for ref, obj := range d.Objects {
		out.Objects[ref] = Clone(obj)
	}
	if d.Trailer != nil {
		out.Trailer = Clone(d.Trailer).(*DictObj)
	} else {
		out.Trailer = Dict()
	}
	return out
}
