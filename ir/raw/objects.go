package raw

import "sort"

// Concrete implementations for raw objects.

// Name object
type NameObj struct{ Val string }

func (n NameObj) Type() string     { return "name" }
func (n NameObj) IsIndirect() bool { return false }
func (n NameObj) Value() string    { return n.Val }

// Number object
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Type() string     { return "number" }
func (n NumberObj) IsIndirect() bool { return false }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}
func (n NumberObj) IsInteger() bool { return n.IsInt }

// Boolean object
type BoolObj struct{ V bool }

func (b BoolObj) Type() string     { return "boolean" }
func (b BoolObj) IsIndirect() bool { return false }
func (b BoolObj) Value() bool      { return b.V }

// Null object
type NullObj struct{}

func (n NullObj) Type() string     { return "null" }
func (n NullObj) IsIndirect() bool { return false }

// String object. Hex records the encoding the string was read with so it can
// be written back the same way.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (s StringObj) Type() string     { return "string" }
func (s StringObj) IsIndirect() bool { return false }
func (s StringObj) Value() []byte    { return s.Bytes }
func (s StringObj) IsHex() bool      { return s.Hex }

// Array object
type ArrayObj struct{ Items []Object }

func (a *ArrayObj) Type() string     { return "array" }
func (a *ArrayObj) IsIndirect() bool { return false }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// Dictionary object
type DictObj struct{ KV map[string]Object }

func (d *DictObj) Type() string     { return "dict" }
func (d *DictObj) IsIndirect() bool { return false }
func (d *DictObj) Get(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.KV[key]
	return o, ok
}
func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}
func (d *DictObj) Delete(key string) { delete(d.KV, key) }
func (d *DictObj) Len() int          { return len(d.KV) }

// Keys returns the dictionary keys in sorted order.
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the value of key when it is a direct name.
func (d *DictObj) Name(key string) (string, bool) {
	o, ok := d.Get(key)
	if !ok {
		return "", false
	}
	n, ok := o.(NameObj)
	return n.Val, ok
}

// Int returns the value of key when it is a direct number.
func (d *DictObj) Int(key string) (int64, bool) {
	o, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// Number returns the value of key as a float when it is a direct number.
func (d *DictObj) Number(key string) (float64, bool) {
	o, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// Array returns the value of key when it is a direct array.
func (d *DictObj) Array(key string) (*ArrayObj, bool) {
	o, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	a, ok := o.(*ArrayObj)
	return a, ok
}

// Dict returns the value of key when it is a direct dictionary.
func (d *DictObj) Dict(key string) (*DictObj, bool) {
	o, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := o.(*DictObj)
	return v, ok
}

// Ref returns the value of key when it is an indirect reference.
func (d *DictObj) Ref(key string) (ObjectRef, bool) {
	o, ok := d.Get(key)
	if !ok {
		return ObjectRef{}, false
	}
	r, ok := o.(RefObj)
	return r.R, ok
}

// Str returns the value of key when it is a direct string.
func (d *DictObj) Str(key string) ([]byte, bool) {
	o, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := o.(StringObj)
	return s.Bytes, ok
}

// Stream object
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (s *StreamObj) Type() string         { return "stream" }
func (s *StreamObj) IsIndirect() bool     { return false }
func (s *StreamObj) Dictionary() *DictObj { return s.Dict }
func (s *StreamObj) RawData() []byte      { return s.Data }
func (s *StreamObj) Length() int64        { return int64(len(s.Data)) }

// Reference object
type RefObj struct{ R ObjectRef }

func (r RefObj) Type() string     { return "ref" }
func (r RefObj) IsIndirect() bool { return true }
func (r RefObj) Ref() ObjectRef   { return r.R }

// IsType reports whether obj is a dictionary (or stream) with /Type name.
func IsType(obj Object, name string) bool {
	var d *DictObj
	switch t := obj.(type) {
	case *DictObj:
		d = t
	case *StreamObj:
		d = t.Dict
	default:
		return false
	}
	v, ok := d.Name("Type")
	return ok && v == name
}

// Helpers
func NameLiteral(v string) NameObj    { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj { return NumberObj{F: f, IsInt: false} }
func Bool(v bool) BoolObj             { return BoolObj{V: v} }
func Str(bytes []byte) StringObj      { return StringObj{Bytes: bytes} }
func HexStr(bytes []byte) StringObj   { return StringObj{Bytes: bytes, Hex: true} }
func NewArray(items ...Object) *ArrayObj {
	return &ArrayObj{Items: items}
}
func Dict() *DictObj { return &DictObj{KV: make(map[string]Object)} }
func NewStream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = Dict()
	}
	return &StreamObj{Dict: dict, Data: data}
}
func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// Rect builds a four-number rectangle array.
func Rect(llx, lly, urx, ury float64) *ArrayObj {
	return NewArray(num(llx), num(lly), num(urx), num(ury))
}

func num(f float64) NumberObj {
	if f == float64(int64(f)) {
		return NumberInt(int64(f))
	}
	return NumberFloat(f)
}
