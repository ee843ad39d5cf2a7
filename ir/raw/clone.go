package raw

// Clone returns a deep copy of obj. Scalars are values and are returned as is.
func Clone(obj Object) Object {
	switch t := obj.(type) {
	case *DictObj:
		out := &DictObj{KV: make(map[string]Object, len(t.KV))}
		for k, v := range t.KV {
			out.KV[k] = Clone(v)
		}
		return out
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(t.Items))}
		for i, v := range t.Items {
			out.Items[i] = Clone(v)
		}
		return out
	case *StreamObj:
		data := make([]byte, len(t.Data))
		copy(data, t.Data)
		var dict *DictObj
		if t.Dict != nil {
			dict = Clone(t.Dict).(*DictObj)
		}
		return &StreamObj{Dict: dict, Data: data}
	case StringObj:
		b := make([]byte, len(t.Bytes))
		copy(b, t.Bytes)
		return StringObj{Bytes: b, Hex: t.Hex}
	default:
		return obj
	}
}

// Walk calls fn for obj and every object nested inside it. References are
// reported but not followed.
func Walk(obj Object, fn func(Object)) {
	fn(obj)
	switch t := obj.(type) {
	case *DictObj:
		for _, k := range t.Keys() {
			Walk(t.KV[k], fn)
		}
	case *ArrayObj:
		for _, v := range t.Items {
			Walk(v, fn)
		}
	case *StreamObj:
		if t.Dict != nil {
			Walk(t.Dict, fn)
		}
	}
}
