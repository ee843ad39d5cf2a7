package inspect

import (
	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
)

// ImageInfo describes one image XObject.
type ImageInfo struct {
	Object           int      `json:"object"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	BitsPerComponent int      `json:"bits_per_component"`
	ColorSpace       string   `json:"color_space,omitempty"`
	Filters          []string `json:"filters,omitempty"`
}

func isImage(obj raw.Object) bool {
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return false
	}
	sub, _ := st.Dict.Name("Subtype")
	return sub == "Image"
}

// Images lists every image stream in the store in object order.
func Images(doc *raw.Document) []ImageInfo {
	refs := sortedRefs(doc, isImage)
	out := make([]ImageInfo, 0, len(refs))
	for _, ref := range refs {
		dict := doc.Objects[ref].(*raw.StreamObj).Dict
		info := ImageInfo{Object: ref.Num}
		info.Width = intValue(doc, dict, "Width")
		info.Height = intValue(doc, dict, "Height")
		info.BitsPerComponent = intValue(doc, dict, "BitsPerComponent")
		cs, _ := dict.Get("ColorSpace")
		info.ColorSpace = ColorSpaceName(doc, cs)
		info.Filters, _ = filters.ExtractFilters(dict)
		out = append(out, info)
	}
	return out
}

// ColorSpaceName returns the family name of a colour space: the name itself
// or the first element of an array form such as [/ICCBased 5 0 R].
func ColorSpaceName(doc *raw.Document, cs raw.Object) string {
	if cs == nil {
		return ""
	}
	v, err := doc.Resolve(cs)
	if err != nil {
		return ""
	}
	switch t := v.(type) {
	case raw.NameObj:
		return t.Value()
	case *raw.ArrayObj:
		if t.Len() > 0 {
			if n, ok := t.Items[0].(raw.NameObj); ok {
				return n.Value()
			}
		}
	}
	return ""
}

func intValue(doc *raw.Document, dict *raw.DictObj, key string) int {
	obj, _ := dict.Get(key)
	v, ok := doc.ResolveNumber(obj)
	if !ok {
		return 0
	}
	return int(v)
}
