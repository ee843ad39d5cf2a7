package inspect

import (
	"bytes"
	"context"

	"github.com/go-text/typesetting/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
)

// FontInfo describes one font dictionary. The program fields are filled for
// embedded TrueType and OpenType programs that parse.
type FontInfo struct {
	Object         int      `json:"object"`
	BaseFont       string   `json:"base_font"`
	Subtype        string   `json:"subtype"`
	Embedded       bool     `json:"embedded"`
	PostScriptName string   `json:"postscript_name,omitempty"`
	Glyphs         int      `json:"glyphs,omitempty"`
	LayoutTables   []string `json:"layout_tables,omitempty"`
}

var fontFileKeys = []string{"FontFile", "FontFile2", "FontFile3"}

// Fonts lists every font dictionary in the store in object order.
func Fonts(ctx context.Context, doc *raw.Document) []FontInfo {
	pipeline := filters.NewDefaultPipeline(filters.Limits{})
	refs := sortedRefs(doc, func(obj raw.Object) bool { return raw.IsType(obj, "Font") })
	out := make([]FontInfo, 0, len(refs))
	for _, ref := range refs {
		dict, _ := doc.ResolveDict(raw.RefObj{R: ref})
		info := FontInfo{Object: ref.Num}
		info.BaseFont, _ = dict.Name("BaseFont")
		info.Subtype, _ = dict.Name("Subtype")
		fd, _ := dict.Get("FontDescriptor")
		if desc, ok := doc.ResolveDict(fd); ok {
			program, kind := fontProgram(doc, desc)
			info.Embedded = program != nil
			if program != nil && kind != "FontFile" {
				if data, err := filters.DecodeStream(ctx, pipeline, program); err == nil {
					describeProgram(&info, data)
				}
			}
		}
		out = append(out, info)
	}
	return out
}

func fontProgram(doc *raw.Document, desc *raw.DictObj) (*raw.StreamObj, string) {
	for _, key := range fontFileKeys {
		v, ok := desc.Get(key)
		if !ok {
			continue
		}
		obj, err := doc.Resolve(v)
		if err != nil {
			continue
		}
		if st, ok := obj.(*raw.StreamObj); ok {
			return st, key
		}
	}
	return nil, ""
}

// describeProgram reads the name table and glyph count with sfnt and probes
// the OpenType layout tables. Programs sfnt cannot parse (CFF bare, Type 1)
// are left undescribed.
func describeProgram(info *FontInfo, data []byte) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return
	}
	buf := &sfnt.Buffer{}
	if ps, err := f.Name(buf, sfnt.NameIDPostScript); err == nil {
		info.PostScriptName = ps
	}
	info.Glyphs = f.NumGlyphs()

	loader, err := opentype.NewLoader(bytes.NewReader(data))
	if err != nil {
		return
	}
	for _, name := range []string{"GSUB", "GPOS"} {
		if loader.HasTable(opentype.NewTag(name[0], name[1], name[2], name[3])) {
			info.LayoutTables = append(info.LayoutTables, name)
		}
	}
}
