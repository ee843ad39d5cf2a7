// Package inspect reports read-only facts about a loaded document: page
// boxes, organiser metadata, document properties, fonts, images and raw
// header and trailer bytes.
package inspect

import (
	"context"
	"sort"

	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/pagetree"
)

// Rect is a box as llx, lly, urx, ury.
type Rect [4]float64

func (r Rect) Width() float64  { return r[2] - r[0] }
func (r Rect) Height() float64 { return r[3] - r[1] }

// PageBoxes lists the boundary boxes of one page. Boxes the page does not
// define are nil; MediaBox and CropBox may be inherited.
type PageBoxes struct {
	Page     int   `json:"page"`
	MediaBox *Rect `json:"media_box"`
	CropBox  *Rect `json:"crop_box"`
	BleedBox *Rect `json:"bleed_box"`
	TrimBox  *Rect `json:"trim_box"`
	ArtBox   *Rect `json:"art_box"`
}

// PageInfo is what a page organiser shows for a thumbnail.
type PageInfo struct {
	Page      int     `json:"page"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Rotation  int     `json:"rotation"`
	Landscape bool    `json:"landscape"`
}

// Properties summarizes a document.
type Properties struct {
	Version   string            `json:"version"`
	PageCount int               `json:"page_count"`
	FileSize  int64             `json:"file_size"`
	Encrypted bool              `json:"encrypted"`
	Info      map[string]string `json:"info,omitempty"`
	Fonts     []FontInfo        `json:"fonts,omitempty"`
	Images    []ImageInfo       `json:"images,omitempty"`
}

func rect(doc *raw.Document, arr *raw.ArrayObj) *Rect {
	var r Rect
	for i := 0; i < 4; i++ {
		v, ok := doc.ResolveNumber(arr.Items[i])
		if !ok {
			return nil
		}
		r[i] = v
	}
	return &r
}

func pageBox(doc *raw.Document, page raw.ObjectRef, key string) *Rect {
	arr, ok := pagetree.Box(doc, page, key)
	if !ok {
		return nil
	}
	return rect(doc, arr)
}

// Boxes returns the boxes of every page in order.
func Boxes(doc *raw.Document) ([]PageBoxes, error) {
	pages, err := pagetree.Pages(doc)
	if err != nil {
		return nil, err
	}
	out := make([]PageBoxes, 0, pages.Len())
	for i, ref := range pages.Refs() {
		out = append(out, PageBoxes{
			Page:     i + 1,
			MediaBox: pageBox(doc, ref, "MediaBox"),
			CropBox:  pageBox(doc, ref, "CropBox"),
			BleedBox: pageBox(doc, ref, "BleedBox"),
			TrimBox:  pageBox(doc, ref, "TrimBox"),
			ArtBox:   pageBox(doc, ref, "ArtBox"),
		})
	}
	return out, nil
}

// Pages returns organiser metadata for every page. A page without a usable
// MediaBox reports the default size.
func Pages(doc *raw.Document) ([]PageInfo, error) {
	pages, err := pagetree.Pages(doc)
	if err != nil {
		return nil, err
	}
	out := make([]PageInfo, 0, pages.Len())
	for i, ref := range pages.Refs() {
		box := pageBox(doc, ref, "MediaBox")
		if box == nil {
			box = rect(doc, pagetree.DefaultMediaBox())
		}
		out = append(out, PageInfo{
			Page:      i + 1,
			Width:     box.Width(),
			Height:    box.Height(),
			Rotation:  pagetree.Rotation(doc, ref),
			Landscape: box.Width() > box.Height(),
		})
	}
	return out, nil
}

// Describe collects the document properties. fileSize is the size of the
// source file in bytes.
func Describe(ctx context.Context, doc *raw.Document, fileSize int64) (*Properties, error) {
	pages, err := pagetree.Pages(doc)
	if err != nil {
		return nil, err
	}
	return &Properties{
		Version:   doc.Version,
		PageCount: pages.Len(),
		FileSize:  fileSize,
		Encrypted: doc.Encrypted,
		Info:      Info(doc),
		Fonts:     Fonts(ctx, doc),
		Images:    Images(doc),
	}, nil
}

// Info decodes the string and name entries of the trailer Info dictionary.
func Info(doc *raw.Document) map[string]string {
	ref, _ := doc.Trailer.Get("Info")
	dict, ok := doc.ResolveDict(ref)
	if !ok {
		return nil
	}
	out := make(map[string]string, dict.Len())
	for _, key := range dict.Keys() {
		v, err := doc.Resolve(dict.KV[key])
		if err != nil {
			continue
		}
		switch t := v.(type) {
		case raw.StringObj:
			out[key] = raw.DecodeText(t.Value())
		case raw.NameObj:
			out[key] = t.Value()
		}
	}
	return out
}

// sortedRefs returns the identifiers of the objects for which keep is true.
func sortedRefs(doc *raw.Document, keep func(raw.Object) bool) []raw.ObjectRef {
	var refs []raw.ObjectRef
	for ref, obj := range doc.Objects {
		if keep(obj) {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	return refs
}
