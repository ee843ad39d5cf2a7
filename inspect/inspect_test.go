package inspect

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/paradisepdf/pagekit/internal/pdftest"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/parser"
	"github.com/paradisepdf/pagekit/source"
)

func load(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func fixture() *pdftest.Doc {
	d := pdftest.Pages(2)
	d.Set(3, "<< /Type /Page /Parent 2 0 R /Contents 5 0 R /CropBox [10 10 600 780] /TrimBox [20 20 590 770] /Rotate 90 /Resources << /Font << /F1 10 0 R /F2 12 0 R >> /XObject << /Im0 14 0 R >> >> >>")
	d.Set(4, "<< /Type /Page /Parent 2 0 R /Contents 6 0 R /MediaBox [0 0 842 595] >>")
	d.Set(10, "<< /Type /Font /Subtype /TrueType /BaseFont /GoRegular /FontDescriptor 11 0 R >>")
	d.Set(11, "<< /Type /FontDescriptor /FontName /GoRegular /FontFile2 13 0 R >>")
	d.Stream(13, "", goregular.TTF)
	d.Set(12, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	d.Stream(14, "/Type /XObject /Subtype /Image /Width 2 /Height 3 /BitsPerComponent 8 /ColorSpace [/Indexed /DeviceRGB 1 <000000FFFFFF>]", []byte{0, 1, 0, 1, 0, 1})
	d.Set(15, "<< /Title <FEFF00480069> /Author (Ann) /Trapped /False >>")
	d.Trailer = "/Info 15 0 R"
	return d
}

func TestBoxes(t *testing.T) {
	boxes, err := Boxes(load(t, fixture().Bytes()))
	if err != nil {
		t.Fatalf("boxes: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("got %d pages", len(boxes))
	}
	first := boxes[0]
	if first.MediaBox == nil || *first.MediaBox != (Rect{0, 0, 612, 792}) {
		t.Errorf("inherited MediaBox %v", first.MediaBox)
	}
	if first.CropBox == nil || first.CropBox[0] != 10 {
		t.Errorf("CropBox %v", first.CropBox)
	}
	if first.TrimBox == nil || first.BleedBox != nil || first.ArtBox != nil {
		t.Errorf("unexpected boxes %+v", first)
	}
	if boxes[1].CropBox != nil {
		t.Errorf("page 2 has no CropBox")
	}
}

func TestPagesOrganiserMetadata(t *testing.T) {
	infos, err := Pages(load(t, fixture().Bytes()))
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if infos[0].Rotation != 90 || infos[0].Landscape {
		t.Errorf("page 1: %+v", infos[0])
	}
	if !infos[1].Landscape || infos[1].Width != 842 {
		t.Errorf("page 2: %+v", infos[1])
	}
}

func TestDescribe(t *testing.T) {
	data := fixture().Bytes()
	props, err := Describe(context.Background(), load(t, data), int64(len(data)))
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if props.PageCount != 2 || props.Version != "1.7" || props.Encrypted || props.FileSize != int64(len(data)) {
		t.Errorf("summary %+v", props)
	}
	if props.Info["Title"] != "Hi" || props.Info["Author"] != "Ann" || props.Info["Trapped"] != "False" {
		t.Errorf("info %v", props.Info)
	}

	if len(props.Fonts) != 2 {
		t.Fatalf("fonts %+v", props.Fonts)
	}
	tt, t1 := props.Fonts[0], props.Fonts[1]
	if !tt.Embedded || tt.Subtype != "TrueType" || tt.PostScriptName == "" || tt.Glyphs == 0 {
		t.Errorf("embedded font %+v", tt)
	}
	if t1.Embedded || t1.BaseFont != "Helvetica" || t1.PostScriptName != "" {
		t.Errorf("standard font %+v", t1)
	}

	if len(props.Images) != 1 {
		t.Fatalf("images %+v", props.Images)
	}
	img := props.Images[0]
	if img.Width != 2 || img.Height != 3 || img.BitsPerComponent != 8 || img.ColorSpace != "Indexed" || len(img.Filters) != 0 {
		t.Errorf("image %+v", img)
	}
}

func TestRawDump(t *testing.T) {
	data := pdftest.Pages(40).Bytes()
	dump, err := Raw(source.Bytes(data))
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if dump.Size != int64(len(data)) {
		t.Errorf("size %d", dump.Size)
	}
	if !strings.HasPrefix(dump.Head, "%PDF-1.7\n%....") {
		t.Errorf("head %q", dump.Head[:16])
	}
	if !strings.HasSuffix(dump.Tail, "%%EOF\n") || len(dump.Tail) != DumpWindow {
		t.Errorf("tail %q", dump.Tail[len(dump.Tail)-16:])
	}
	if len(dump.HeadHex) <= len(dump.Head) || dump.TailHex == "" {
		t.Errorf("hex dumps missing")
	}

	small, err := Raw(source.Bytes([]byte("%PDF-1.4\n%%EOF")))
	if err != nil || small.Head != small.Tail {
		t.Fatalf("short files show the same bytes in both windows: %+v %v", small, err)
	}
}
