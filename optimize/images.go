package optimize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
	"github.com/paradisepdf/pagekit/observability"
)

// ImageCandidate is an image XObject the optimizer can decode.
type ImageCandidate struct {
	Ref        raw.ObjectRef
	Width      int
	Height     int
	ColorSpace string
	// Filter is "", "FlateDecode" or "DCTDecode".
	Filter string
}

// Encoded is a recompressed image. Data is JPEG encoded.
type Encoded struct {
	Data   []byte
	Width  int
	Height int
	Gray   bool
}

// ImageCodec recompresses decoded images. Returning ok=false leaves the
// image untouched.
type ImageCodec interface {
	Encode(ctx context.Context, img image.Image) (out Encoded, ok bool, err error)
}

// Candidates lists the images that can be recompressed: 8-bit DeviceGray or
// DeviceRGB images stored raw or Flate encoded, and JPEG images larger than
// maxDimension in either direction when maxDimension is positive.
func Candidates(doc *raw.Document, maxDimension int) []ImageCandidate {
	var out []ImageCandidate
	for _, ref := range doc.Refs() {
		st, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok {
			continue
		}
		if c, ok := candidate(ref, st, maxDimension); ok {
			out = append(out, c)
		}
	}
	return out
}

func candidate(ref raw.ObjectRef, st *raw.StreamObj, maxDimension int) (ImageCandidate, bool) {
	d := st.Dict
	if sub, _ := d.Name("Subtype"); sub != "Image" {
		return ImageCandidate{}, false
	}
	if mask, _ := d.Get("ImageMask"); mask == raw.Bool(true) {
		return ImageCandidate{}, false
	}
	if _, ok := d.Get("Decode"); ok {
		return ImageCandidate{}, false
	}
	w, _ := d.Int("Width")
	h, _ := d.Int("Height")
	bpc, _ := d.Int("BitsPerComponent")
	cs, _ := d.Name("ColorSpace")
	if w <= 0 || h <= 0 || bpc != 8 || (cs != "DeviceGray" && cs != "DeviceRGB") {
		return ImageCandidate{}, false
	}
	names, _ := filters.ExtractFilters(d)
	filter := ""
	switch len(names) {
	case 0:
	case 1:
		filter = names[0]
	default:
		return ImageCandidate{}, false
	}
	c := ImageCandidate{Ref: ref, Width: int(w), Height: int(h), ColorSpace: cs, Filter: filter}
	switch filter {
	case "", "FlateDecode":
		return c, true
	case "DCTDecode":
		return c, maxDimension > 0 && (c.Width > maxDimension || c.Height > maxDimension)
	}
	return ImageCandidate{}, false
}

func (o *Optimizer) recompressImages(ctx context.Context, doc *raw.Document) (int, error) {
	pipeline := filters.NewDefaultPipeline(filters.Limits{})
	n := 0
	for _, c := range Candidates(doc, o.config.MaxDimension) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		st := doc.Objects[c.Ref].(*raw.StreamObj)
		img, err := toImage(ctx, pipeline, c, st)
		if err != nil {
			o.log.Debug("image not decodable", observability.String("ref", c.Ref.String()), observability.Error("err", err))
			continue
		}
		enc, ok, err := o.config.Codec.Encode(ctx, img)
		if err != nil {
			return n, fmt.Errorf("image %s: %w", c.Ref, err)
		}
		if !ok || len(enc.Data) >= len(st.Data) {
			continue
		}
		cs := "DeviceRGB"
		if enc.Gray {
			cs = "DeviceGray"
		}
		st.Data = enc.Data
		st.Dict.Set("Filter", raw.NameLiteral("DCTDecode"))
		st.Dict.Delete("DecodeParms")
		st.Dict.Set("Width", raw.NumberInt(int64(enc.Width)))
		st.Dict.Set("Height", raw.NumberInt(int64(enc.Height)))
		st.Dict.Set("BitsPerComponent", raw.NumberInt(8))
		st.Dict.Set("ColorSpace", raw.NameLiteral(cs))
		st.Dict.Set("Length", raw.NumberInt(int64(len(enc.Data))))
		n++
	}
	return n, nil
}

func toImage(ctx context.Context, p *filters.Pipeline, c ImageCandidate, st *raw.StreamObj) (image.Image, error) {
	if c.Filter == "DCTDecode" {
		return jpeg.Decode(bytes.NewReader(st.Data))
	}
	data, err := filters.DecodeStream(ctx, p, st)
	if err != nil {
		return nil, err
	}
	width, height := c.Width, c.Height
	switch c.ColorSpace {
	case "DeviceGray":
		if len(data) < width*height {
			return nil, fmt.Errorf("short gray image data: %d bytes", len(data))
		}
		return &image.Gray{Pix: data[:width*height], Stride: width, Rect: image.Rect(0, 0, width, height)}, nil
	case "DeviceRGB":
		if len(data) < width*height*3 {
			return nil, fmt.Errorf("short RGB image data: %d bytes", len(data))
		}
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		i := 0
		for px := 0; px < width*height; px++ {
			offset := px * 4
			img.Pix[offset] = data[i]
			img.Pix[offset+1] = data[i+1]
			img.Pix[offset+2] = data[i+2]
			img.Pix[offset+3] = 255
			i += 3
		}
		return img, nil
	}
	return nil, fmt.Errorf("unsupported colour space %s", c.ColorSpace)
}

// JPEGCodec downscales images larger than MaxDimension with Catmull-Rom
// and encodes them as JPEG at Quality.
type JPEGCodec struct {
	Quality      int
	MaxDimension int
}

func (j JPEGCodec) Encode(ctx context.Context, img image.Image) (Encoded, bool, error) {
	if j.Quality <= 0 {
		return Encoded{}, false, nil
	}
	gray := isGray(img)
	b := img.Bounds()
	if w, h := b.Dx(), b.Dy(); j.MaxDimension > 0 && (w > j.MaxDimension || h > j.MaxDimension) {
		scale := min(float64(j.MaxDimension)/float64(w), float64(j.MaxDimension)/float64(h))
		rect := image.Rect(0, 0, max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1))
		var dst draw.Image
		if gray {
			dst = image.NewGray(rect)
		} else {
			dst = image.NewRGBA(rect)
		}
		draw.CatmullRom.Scale(dst, rect, img, b, draw.Over, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: min(j.Quality, 100)}); err != nil {
		return Encoded{}, false, err
	}
	return Encoded{Data: buf.Bytes(), Width: img.Bounds().Dx(), Height: img.Bounds().Dy(), Gray: gray}, true, nil
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}
