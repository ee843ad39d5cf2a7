package optimize

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
)

func imageStream(width, height int, cs string, data []byte) *raw.StreamObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Image"))
	d.Set("Width", raw.NumberInt(int64(width)))
	d.Set("Height", raw.NumberInt(int64(height)))
	d.Set("BitsPerComponent", raw.NumberInt(8))
	d.Set("ColorSpace", raw.NameLiteral(cs))
	return raw.NewStream(d, data)
}

func solid(n int, v byte) []byte { return bytes.Repeat([]byte{v}, n) }

func TestCandidates(t *testing.T) {
	doc := raw.NewDocument("1.7")
	doc.Objects[raw.ObjectRef{Num: 1}] = imageStream(4, 4, "DeviceRGB", solid(48, 9))
	flate, _ := filters.Flate(solid(16, 3))
	fl := imageStream(4, 4, "DeviceGray", flate)
	fl.Dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	doc.Objects[raw.ObjectRef{Num: 2}] = fl
	cmyk := imageStream(4, 4, "DeviceCMYK", solid(64, 0))
	doc.Objects[raw.ObjectRef{Num: 3}] = cmyk
	mask := imageStream(4, 4, "DeviceGray", solid(16, 0))
	mask.Dict.Set("ImageMask", raw.Bool(true))
	doc.Objects[raw.ObjectRef{Num: 4}] = mask
	big := imageStream(3000, 10, "DeviceRGB", []byte{0xff, 0xd8})
	big.Dict.Set("Filter", raw.NameLiteral("DCTDecode"))
	doc.Objects[raw.ObjectRef{Num: 5}] = big
	small := imageStream(30, 10, "DeviceRGB", []byte{0xff, 0xd8})
	small.Dict.Set("Filter", raw.NameLiteral("DCTDecode"))
	doc.Objects[raw.ObjectRef{Num: 6}] = small

	got := Candidates(doc, 2000)
	var nums []int
	for _, c := range got {
		nums = append(nums, c.Ref.Num)
	}
	if len(nums) != 3 || nums[0] != 1 || nums[1] != 2 || nums[2] != 5 {
		t.Fatalf("candidates %v", nums)
	}
	if len(Candidates(doc, 0)) != 2 {
		t.Fatalf("JPEG images are candidates only with a dimension limit")
	}
}

func TestOptimizeImages(t *testing.T) {
	width, height := 64, 64
	data := make([]byte, width*height*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = 255
	}
	doc := raw.NewDocument("1.7")
	ref := raw.ObjectRef{Num: 1}
	doc.Objects[ref] = imageStream(width, height, "DeviceRGB", data)

	stats, err := New(Config{Codec: JPEGCodec{Quality: 75}}).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if stats.Recompressed != 1 {
		t.Fatalf("stats %+v", stats)
	}
	st := doc.Objects[ref].(*raw.StreamObj)
	if f, _ := st.Dict.Name("Filter"); f != "DCTDecode" {
		t.Errorf("Expected Filter to be DCTDecode, got %q", f)
	}
	img, err := jpeg.Decode(bytes.NewReader(st.Data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	r, g, _, _ := img.At(10, 10).RGBA()
	if r>>8 < 200 || g>>8 > 60 {
		t.Errorf("colour lost: r=%d g=%d", r>>8, g>>8)
	}
}

func TestOptimizeImages_GrayDownsample(t *testing.T) {
	width, height := 100, 50
	st := imageStream(width, height, "DeviceGray", solid(width*height, 128))
	doc := raw.NewDocument("1.7")
	ref := raw.ObjectRef{Num: 1}
	doc.Objects[ref] = st

	if _, err := New(Config{Codec: JPEGCodec{Quality: 60, MaxDimension: 20}}).Optimize(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if w, _ := st.Dict.Int("Width"); w != 20 {
		t.Errorf("width %d, want 20", w)
	}
	if h, _ := st.Dict.Int("Height"); h != 10 {
		t.Errorf("height %d, want 10", h)
	}
	if cs, _ := st.Dict.Name("ColorSpace"); cs != "DeviceGray" {
		t.Errorf("Expected ColorSpace to be DeviceGray, got %s", cs)
	}
	img, err := jpeg.Decode(bytes.NewReader(st.Data))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("expected a grayscale JPEG, got %T", img)
	}
}

type refusingCodec struct{ calls int }

func (c *refusingCodec) Encode(ctx context.Context, img image.Image) (Encoded, bool, error) {
	c.calls++
	return Encoded{}, false, nil
}

func TestCodecDeclineLeavesImage(t *testing.T) {
	doc := raw.NewDocument("1.7")
	data := solid(16*16*3, 7)
	doc.Objects[raw.ObjectRef{Num: 1}] = imageStream(16, 16, "DeviceRGB", data)
	codec := &refusingCodec{}
	stats, err := New(Config{Codec: codec}).Optimize(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	st := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj)
	if codec.calls != 1 || stats.Recompressed != 0 || !bytes.Equal(st.Data, data) {
		t.Fatalf("image changed: calls=%d stats=%+v", codec.calls, stats)
	}
	if _, ok := st.Dict.Get("Filter"); ok {
		t.Fatalf("filter added to untouched image")
	}
}

func TestJPEGCodecZeroQualityDeclines(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Gray{Y: 200})
	if _, ok, err := (JPEGCodec{}).Encode(context.Background(), img); ok || err != nil {
		t.Fatalf("zero quality must decline, got ok=%v err=%v", ok, err)
	}
}
