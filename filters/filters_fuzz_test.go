package filters

import (
	"context"
	"testing"

	"github.com/paradisepdf/pagekit/ir/raw"
)

func FuzzDecodeStream(f *testing.F) {
	packed, _ := Flate([]byte("BT (fuzz) Tj ET"))
	f.Add(packed, "FlateDecode", int64(0))
	f.Add([]byte("87cURD]i,\"Ebo80~>"), "ASCII85Decode", int64(0))
	f.Add([]byte("48656C6C6F>"), "ASCIIHexDecode", int64(0))
	f.Add(packed, "FlateDecode", int64(12))

	f.Fuzz(func(t *testing.T, data []byte, filter string, predictor int64) {
		dict := raw.Dict()
		dict.Set("Filter", raw.NameLiteral(filter))
		if predictor > 0 {
			parms := raw.Dict()
			parms.Set("Predictor", raw.NumberInt(predictor))
			parms.Set("Columns", raw.NumberInt(4))
			dict.Set("DecodeParms", parms)
		}
		p := NewDefaultPipeline(Limits{MaxDecompressedSize: 1 << 20})
		out, err := DecodeStream(context.Background(), p, &raw.StreamObj{Dict: dict, Data: data})
		if err == nil && len(out) > 1<<20 {
			t.Fatalf("output of %d bytes exceeds the limit", len(out))
		}
	})
}
