package optimize

import (
	"context"

	"github.com/paradisepdf/pagekit/filters"
	"github.com/paradisepdf/pagekit/ir/raw"
)

// compressStreams Flate-encodes every stream that carries no filter, keeping
// the result only when it is smaller.
func (o *Optimizer) compressStreams(ctx context.Context, doc *raw.Document) (int, error) {
	n := 0
	for _, ref := range doc.Refs() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		st, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok || len(st.Data) == 0 {
			continue
		}
		if _, filtered := st.Dict.Get("Filter"); filtered {
			continue
		}
		compressed, err := filters.Flate(st.Data)
		if err != nil || len(compressed) >= len(st.Data) {
			continue
		}
		st.Data = compressed
		st.Dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		st.Dict.Set("Length", raw.NumberInt(int64(len(compressed))))
		st.Dict.Delete("DecodeParms")
		n++
	}
	return n, nil
}
